package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"loom/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createPost(t *testing.T, app *fiber.App, token string, body fiber.Map) *models.Post {
	t.Helper()
	status, raw := doJSON(t, app, http.MethodPost, "/api/posts/", token, body)
	require.Equal(t, http.StatusCreated, status, string(raw))

	var post models.Post
	require.NoError(t, json.Unmarshal(raw, &post))
	require.NotZero(t, post.ID)
	return &post
}

func getPost(t *testing.T, app *fiber.App, token string, id uint) (int, *models.Post) {
	t.Helper()
	status, raw := doJSON(t, app, http.MethodGet, postPath(id), token, nil)
	if status != http.StatusOK {
		return status, nil
	}
	var post models.Post
	require.NoError(t, json.Unmarshal(raw, &post))
	return status, &post
}

func postPath(id uint) string {
	return "/api/posts/" + strconv.FormatUint(uint64(id), 10)
}

func TestCreatePost_RequiresAuth(t *testing.T) {
	app, _, _ := newTestApp(t)

	status, _ := doJSON(t, app, http.MethodPost, "/api/posts/", "", fiber.Map{"content": "hi"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCreatePost_OriginalAndReply(t *testing.T) {
	app, _, _ := newTestApp(t)
	authorID, token := registerUser(t, app, "alice")

	original := createPost(t, app, token, fiber.Map{"content": "first post"})
	assert.Equal(t, models.PostKindOriginal, original.Kind)
	assert.Equal(t, authorID, original.AuthorID)
	assert.Equal(t, models.VisibilityPublic, original.Visibility)

	reply := createPost(t, app, token, fiber.Map{
		"kind":      "reply",
		"content":   "replying to myself",
		"parent_id": original.ID,
	})
	assert.Equal(t, models.PostKindReply, reply.Kind)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, original.ID, *reply.ParentID)

	// The denormalized counter on the parent reflects the reply.
	status, fetched := getPost(t, app, "", original.ID)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, fetched.ReplyCount)

	// The reply shows up in the replies listing.
	status, raw := doJSON(t, app, http.MethodGet, postPath(original.ID)+"/replies", "", nil)
	require.Equal(t, http.StatusOK, status)
	var page struct {
		Items []models.Post `json:"items"`
		Total int64         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(raw, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, reply.ID, page.Items[0].ID)
}

func TestCreatePost_KindValidation(t *testing.T) {
	app, _, _ := newTestApp(t)
	_, token := registerUser(t, app, "bob")

	tests := []struct {
		name string
		body fiber.Map
	}{
		{"original without content or media", fiber.Map{}},
		{"reply without parent", fiber.Map{"kind": "reply", "content": "hi"}},
		{"repost without original", fiber.Map{"kind": "repost"}},
		{"original with parent", fiber.Map{"content": "x", "parent_id": 1}},
		{"unknown kind", fiber.Map{"kind": "broadcast", "content": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := doJSON(t, app, http.MethodPost, "/api/posts/", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, models.CodeValidation, errorCode(t, raw))
		})
	}
}

func TestRepost_OncePerUser(t *testing.T) {
	app, _, _ := newTestApp(t)
	_, aliceToken := registerUser(t, app, "alice")
	_, bobToken := registerUser(t, app, "bob")

	original := createPost(t, app, aliceToken, fiber.Map{"content": "repost me"})

	repost := createPost(t, app, bobToken, fiber.Map{
		"kind":        "repost",
		"original_id": original.ID,
	})
	assert.Equal(t, models.PostKindRepost, repost.Kind)
	assert.Nil(t, repost.Content, "plain reposts carry no content")

	status, fetched := getPost(t, app, "", original.ID)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, fetched.RepostCount)

	// Reposting the same post again conflicts.
	status, raw := doJSON(t, app, http.MethodPost, "/api/posts/", bobToken, fiber.Map{
		"kind":        "repost",
		"original_id": original.ID,
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, models.CodeConflict, errorCode(t, raw))

	// A quote repost carries quote text, not content.
	quote := createPost(t, app, aliceToken, fiber.Map{
		"kind":          "repost",
		"original_id":   original.ID,
		"quote_content": "look at this",
	})
	require.NotNil(t, quote.QuoteContent)
	assert.Equal(t, "look at this", *quote.QuoteContent)
}

func TestGetPost_SoftDeletedIsGone(t *testing.T) {
	app, _, _ := newTestApp(t)
	_, token := registerUser(t, app, "alice")

	post := createPost(t, app, token, fiber.Map{"content": "ephemeral"})

	status, _ := doJSON(t, app, http.MethodDelete, postPath(post.ID)+"?mode=soft", token, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, raw := doJSON(t, app, http.MethodGet, postPath(post.ID), "", nil)
	assert.Equal(t, http.StatusGone, status)
	assert.Equal(t, models.CodeGone, errorCode(t, raw))

	// Reposting a tombstone fails the same way.
	_, bobToken := registerUser(t, app, "bob")
	status, raw = doJSON(t, app, http.MethodPost, "/api/posts/", bobToken, fiber.Map{
		"kind":        "repost",
		"original_id": post.ID,
	})
	assert.Equal(t, http.StatusGone, status)
	assert.Equal(t, models.CodeGone, errorCode(t, raw))
}

func TestDeletePost_OnlyAuthorMaySoftDelete(t *testing.T) {
	app, _, _ := newTestApp(t)
	_, aliceToken := registerUser(t, app, "alice")
	_, bobToken := registerUser(t, app, "bob")

	post := createPost(t, app, aliceToken, fiber.Map{"content": "mine"})

	status, raw := doJSON(t, app, http.MethodDelete, postPath(post.ID), bobToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, models.CodeForbidden, errorCode(t, raw))

	status, _ = doJSON(t, app, http.MethodDelete, postPath(post.ID), aliceToken, nil)
	assert.Equal(t, http.StatusNoContent, status)

	// Soft delete is idempotent: tombstoning the tombstone succeeds.
	status, _ = doJSON(t, app, http.MethodDelete, postPath(post.ID), aliceToken, nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestDeletePost_FullCascades(t *testing.T) {
	app, _, db := newTestApp(t)
	_, aliceToken := registerUser(t, app, "alice")
	_, bobToken := registerUser(t, app, "bob")

	original := createPost(t, app, aliceToken, fiber.Map{"content": "to be erased"})
	reply := createPost(t, app, bobToken, fiber.Map{
		"kind": "reply", "content": "a reply", "parent_id": original.ID,
	})
	repost := createPost(t, app, bobToken, fiber.Map{
		"kind": "repost", "original_id": original.ID,
	})

	status, _ := doJSON(t, app, http.MethodDelete, postPath(original.ID)+"?mode=full", aliceToken, nil)
	require.Equal(t, http.StatusNoContent, status)

	// The post and its replies are hard-deleted.
	status, _ = doJSON(t, app, http.MethodGet, postPath(original.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = doJSON(t, app, http.MethodGet, postPath(reply.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	// Reposts survive as tombstones.
	status, _ = doJSON(t, app, http.MethodGet, postPath(repost.ID), "", nil)
	assert.Equal(t, http.StatusGone, status)

	var tombstoned models.Post
	require.NoError(t, db.Where("id = ?", repost.ID).First(&tombstoned).Error)
	assert.True(t, tombstoned.IsDeleted)
}

func TestSoftDelete_LeavesParentCounterUntouched(t *testing.T) {
	app, _, _ := newTestApp(t)
	_, aliceToken := registerUser(t, app, "alice")
	_, bobToken := registerUser(t, app, "bob")

	parent := createPost(t, app, aliceToken, fiber.Map{"content": "parent"})
	first := createPost(t, app, bobToken, fiber.Map{
		"kind": "reply", "content": "one", "parent_id": parent.ID,
	})
	createPost(t, app, bobToken, fiber.Map{
		"kind": "reply", "content": "two", "parent_id": parent.ID,
	})

	status, _ := doJSON(t, app, http.MethodDelete, postPath(first.ID)+"?mode=soft", bobToken, nil)
	require.Equal(t, http.StatusNoContent, status)

	// Tombstoning a reply does not change the parent's counter.
	status, fetched := getPost(t, app, "", parent.ID)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, fetched.ReplyCount)

	// Hard-deleting it afterwards decrements exactly once.
	status, _ = doJSON(t, app, http.MethodDelete, postPath(first.ID)+"?mode=full", bobToken, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, fetched = getPost(t, app, "", parent.ID)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, fetched.ReplyCount)
}

func TestFullDelete_SweepsTombstonedReplies(t *testing.T) {
	app, _, db := newTestApp(t)
	_, aliceToken := registerUser(t, app, "alice")
	_, bobToken := registerUser(t, app, "bob")

	parent := createPost(t, app, aliceToken, fiber.Map{"content": "thread root"})
	reply := createPost(t, app, bobToken, fiber.Map{
		"kind": "reply", "content": "soon tombstoned", "parent_id": parent.ID,
	})

	status, _ := doJSON(t, app, http.MethodDelete, postPath(reply.ID)+"?mode=soft", bobToken, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, _ = doJSON(t, app, http.MethodDelete, postPath(parent.ID)+"?mode=full", aliceToken, nil)
	require.Equal(t, http.StatusNoContent, status)

	// No reply row may survive the cascade pointing at the removed parent.
	var remaining int64
	require.NoError(t, db.Model(&models.Post{}).
		Where("id = ? OR parent_id = ?", reply.ID, parent.ID).
		Count(&remaining).Error)
	assert.Zero(t, remaining)
}

func TestFullDelete_OfTombstonedRepostDecrementsOriginal(t *testing.T) {
	app, _, _ := newTestApp(t)
	_, aliceToken := registerUser(t, app, "alice")
	_, bobToken := registerUser(t, app, "bob")

	original := createPost(t, app, aliceToken, fiber.Map{"content": "reposted"})
	repost := createPost(t, app, bobToken, fiber.Map{
		"kind": "repost", "original_id": original.ID,
	})

	status, _ := doJSON(t, app, http.MethodDelete, postPath(repost.ID)+"?mode=soft", bobToken, nil)
	require.Equal(t, http.StatusNoContent, status)

	// The tombstone kept the original's counter.
	status, fetched := getPost(t, app, "", original.ID)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, fetched.RepostCount)

	status, _ = doJSON(t, app, http.MethodDelete, postPath(repost.ID)+"?mode=full", bobToken, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, fetched = getPost(t, app, "", original.ID)
	require.Equal(t, http.StatusOK, status)
	assert.Zero(t, fetched.RepostCount)
}

func TestDeletePost_FullOfReplyDecrementsParent(t *testing.T) {
	app, _, _ := newTestApp(t)
	_, token := registerUser(t, app, "alice")

	parent := createPost(t, app, token, fiber.Map{"content": "parent"})
	reply := createPost(t, app, token, fiber.Map{
		"kind": "reply", "content": "child", "parent_id": parent.ID,
	})

	status, fetched := getPost(t, app, "", parent.ID)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, fetched.ReplyCount)

	status, _ = doJSON(t, app, http.MethodDelete, postPath(reply.ID)+"?mode=full", token, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, fetched = getPost(t, app, "", parent.ID)
	require.Equal(t, http.StatusOK, status)
	assert.Zero(t, fetched.ReplyCount)
}

func TestDeletePost_AdminForce(t *testing.T) {
	app, _, db := newTestApp(t)
	_, aliceToken := registerUser(t, app, "alice")
	adminID, adminToken := registerUser(t, app, "root")

	post := createPost(t, app, aliceToken, fiber.Map{"content": "reported"})

	// A regular user cannot force-delete someone else's post.
	status, raw := doJSON(t, app, http.MethodDelete, postPath(post.ID)+"?mode=adminForce", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, models.CodeForbidden, errorCode(t, raw))

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", adminID).
		Update("role", models.RoleAdmin).Error)

	status, _ = doJSON(t, app, http.MethodDelete, postPath(post.ID)+"?mode=adminForce", adminToken, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, _ = doJSON(t, app, http.MethodGet, postPath(post.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDeletePost_UnknownModeRejected(t *testing.T) {
	app, _, _ := newTestApp(t)
	_, token := registerUser(t, app, "alice")

	post := createPost(t, app, token, fiber.Map{"content": "x"})

	status, raw := doJSON(t, app, http.MethodDelete, postPath(post.ID)+"?mode=purge", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeValidation, errorCode(t, raw))
}

func TestTogglePostLike(t *testing.T) {
	app, _, _ := newTestApp(t)
	_, aliceToken := registerUser(t, app, "alice")
	_, bobToken := registerUser(t, app, "bob")

	post := createPost(t, app, aliceToken, fiber.Map{"content": "likeable"})

	status, raw := doJSON(t, app, http.MethodPost, postPath(post.ID)+"/like", bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"liked":true}`, string(raw))

	status, fetched := getPost(t, app, "", post.ID)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, fetched.LikeCount)

	// The viewer's like flag is set only for the liker.
	status, asBob := getPost(t, app, bobToken, post.ID)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, asBob.Liked)
	status, asAlice := getPost(t, app, aliceToken, post.ID)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, asAlice.Liked)

	// Toggling again restores the count.
	status, raw = doJSON(t, app, http.MethodPost, postPath(post.ID)+"/like", bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"liked":false}`, string(raw))

	status, fetched = getPost(t, app, "", post.ID)
	require.Equal(t, http.StatusOK, status)
	assert.Zero(t, fetched.LikeCount)
}
