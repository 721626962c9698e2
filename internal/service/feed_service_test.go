package service

import (
	"context"
	"testing"

	"loom/internal/models"
	"loom/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedGlobal_FiltersKindsAndVisibility(t *testing.T) {
	repo := noopPostRepo()
	var captured repository.FeedQuery
	repo.listFeedFn = func(_ context.Context, q repository.FeedQuery) ([]models.Post, int64, error) {
		captured = q
		return []models.Post{{ID: 1}}, 1, nil
	}
	svc := NewFeedService(repo)

	page, err := svc.Global(context.Background(), 7, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	assert.ElementsMatch(t, []models.PostKind{models.PostKindOriginal, models.PostKindRepost}, captured.Kinds)
	assert.True(t, captured.PublicOnly)
	assert.Equal(t, uint(7), captured.ViewerID)
	assert.Equal(t, 0, captured.Offset)
}

func TestFeedPagination_TotalPagesRoundsUp(t *testing.T) {
	repo := noopPostRepo()
	repo.listFeedFn = func(_ context.Context, q repository.FeedQuery) ([]models.Post, int64, error) {
		return make([]models.Post, q.Limit), 41, nil
	}
	svc := NewFeedService(repo)

	page, err := svc.UserPosts(context.Background(), 1, 0, 2, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(41), page.Total)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 3, page.TotalPages)
}

func TestFeedPagination_NormalizesBadInput(t *testing.T) {
	repo := noopPostRepo()
	var captured repository.FeedQuery
	repo.listFeedFn = func(_ context.Context, q repository.FeedQuery) ([]models.Post, int64, error) {
		captured = q
		return nil, 0, nil
	}
	svc := NewFeedService(repo)

	page, err := svc.UserPosts(context.Background(), 1, 0, -3, 900)
	require.NoError(t, err)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Equal(t, 50, captured.Limit)
	assert.Equal(t, 0, captured.Offset)
	assert.NotNil(t, page.Items)
	assert.Equal(t, 0, page.TotalPages)
}

func TestFeedUserScopes_SelectSingleKind(t *testing.T) {
	repo := noopPostRepo()
	var kinds []models.PostKind
	repo.listFeedFn = func(_ context.Context, q repository.FeedQuery) ([]models.Post, int64, error) {
		kinds = q.Kinds
		return nil, 0, nil
	}
	svc := NewFeedService(repo)
	ctx := context.Background()

	_, err := svc.UserReplies(ctx, 1, 0, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, []models.PostKind{models.PostKindReply}, kinds)

	_, err = svc.UserReposts(ctx, 1, 0, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, []models.PostKind{models.PostKindRepost}, kinds)
}

func TestPostReplies_PassesOffset(t *testing.T) {
	repo := noopPostRepo()
	var gotLimit, gotOffset int
	repo.listRepliesFn = func(_ context.Context, parentID, viewerID uint, limit, offset int) ([]models.Post, int64, error) {
		gotLimit, gotOffset = limit, offset
		return nil, 0, nil
	}
	svc := NewFeedService(repo)

	_, err := svc.PostReplies(context.Background(), 9, 0, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, gotLimit)
	assert.Equal(t, 20, gotOffset)
}
