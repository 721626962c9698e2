package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"loom/internal/media"
	"loom/internal/middleware"
	"loom/internal/models"
	"loom/internal/observability"
	"loom/internal/repository"
)

const (
	maxContentLen = 500
	maxQuoteLen   = 300
	// MaxMediaItems bounds attachments per post.
	MaxMediaItems = 4
)

// DeleteMode selects the removal semantics for a post.
type DeleteMode string

const (
	// DeleteSelfOnly hides the post from the requesting viewer only.
	DeleteSelfOnly DeleteMode = "selfOnly"
	// DeleteSoft tombstones the post, keeping it as an anchor for replies.
	DeleteSoft DeleteMode = "soft"
	// DeleteFull removes the post and cascades through its subtree.
	DeleteFull DeleteMode = "full"
	// DeleteAdminForce is a full delete without the authorship requirement.
	DeleteAdminForce DeleteMode = "adminForce"
)

// CreatePostRequest carries everything needed to create any post kind.
type CreatePostRequest struct {
	Kind         models.PostKind
	Content      string
	QuoteContent string
	ParentID     *uint
	OriginalID   *uint
	Visibility   models.PostVisibility
	Media        [][]byte
}

// PostService implements the post graph: creation of originals, replies and
// reposts, the four delete modes with their cascades, and like toggling.
type PostService interface {
	Create(ctx context.Context, authorID uint, req CreatePostRequest) (*models.Post, error)
	Get(ctx context.Context, postID, viewerID uint) (*models.Post, error)
	// Delete applies the requested mode. isAdmin must already be verified by
	// the caller; the engine only checks authorship where the mode demands it.
	Delete(ctx context.Context, postID, actorID uint, mode DeleteMode, isAdmin bool) error
	// ToggleLike flips the actor's like and returns the new state.
	ToggleLike(ctx context.Context, postID, actorID uint) (liked bool, err error)
}

type postService struct {
	posts repository.PostRepository
	blobs media.Store
}

// NewPostService creates a PostService.
func NewPostService(posts repository.PostRepository, blobs media.Store) PostService {
	return &postService{posts: posts, blobs: blobs}
}

func (s *postService) Create(ctx context.Context, authorID uint, req CreatePostRequest) (*models.Post, error) {
	if !req.Kind.Valid() {
		return nil, models.NewValidationError("Unknown post kind")
	}
	if len(req.Media) > MaxMediaItems {
		return nil, models.NewValidationError("At most 4 media attachments are allowed")
	}

	content := strings.TrimSpace(req.Content)
	quote := strings.TrimSpace(req.QuoteContent)
	if utf8.RuneCountInString(content) > maxContentLen {
		return nil, models.NewValidationError("Content must not exceed 500 characters")
	}
	if utf8.RuneCountInString(quote) > maxQuoteLen {
		return nil, models.NewValidationError("Quote must not exceed 300 characters")
	}

	post := &models.Post{
		AuthorID:   authorID,
		Kind:       req.Kind,
		Visibility: req.Visibility,
	}
	if post.Visibility == "" {
		post.Visibility = models.VisibilityPublic
	}

	switch req.Kind {
	case models.PostKindOriginal:
		if content == "" && len(req.Media) == 0 {
			return nil, models.NewValidationError("Content is required")
		}
		if req.ParentID != nil || req.OriginalID != nil {
			return nil, models.NewValidationError("An original post cannot reference another post")
		}
		if quote != "" {
			return nil, models.NewValidationError("Only reposts may carry a quote")
		}
		if content != "" {
			post.Content = &content
		}

	case models.PostKindReply:
		if content == "" && len(req.Media) == 0 {
			return nil, models.NewValidationError("Content is required")
		}
		if req.ParentID == nil {
			return nil, models.NewValidationError("A reply requires a parent post")
		}
		if req.OriginalID != nil || quote != "" {
			return nil, models.NewValidationError("A reply cannot carry repost fields")
		}
		parent, err := s.posts.GetByID(ctx, *req.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.IsDeleted {
			return nil, models.NewNotFoundError("Post", *req.ParentID)
		}
		post.ParentID = req.ParentID
		if content != "" {
			post.Content = &content
		}

	case models.PostKindRepost:
		if req.OriginalID == nil {
			return nil, models.NewValidationError("A repost requires an original post")
		}
		if req.ParentID != nil || content != "" || len(req.Media) > 0 {
			return nil, models.NewValidationError("A repost carries only an optional quote")
		}
		original, err := s.posts.GetByID(ctx, *req.OriginalID)
		if err != nil {
			return nil, err
		}
		if original.IsDeleted {
			return nil, models.NewGoneError("Cannot repost a deleted post")
		}
		existing, err := s.posts.FindRepost(ctx, authorID, *req.OriginalID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, models.NewConflictError("Post already reposted")
		}
		post.OriginalID = req.OriginalID
		if quote != "" {
			post.QuoteContent = &quote
		}
	}

	// Blobs are uploaded before the row is persisted; a failed persist
	// purges them so no orphan blobs accumulate.
	blobs, err := s.uploadMedia(ctx, req.Media)
	if err != nil {
		return nil, err
	}
	for i, b := range blobs {
		post.Media = append(post.Media, models.MediaItem{
			Position: i,
			URL:      b.URL,
			BlobID:   b.ID,
		})
	}

	if err := s.posts.Create(ctx, post); err != nil {
		s.purgeBlobs(ctx, blobs)
		return nil, err
	}
	return post, nil
}

func (s *postService) Get(ctx context.Context, postID, viewerID uint) (*models.Post, error) {
	post, err := s.posts.GetDetailed(ctx, postID, viewerID)
	if err != nil {
		return nil, err
	}
	if post.IsDeleted {
		return nil, models.NewGoneError("Post has been deleted")
	}
	return post, nil
}

func (s *postService) Delete(ctx context.Context, postID, actorID uint, mode DeleteMode, isAdmin bool) error {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}

	switch mode {
	case DeleteSelfOnly:
		observability.CascadeSteps.WithLabelValues("hide").Inc()
		return s.posts.Hide(ctx, actorID, postID)

	case DeleteSoft:
		if post.AuthorID != actorID {
			return models.NewForbiddenError("Only the author may delete this post")
		}
		// Idempotent: tombstoning a tombstone changes nothing.
		if post.IsDeleted {
			return nil
		}
		return s.softDelete(ctx, post)

	case DeleteFull:
		if post.AuthorID != actorID {
			return models.NewForbiddenError("Only the author may delete this post")
		}
		return s.fullDelete(ctx, post)

	case DeleteAdminForce:
		if !isAdmin {
			return models.NewForbiddenError("Administrator role required")
		}
		return s.fullDelete(ctx, post)
	}

	return models.NewValidationError("Unknown delete mode")
}

// softDelete tombstones the post. Only the post itself changes: media rows
// are detached but the blobs stay in the store so the content is
// recoverable, and counters on other posts are left untouched.
func (s *postService) softDelete(ctx context.Context, post *models.Post) error {
	observability.CascadeSteps.WithLabelValues("tombstone").Inc()
	return s.posts.SoftDelete(ctx, post.ID)
}

// fullDelete removes the post and walks its subtree: direct replies are hard
// deleted, reposts of the post become tombstones, then the post itself goes.
// Steps apply in order and are not transactional across the cascade; an
// applied step stays applied even if a later one fails.
func (s *postService) fullDelete(ctx context.Context, post *models.Post) error {
	replies, err := s.posts.DirectReplies(ctx, post.ID)
	if err != nil {
		return err
	}
	for _, reply := range replies {
		observability.CascadeSteps.WithLabelValues("reply_delete").Inc()
		items, err := s.posts.MediaOf(ctx, reply.ID)
		if err != nil {
			return err
		}
		if err := s.posts.HardDelete(ctx, reply.ID); err != nil {
			return err
		}
		s.purgeMediaItems(ctx, items)
	}

	reposts, err := s.posts.RepostsOf(ctx, post.ID)
	if err != nil {
		return err
	}
	for _, repost := range reposts {
		if repost.IsDeleted {
			continue
		}
		observability.CascadeSteps.WithLabelValues("repost_tombstone").Inc()
		if err := s.posts.SoftDelete(ctx, repost.ID); err != nil {
			return err
		}
	}

	items, err := s.posts.MediaOf(ctx, post.ID)
	if err != nil {
		return err
	}

	observability.CascadeSteps.WithLabelValues("post_delete").Inc()
	if err := s.posts.HardDelete(ctx, post.ID); err != nil {
		return err
	}
	s.purgeMediaItems(ctx, items)

	if post.Kind == models.PostKindReply && post.ParentID != nil {
		observability.CascadeSteps.WithLabelValues("parent_decrement").Inc()
		if err := s.posts.DecrementReplyCount(ctx, *post.ParentID); err != nil {
			return err
		}
	}
	if post.Kind == models.PostKindRepost && post.OriginalID != nil {
		observability.CascadeSteps.WithLabelValues("original_decrement").Inc()
		if err := s.posts.DecrementRepostCount(ctx, *post.OriginalID); err != nil {
			return err
		}
	}
	return nil
}

func (s *postService) ToggleLike(ctx context.Context, postID, actorID uint) (bool, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return false, err
	}
	if post.IsDeleted {
		return false, models.NewGoneError("Post has been deleted")
	}

	liked, err := s.posts.IsLiked(ctx, actorID, postID)
	if err != nil {
		return false, err
	}
	if liked {
		if err := s.posts.Unlike(ctx, actorID, postID); err != nil {
			return false, err
		}
		return false, nil
	}
	if err := s.posts.Like(ctx, actorID, postID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *postService) uploadMedia(ctx context.Context, payloads [][]byte) ([]media.Blob, error) {
	var blobs []media.Blob
	for _, data := range payloads {
		if len(data) == 0 {
			continue
		}
		blob, err := s.blobs.Store(ctx, data, media.PostFolder)
		if err != nil {
			s.purgeBlobs(ctx, blobs)
			return nil, models.NewInternalError(err)
		}
		blobs = append(blobs, blob)
	}
	return blobs, nil
}

func (s *postService) purgeBlobs(ctx context.Context, blobs []media.Blob) {
	for _, b := range blobs {
		if err := s.blobs.Delete(ctx, b.ID); err != nil {
			observability.MediaPurgeFailures.Inc()
			middleware.Logger.WarnContext(ctx, "media purge failed",
				slog.String("blob_id", b.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// purgeMediaItems removes blobs for already-deleted media rows. Failures are
// counted and logged; the delete that triggered the purge stands.
func (s *postService) purgeMediaItems(ctx context.Context, items []models.MediaItem) {
	for _, item := range items {
		if err := s.blobs.Delete(ctx, item.BlobID); err != nil {
			observability.MediaPurgeFailures.Inc()
			middleware.Logger.WarnContext(ctx, "media purge failed",
				slog.String("blob_id", item.BlobID),
				slog.String("error", err.Error()),
			)
		}
	}
}
