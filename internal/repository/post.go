package repository

import (
	"context"
	"errors"
	"time"

	"loom/internal/cache"
	"loom/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FeedQuery selects a page of posts. Zero-valued filters are inactive.
type FeedQuery struct {
	AuthorID   uint
	Kinds      []models.PostKind
	ViewerID   uint
	Limit      int
	Offset     int
	PublicOnly bool
}

// PostRepository persists the post graph: posts of all kinds, their media,
// likes and per-viewer hides. Counter updates are single statements so the
// counters can never half-apply.
type PostRepository interface {
	// Create inserts the post (with media rows) and bumps the parent's
	// reply_count or the original's repost_count in the same transaction.
	Create(ctx context.Context, post *models.Post) error
	// GetByID fetches the bare row, tombstones included.
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	// GetDetailed fetches the row with author, media and original preloaded,
	// and resolves the Liked flag for the viewer.
	GetDetailed(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	FindRepost(ctx context.Context, authorID, originalID uint) (*models.Post, error)
	ListFeed(ctx context.Context, q FeedQuery) ([]models.Post, int64, error)
	ListReplies(ctx context.Context, parentID uint, viewerID uint, limit, offset int) ([]models.Post, int64, error)
	// DirectReplies returns every non-deleted child of the post, unpaginated.
	// Cascades walk the tree with it.
	DirectReplies(ctx context.Context, parentID uint) ([]models.Post, error)
	// RepostsOf returns every repost row pointing at the original.
	RepostsOf(ctx context.Context, originalID uint) ([]models.Post, error)

	SoftDelete(ctx context.Context, id uint) error
	HardDelete(ctx context.Context, id uint) error
	DecrementReplyCount(ctx context.Context, id uint) error
	DecrementRepostCount(ctx context.Context, id uint) error

	Hide(ctx context.Context, userID, postID uint) error
	IsLiked(ctx context.Context, userID, postID uint) (bool, error)
	Like(ctx context.Context, userID, postID uint) error
	Unlike(ctx context.Context, userID, postID uint) error

	MediaOf(ctx context.Context, postID uint) ([]models.MediaItem, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository returns a new PostRepository implementation.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		switch post.Kind {
		case models.PostKindReply:
			if post.ParentID != nil {
				if err := tx.Model(&models.Post{}).
					Where("id = ?", *post.ParentID).
					UpdateColumn("reply_count", gorm.Expr("reply_count + 1")).Error; err != nil {
					return err
				}
			}
		case models.PostKindRepost:
			if post.OriginalID != nil {
				if err := tx.Model(&models.Post{}).
					Where("id = ?", *post.OriginalID).
					UpdateColumn("repost_count", gorm.Expr("repost_count + 1")).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Post already reposted")
		}
		return models.NewInternalError(err)
	}

	if post.ParentID != nil {
		cache.InvalidatePost(ctx, *post.ParentID)
	}
	if post.OriginalID != nil {
		cache.InvalidatePost(ctx, *post.OriginalID)
	}
	cache.InvalidateFeed(ctx)
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) GetDetailed(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Media", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Original").
		Preload("Original.Author").
		First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}

	if viewerID != 0 {
		liked, err := r.IsLiked(ctx, viewerID, post.ID)
		if err != nil {
			return nil, err
		}
		post.Liked = liked
	}
	return &post, nil
}

func (r *postRepository) FindRepost(ctx context.Context, authorID, originalID uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Where("kind = ? AND author_id = ? AND original_id = ?", models.PostKindRepost, authorID, originalID).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) feedScope(ctx context.Context, q FeedQuery) *gorm.DB {
	scope := r.db.WithContext(ctx).Model(&models.Post{}).Where("is_deleted = ?", false)
	if q.AuthorID != 0 {
		scope = scope.Where("author_id = ?", q.AuthorID)
	}
	if len(q.Kinds) > 0 {
		scope = scope.Where("kind IN ?", q.Kinds)
	}
	if q.PublicOnly {
		scope = scope.Where("visibility = ?", models.VisibilityPublic)
	}
	if q.ViewerID != 0 {
		scope = scope.Where(
			"id NOT IN (?)",
			r.db.Model(&models.PostHide{}).Select("post_id").Where("user_id = ?", q.ViewerID),
		)
	}
	return scope
}

func (r *postRepository) ListFeed(ctx context.Context, q FeedQuery) ([]models.Post, int64, error) {
	var total int64
	if err := r.feedScope(ctx, q).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var posts []models.Post
	err := r.feedScope(ctx, q).
		Preload("Author").
		Preload("Media", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Parent").
		Preload("Parent.Author").
		Preload("Original").
		Preload("Original.Author").
		Order("created_at DESC, id DESC").
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&posts).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	if err := r.markLiked(ctx, q.ViewerID, posts); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *postRepository) ListReplies(ctx context.Context, parentID uint, viewerID uint, limit, offset int) ([]models.Post, int64, error) {
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Post{}).
			Where("parent_id = ? AND is_deleted = ?", parentID, false)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var posts []models.Post
	err := base().
		Preload("Author").
		Preload("Media", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	if err := r.markLiked(ctx, viewerID, posts); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// DirectReplies returns every direct child including tombstones, so delete
// cascades can sweep replies that were already soft-deleted. Live-only reads
// go through ListReplies.
func (r *postRepository) DirectReplies(ctx context.Context, parentID uint) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) RepostsOf(ctx context.Context, originalID uint) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Where("kind = ? AND original_id = ?", models.PostKindRepost, originalID).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// SoftDelete turns the post into a tombstone: content cleared, media rows
// removed, counters and the row itself kept so replies stay anchored.
func (r *postRepository) SoftDelete(ctx context.Context, id uint) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Post{}).Where("id = ?", id).Updates(map[string]any{
			"is_deleted":    true,
			"content":       nil,
			"quote_content": nil,
			"deleted_at":    now,
		}).Error; err != nil {
			return err
		}
		return tx.Where("post_id = ?", id).Delete(&models.MediaItem{}).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, id)
	cache.InvalidateFeed(ctx)
	return nil
}

// HardDelete removes the row and every edge keyed to it.
func (r *postRepository) HardDelete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.MediaItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.PostLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.PostHide{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, id).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, id)
	cache.InvalidateFeed(ctx)
	return nil
}

func (r *postRepository) DecrementReplyCount(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND reply_count > 0", id).
		UpdateColumn("reply_count", gorm.Expr("reply_count - 1")).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, id)
	return nil
}

func (r *postRepository) DecrementRepostCount(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND repost_count > 0", id).
		UpdateColumn("repost_count", gorm.Expr("repost_count - 1")).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, id)
	return nil
}

func (r *postRepository) Hide(ctx context.Context, userID, postID uint) error {
	hide := models.PostHide{UserID: userID, PostID: postID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&hide).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) IsLiked(ctx context.Context, userID, postID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PostLike{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *postRepository) Like(ctx context.Context, userID, postID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.PostLike{UserID: userID, PostID: postID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Model(&models.Post{}).
			Where("id = ?", postID).
			UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, postID)
	return nil
}

func (r *postRepository) Unlike(ctx context.Context, userID, postID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).
			Delete(&models.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Model(&models.Post{}).
			Where("id = ? AND like_count > 0", postID).
			UpdateColumn("like_count", gorm.Expr("like_count - 1")).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, postID)
	return nil
}

func (r *postRepository) MediaOf(ctx context.Context, postID uint) ([]models.MediaItem, error) {
	var items []models.MediaItem
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("position ASC").
		Find(&items).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

// markLiked sets the Liked flag on each post for the viewer with one query.
func (r *postRepository) markLiked(ctx context.Context, viewerID uint, posts []models.Post) error {
	if viewerID == 0 || len(posts) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(posts))
	for i := range posts {
		ids = append(ids, posts[i].ID)
	}
	var likedIDs []uint
	err := r.db.WithContext(ctx).Model(&models.PostLike{}).
		Where("user_id = ? AND post_id IN ?", viewerID, ids).
		Pluck("post_id", &likedIDs).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	likedSet := make(map[uint]struct{}, len(likedIDs))
	for _, id := range likedIDs {
		likedSet[id] = struct{}{}
	}
	for i := range posts {
		if _, ok := likedSet[posts[i].ID]; ok {
			posts[i].Liked = true
		}
	}
	return nil
}
