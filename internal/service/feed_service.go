package service

import (
	"context"

	"loom/internal/cache"
	"loom/internal/models"
	"loom/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Page is the envelope every list endpoint returns.
type Page struct {
	Items       []models.Post `json:"items"`
	Total       int64         `json:"total"`
	CurrentPage int           `json:"current_page"`
	TotalPages  int           `json:"total_pages"`
}

// FeedService serves paginated views over the post graph. Tombstones and
// posts the viewer hid are filtered at the query.
type FeedService interface {
	Global(ctx context.Context, viewerID uint, page, limit int) (*Page, error)
	UserPosts(ctx context.Context, authorID, viewerID uint, page, limit int) (*Page, error)
	UserReplies(ctx context.Context, authorID, viewerID uint, page, limit int) (*Page, error)
	UserReposts(ctx context.Context, authorID, viewerID uint, page, limit int) (*Page, error)
	PostReplies(ctx context.Context, postID, viewerID uint, page, limit int) (*Page, error)
}

type feedService struct {
	posts repository.PostRepository
}

// NewFeedService creates a FeedService.
func NewFeedService(posts repository.PostRepository) FeedService {
	return &feedService{posts: posts}
}

func (s *feedService) Global(ctx context.Context, viewerID uint, page, limit int) (*Page, error) {
	page, limit = normalizePage(page, limit)

	// Only the anonymous first page is cached; any viewer filter or deeper
	// page goes straight to the store.
	cacheable := viewerID == 0 && page == 1 && limit == defaultPageSize
	if cacheable {
		var cached Page
		if found, _ := cache.GetJSON(ctx, cache.FeedFirstPageKey(), &cached); found {
			return &cached, nil
		}
	}

	result, err := s.list(ctx, repository.FeedQuery{
		Kinds:      []models.PostKind{models.PostKindOriginal, models.PostKindRepost},
		ViewerID:   viewerID,
		PublicOnly: true,
	}, page, limit)
	if err != nil {
		return nil, err
	}

	if cacheable {
		_ = cache.SetJSON(ctx, cache.FeedFirstPageKey(), result, cache.FeedTTL)
	}
	return result, nil
}

func (s *feedService) UserPosts(ctx context.Context, authorID, viewerID uint, page, limit int) (*Page, error) {
	page, limit = normalizePage(page, limit)
	return s.list(ctx, repository.FeedQuery{
		AuthorID: authorID,
		Kinds:    []models.PostKind{models.PostKindOriginal},
		ViewerID: viewerID,
	}, page, limit)
}

func (s *feedService) UserReplies(ctx context.Context, authorID, viewerID uint, page, limit int) (*Page, error) {
	page, limit = normalizePage(page, limit)
	return s.list(ctx, repository.FeedQuery{
		AuthorID: authorID,
		Kinds:    []models.PostKind{models.PostKindReply},
		ViewerID: viewerID,
	}, page, limit)
}

func (s *feedService) UserReposts(ctx context.Context, authorID, viewerID uint, page, limit int) (*Page, error) {
	page, limit = normalizePage(page, limit)
	return s.list(ctx, repository.FeedQuery{
		AuthorID: authorID,
		Kinds:    []models.PostKind{models.PostKindRepost},
		ViewerID: viewerID,
	}, page, limit)
}

func (s *feedService) PostReplies(ctx context.Context, postID, viewerID uint, page, limit int) (*Page, error) {
	page, limit = normalizePage(page, limit)

	items, total, err := s.posts.ListReplies(ctx, postID, viewerID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	return newPage(items, total, page, limit), nil
}

func (s *feedService) list(ctx context.Context, q repository.FeedQuery, page, limit int) (*Page, error) {
	q.Limit = limit
	q.Offset = (page - 1) * limit
	items, total, err := s.posts.ListFeed(ctx, q)
	if err != nil {
		return nil, err
	}
	return newPage(items, total, page, limit), nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

func newPage(items []models.Post, total int64, page, limit int) *Page {
	if items == nil {
		items = []models.Post{}
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &Page{
		Items:       items,
		Total:       total,
		CurrentPage: page,
		TotalPages:  totalPages,
	}
}
