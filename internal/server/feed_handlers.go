package server

import (
	"context"

	"loom/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetFeed returns the global feed of originals and reposts, newest first.
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page, limit := parsePage(c)
	result, err := s.feedService.Global(c.UserContext(), viewerID(c), page, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// GetPostReplies returns a page of direct replies to a post.
func (s *Server) GetPostReplies(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page, limit := parsePage(c)
	result, err := s.feedService.PostReplies(c.UserContext(), postID, viewerID(c), page, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// GetUserPosts returns a page of a user's original posts.
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	return s.userFeed(c, s.feedService.UserPosts)
}

// GetUserReplies returns a page of a user's replies.
func (s *Server) GetUserReplies(c *fiber.Ctx) error {
	return s.userFeed(c, s.feedService.UserReplies)
}

// GetUserReposts returns a page of a user's reposts.
func (s *Server) GetUserReposts(c *fiber.Ctx) error {
	return s.userFeed(c, s.feedService.UserReposts)
}

func (s *Server) userFeed(c *fiber.Ctx, fetch func(ctx context.Context, authorID, viewerID uint, page, limit int) (*service.Page, error)) error {
	authorID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page, limit := parsePage(c)
	result, err := fetch(c.UserContext(), authorID, viewerID(c), page, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}
