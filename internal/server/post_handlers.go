package server

import (
	"loom/internal/models"
	"loom/internal/service"

	"github.com/gofiber/fiber/v2"
)

const maxMediaBytes = 10 << 20

type createPostBody struct {
	Kind         string `json:"kind" form:"kind"`
	Content      string `json:"content" form:"content"`
	QuoteContent string `json:"quote_content" form:"quote_content"`
	ParentID     *uint  `json:"parent_id" form:"parent_id"`
	OriginalID   *uint  `json:"original_id" form:"original_id"`
	Visibility   string `json:"visibility" form:"visibility"`
}

// CreatePost creates an original post, a reply or a repost. Media files
// arrive as multipart "media" parts, at most four.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var body createPostBody
	if err := c.BodyParser(&body); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if body.Kind == "" {
		body.Kind = string(models.PostKindOriginal)
	}

	req := service.CreatePostRequest{
		Kind:         models.PostKind(body.Kind),
		Content:      body.Content,
		QuoteContent: body.QuoteContent,
		ParentID:     body.ParentID,
		OriginalID:   body.OriginalID,
		Visibility:   models.PostVisibility(body.Visibility),
	}

	if form, err := c.MultipartForm(); err == nil && form != nil {
		files := form.File["media"]
		if len(files) > service.MaxMediaItems {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("At most 4 media attachments are allowed"))
		}
		for _, fh := range files {
			data, err := readUpload(fh, maxMediaBytes)
			if err != nil {
				return models.RespondWithError(c, fiber.StatusBadRequest,
					models.NewValidationError("Could not read media upload"))
			}
			req.Media = append(req.Media, data)
		}
	}

	post, err := s.postService.Create(c.UserContext(), userID, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPost returns a single post with author, media and original preloaded.
func (s *Server) GetPost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.Get(c.UserContext(), postID, viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// DeletePost applies the delete mode from the "mode" query parameter
// (default "soft"). adminForce additionally requires the admin role.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID := c.Locals("userID").(uint)

	mode := service.DeleteMode(c.Query("mode", string(service.DeleteSoft)))

	isAdmin := false
	if mode == service.DeleteAdminForce {
		isAdmin, err = s.isAdmin(c.UserContext(), userID)
		if err != nil {
			return respondError(c, err)
		}
		if !isAdmin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
	}

	if err := s.postService.Delete(c.UserContext(), postID, userID, mode, isAdmin); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// TogglePostLike flips the viewer's like on the post.
func (s *Server) TogglePostLike(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID := c.Locals("userID").(uint)

	liked, err := s.postService.ToggleLike(c.UserContext(), postID, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"liked": liked})
}
