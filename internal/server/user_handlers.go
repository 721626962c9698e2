package server

import (
	"io"
	"mime/multipart"

	"loom/internal/models"
	"loom/internal/service"

	"github.com/gofiber/fiber/v2"
)

const maxAvatarBytes = 5 << 20

// GetMyProfile returns the authenticated user's own profile.
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	profile, err := s.userService.GetProfile(c.UserContext(), userID, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyProfile updates editable profile fields. Accepts JSON or multipart
// form data; the avatar can only arrive as a multipart file.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req service.UpdateProfileRequest

	if form, err := c.MultipartForm(); err == nil && form != nil {
		if v, ok := formValue(form.Value, "display_name"); ok {
			req.DisplayName = &v
		}
		if v, ok := formValue(form.Value, "bio"); ok {
			req.Bio = &v
		}
		if v, ok := formValue(form.Value, "website"); ok {
			req.Website = &v
		}
		if files := form.File["avatar"]; len(files) > 0 {
			data, err := readUpload(files[0], maxAvatarBytes)
			if err != nil {
				return models.RespondWithError(c, fiber.StatusBadRequest,
					models.NewValidationError("Could not read avatar upload"))
			}
			req.Avatar = data
		}
	} else {
		var body struct {
			DisplayName *string `json:"display_name"`
			Bio         *string `json:"bio"`
			Website     *string `json:"website"`
		}
		if err := c.BodyParser(&body); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
		req.DisplayName = body.DisplayName
		req.Bio = body.Bio
		req.Website = body.Website
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), userID, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// GetProfile returns a user's profile with relationship data for the viewer.
func (s *Server) GetProfile(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	profile, err := s.userService.GetProfile(c.UserContext(), targetID, viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// GetProfileByUsername resolves a profile by handle.
func (s *Server) GetProfileByUsername(c *fiber.Ctx) error {
	username := c.Params("username")
	profile, err := s.userService.GetProfileByUsername(c.UserContext(), username, viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// ToggleFollow flips the follow edge toward the target user.
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID := c.Locals("userID").(uint)

	following, err := s.userService.ToggleFollow(c.UserContext(), userID, targetID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"following": following})
}

// ToggleProfileLike flips the profile like toward the target user.
func (s *Server) ToggleProfileLike(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID := c.Locals("userID").(uint)

	liked, err := s.userService.ToggleProfileLike(c.UserContext(), userID, targetID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"liked": liked})
}

// SearchUsers finds profiles by username or display name.
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	query := c.Query("q")
	limit := c.QueryInt("limit", 20)

	users, err := s.userService.SearchProfiles(c.UserContext(), query, viewerID(c), limit)
	if err != nil {
		return respondError(c, err)
	}
	if users == nil {
		users = []models.User{}
	}
	return c.JSON(fiber.Map{"users": users})
}

// GetFollowers lists the accounts following the target user.
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	entries, err := s.userService.Followers(c.UserContext(), targetID, viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	if entries == nil {
		entries = []service.FollowListEntry{}
	}
	return c.JSON(fiber.Map{"followers": entries})
}

// GetFollowing lists the accounts the target user follows.
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	entries, err := s.userService.Following(c.UserContext(), targetID, viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	if entries == nil {
		entries = []service.FollowListEntry{}
	}
	return c.JSON(fiber.Map{"following": entries})
}

func formValue(values map[string][]string, key string) (string, bool) {
	if v, ok := values[key]; ok && len(v) > 0 {
		return v[0], true
	}
	return "", false
}

func readUpload(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit))
}
