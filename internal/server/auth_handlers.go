package server

import (
	"loom/internal/models"
	"loom/internal/service"

	"github.com/gofiber/fiber/v2"
)

type loginRequest struct {
	// Identifier is an email address or a username.
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type authResponse struct {
	User         *models.User `json:"user,omitempty"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"`
}

// Register creates a new account and signs the user in.
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, pair, err := s.authService.Register(c.UserContext(), req, clientMeta(c))
	if err != nil {
		return respondError(c, err)
	}

	s.setRefreshCookie(c, pair.RefreshToken)
	return c.Status(fiber.StatusCreated).JSON(authResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	})
}

// Login authenticates by email or username.
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.Identifier == "" || req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Identifier and password are required"))
	}

	user, pair, err := s.authService.Login(c.UserContext(), req.Identifier, req.Password, clientMeta(c))
	if err != nil {
		return respondError(c, err)
	}

	s.setRefreshCookie(c, pair.RefreshToken)
	return c.JSON(authResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	})
}

// Refresh rotates the refresh token and returns a fresh pair. The presented
// token is consumed; replaying it afterwards fails.
func (s *Server) Refresh(c *fiber.Ctx) error {
	token := refreshTokenFrom(c)
	if token == "" {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Refresh token required"))
	}

	pair, err := s.authService.Rotate(c.UserContext(), token, clientMeta(c))
	if err != nil {
		s.clearRefreshCookie(c)
		return respondError(c, err)
	}

	s.setRefreshCookie(c, pair.RefreshToken)
	return c.JSON(authResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	})
}

// Logout revokes the presented refresh token. Always succeeds.
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.authService.Logout(c.UserContext(), refreshTokenFrom(c)); err != nil {
		return respondError(c, err)
	}
	s.clearRefreshCookie(c)
	return c.SendStatus(fiber.StatusNoContent)
}

// LogoutAll revokes every session of the authenticated user.
func (s *Server) LogoutAll(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	if err := s.authService.LogoutAll(c.UserContext(), userID); err != nil {
		return respondError(c, err)
	}
	s.clearRefreshCookie(c)
	return c.SendStatus(fiber.StatusNoContent)
}
