package server

import (
	"errors"
	"time"

	"loom/internal/models"
	"loom/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

const refreshCookieName = "refresh_token"

// httpStatus maps an application error code to its HTTP status.
func httpStatus(err error) int {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeUnauthorized, models.CodeExpiredOrRevoked:
		return fiber.StatusUnauthorized
	case models.CodeForbidden:
		return fiber.StatusForbidden
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeConflict:
		return fiber.StatusConflict
	case models.CodeGone:
		return fiber.StatusGone
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes the error with its mapped status.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, httpStatus(err), err)
}

// parseID extracts a route parameter as a positive uint.
// On failure it writes a 400 response and returns errResponseWritten;
// callers should check: if err != nil { return nil }.
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+param))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// parsePage extracts page/limit query parameters.
func parsePage(c *fiber.Ctx) (page, limit int) {
	page = c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit = c.QueryInt("limit", 20)
	if limit < 1 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}
	return page, limit
}

// viewerID returns the authenticated user's ID, or zero for anonymous requests.
func viewerID(c *fiber.Ctx) uint {
	if uid, ok := c.Locals("userID").(uint); ok {
		return uid
	}
	return 0
}

func clientMeta(c *fiber.Ctx) service.ClientMeta {
	return service.ClientMeta{
		IP:        c.IP(),
		UserAgent: c.Get("User-Agent"),
	}
}

// setRefreshCookie stores the refresh token in an httpOnly cookie scoped to
// the auth endpoints. Clients that cannot use cookies may instead send the
// token in the request body.
func (s *Server) setRefreshCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/api/auth",
		MaxAge:   int(s.config.RefreshTokenTTL.Seconds()),
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (s *Server) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/api/auth",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

// refreshTokenFrom reads the refresh token from the cookie, falling back to
// the request body.
func refreshTokenFrom(c *fiber.Ctx) string {
	if token := c.Cookies(refreshCookieName); token != "" {
		return token
	}
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&body); err == nil {
		return body.RefreshToken
	}
	return ""
}
