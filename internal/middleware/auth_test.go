package middleware

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"loom/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAccessSecret = "test_access_secret"

func signTestToken(t *testing.T, purpose, subject, secret string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"purpose": purpose,
		"sub":     subject,
		"exp":     time.Now().Add(ttl).Unix(),
		"iat":     time.Now().Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newAuthTestApp(t *testing.T) *fiber.App {
	t.Helper()
	InitMiddleware(&config.Config{
		JWTAccessSecret:  testAccessSecret,
		JWTRefreshSecret: "test_refresh_secret",
	})

	app := fiber.New()
	app.Get("/protected", AuthRequired, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("userID").(uint)
		return c.JSON(fiber.Map{"user_id": userID})
	})
	app.Get("/public", OptionalAuth, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("userID").(uint)
		return c.JSON(fiber.Map{"user_id": userID})
	})
	return app
}

func TestAuthRequired(t *testing.T) {
	app := newAuthTestApp(t)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"missing header", "", fiber.StatusUnauthorized},
		{"malformed header", "Token abc", fiber.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", fiber.StatusUnauthorized},
		{
			"wrong secret",
			"Bearer " + signTestToken(t, "access", "1", "some_other_secret", time.Minute),
			fiber.StatusUnauthorized,
		},
		{
			"expired token",
			"Bearer " + signTestToken(t, "access", "1", testAccessSecret, -time.Minute),
			fiber.StatusUnauthorized,
		},
		{
			"refresh token rejected",
			"Bearer " + signTestToken(t, "refresh", "1", testAccessSecret, time.Minute),
			fiber.StatusUnauthorized,
		},
		{
			"valid access token",
			"Bearer " + signTestToken(t, "access", "42", testAccessSecret, time.Minute),
			fiber.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/protected", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestAuthRequired_SetsUserIDLocal(t *testing.T) {
	app := newAuthTestApp(t)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "access", "42", testAccessSecret, time.Minute))
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":42}`, string(body))
}

func TestOptionalAuth(t *testing.T) {
	app := newAuthTestApp(t)

	// Anonymous requests pass straight through.
	resp, err := app.Test(httptest.NewRequest("GET", "/public", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// A present but invalid token still fails.
	req := httptest.NewRequest("GET", "/public", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// A valid token resolves the viewer.
	req = httptest.NewRequest("GET", "/public", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "access", "7", testAccessSecret, time.Minute))
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":7}`, string(body))
}
