package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/primehaven/haven-chat-api/internal/middleware"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func decodeJSON(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func newProtectedApp() *fiber.App {
	app := fiber.New()
	app.Get("/me", middleware.JWTProtected(testSecret), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"user_id":   middleware.UserID(c),
			"user_name": middleware.UserName(c),
			"user_role": middleware.UserRole(c),
		})
	})
	return app
}

func TestJWTProtectedBearerToken(t *testing.T) {
	app := newProtectedApp()

	token := signToken(t, jwt.MapClaims{
		"sub":  "5f2b7c9e-8d13-4a6f-9b01-3c4d5e6f7a8b",
		"name": "Alice",
		"role": "Agent",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		UserID   string `json:"user_id"`
		UserName string `json:"user_name"`
		UserRole string `json:"user_role"`
	}
	require.NoError(t, decodeJSON(resp, &body))
	require.Equal(t, "5f2b7c9e-8d13-4a6f-9b01-3c4d5e6f7a8b", body.UserID)
	require.Equal(t, "Alice", body.UserName)
	require.Equal(t, "agent", body.UserRole)
}

func TestJWTProtectedQueryTokenFallback(t *testing.T) {
	app := newProtectedApp()

	token := signToken(t, jwt.MapClaims{
		"user_id": "bob",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/me?token="+token, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		UserID string `json:"user_id"`
	}
	require.NoError(t, decodeJSON(resp, &body))
	require.Equal(t, "bob", body.UserID)
}

func TestJWTProtectedRejectsMissingToken(t *testing.T) {
	app := newProtectedApp()

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsExpiredToken(t *testing.T) {
	app := newProtectedApp()

	token := signToken(t, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsTokenWithoutSubject(t *testing.T) {
	app := newProtectedApp()

	token := signToken(t, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
