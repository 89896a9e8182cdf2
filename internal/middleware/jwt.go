package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/primehaven/haven-chat-api/internal/utils"
)

// JWTProtected returns a middleware that validates JWT bearer tokens issued by
// the identity service. User ids are opaque strings (UUIDs upstream).
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := extractBearerToken(c)
		if tokenString == "" {
			// Websocket clients cannot set headers; allow token via query param.
			tokenString = strings.TrimSpace(c.Query("token"))
		}
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		userID := extractStringClaim(claims, "sub", "user_id", "id")
		if userID == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "token missing subject")
		}
		c.Locals("user_id", userID)

		if name := extractStringClaim(claims, "name", "user_name", "full_name"); name != "" {
			c.Locals("user_name", name)
		}
		if role := extractStringClaim(claims, "role"); role != "" {
			c.Locals("user_role", strings.ToLower(role))
		}

		return c.Next()
	}
}

func extractBearerToken(c *fiber.Ctx) string {
	authorization := c.Get("Authorization")
	if authorization == "" {
		return ""
	}

	const bearer = "Bearer "
	if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
		return ""
	}

	return strings.TrimSpace(authorization[len(bearer):])
}

func extractStringClaim(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		value, ok := claims[key]
		if !ok {
			continue
		}
		if str, ok := value.(string); ok {
			if trimmed := strings.TrimSpace(str); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// UserID returns the authenticated user's id bound by JWTProtected.
func UserID(c *fiber.Ctx) string {
	if value := c.Locals("user_id"); value != nil {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}

// UserName returns the authenticated user's display name, if the token carried one.
func UserName(c *fiber.Ctx) string {
	if value := c.Locals("user_name"); value != nil {
		if name, ok := value.(string); ok {
			return name
		}
	}
	return ""
}

// UserRole returns the authenticated user's role, if the token carried one.
func UserRole(c *fiber.Ctx) string {
	if value := c.Locals("user_role"); value != nil {
		if role, ok := value.(string); ok {
			return role
		}
	}
	return ""
}
