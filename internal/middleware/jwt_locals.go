package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Windi-Fikriyansyah/freelancehub/internal/utils"
)

func AttachJWTLocals() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Locals("user")
		if raw == nil {
			return fiber.ErrUnauthorized
		}

		token, ok := raw.(*jwt.Token)
		if !ok || token == nil {
			return fiber.ErrUnauthorized
		}

		claims, ok := token.Claims.(*utils.Claims)
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			return fiber.ErrUnauthorized
		}

		setLocals(c, claims)
		return c.Next()
	}
}

func setLocals(c *fiber.Ctx, claims *utils.Claims) {
	c.Locals("userId", strings.TrimSpace(claims.UserID))
	c.Locals("username", claims.Username)
	c.Locals("role", strings.ToLower(strings.TrimSpace(claims.Role)))
}
