package middleware

import (
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/freelancehub/internal/utils"
)

// CookieName holds the session JWT for both the pages and the API.
const CookieName = "jm_token"

func JWTFromCookie(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := c.Cookies(CookieName)
		if tokenStr == "" {
			return fiber.ErrUnauthorized
		}

		token, _, err := utils.ParseJWT(secret, tokenStr)
		if err != nil || !token.Valid {
			return fiber.ErrUnauthorized
		}

		c.Locals("user", token)
		return c.Next()
	}
}

// OptionalJWT is JWTFromCookie for public pages: a missing or bad cookie
// leaves the request anonymous instead of failing it.
func OptionalJWT(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := c.Cookies(CookieName)
		if tokenStr == "" {
			return c.Next()
		}

		token, claims, err := utils.ParseJWT(secret, tokenStr)
		if err != nil || !token.Valid {
			c.ClearCookie(CookieName)
			return c.Next()
		}

		c.Locals("user", token)
		setLocals(c, claims)
		return c.Next()
	}
}

// RequireLogin redirects anonymous page visitors to loginPath.
func RequireLogin(loginPath string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if uid, _ := c.Locals("userId").(string); uid != "" {
			return c.Next()
		}
		return c.Redirect(loginPath+"?next="+url.QueryEscape(c.OriginalURL()), fiber.StatusFound)
	}
}
