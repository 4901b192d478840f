package middleware

import (
	"errors"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
)

// ErrorHandler renders failures as the JSON envelope under /api and /ws,
// and as the "error" page template everywhere else.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		msg := "Internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
			if status < fiber.StatusInternalServerError {
				msg = fe.Message
			}
		}
		if status >= fiber.StatusInternalServerError {
			log.Error("unhandled error", "path", c.Path(), "error", err)
		}

		if isAPI(c.Path()) {
			return c.Status(status).JSON(fiber.Map{
				"success": false,
				"message": msg,
			})
		}

		c.Status(status)
		if rerr := c.Render("error", fiber.Map{
			"Title":   msg,
			"Status":  status,
			"Message": msg,
		}); rerr != nil {
			return c.Status(status).SendString(msg)
		}
		return nil
	}
}

func isAPI(path string) bool {
	return strings.HasPrefix(path, "/api") || strings.HasPrefix(path, "/ws")
}
