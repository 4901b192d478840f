package middleware

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// AccessLog tags every request with an X-Request-ID and logs it once the
// handler chain (including the error handler) has produced a status.
func AccessLog(logger *log.Logger) fiber.Handler {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("http")

	return func(c *fiber.Ctx) error {
		start := time.Now()

		rid := c.Get(RequestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(RequestIDHeader, rid)
		c.Locals("requestId", rid)

		chainErr := c.Next()
		if chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		fields := []interface{}{
			"rid", rid,
			"method", c.Method(),
			"path", c.OriginalURL(),
			"status", status,
			"latency", time.Since(start),
			"ip", c.IP(),
			"bytes", len(c.Response().Body()),
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("request", append(fields, "error", chainErr)...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
		return nil
	}
}
