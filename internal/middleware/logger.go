package middleware

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"tasktracker/pkg/logger"
)

// ErrorHandler recovers panics into a 500 and logs every request.
func ErrorHandler() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				errMsg := fmt.Sprintf("Recovered from panic: %v", r)
				logger.ErrorLogger.Error(errMsg, zap.String("stack", string(debug.Stack())))
				err = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"message": "Internal server error",
					"success": false,
					"status":  fiber.StatusInternalServerError,
				})
			}
			logger.RequestLogger.Info("Request",
				zap.String("method", c.Method()),
				zap.String("url", c.OriginalURL()),
				zap.Int("status", c.Response().StatusCode()),
				zap.Duration("latency", time.Since(start)),
				zap.Int64("user_id", UserID(c)),
			)
		}()
		return c.Next()
	}
}

// ErrorResponder is the app-level error handler: fiber errors keep their
// code, anything else is logged and becomes a 500.
func ErrorResponder(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	} else {
		logger.ErrorLogger.Error("Unhandled error",
			zap.String("method", c.Method()),
			zap.String("url", c.OriginalURL()),
			zap.Error(err),
		)
	}
	return c.Status(code).JSON(fiber.Map{
		"message": message,
		"success": false,
		"status":  code,
	})
}
