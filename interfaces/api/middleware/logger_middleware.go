package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"pixvault/pkg/logger"
)

// LoggerMiddleware logs each request with latency and status.
func LoggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		logger.API("request", c.Method()+" "+c.Path(), map[string]interface{}{
			"status":  status,
			"latency": time.Since(start).String(),
			"ip":      c.IP(),
		})

		return err
	}
}
