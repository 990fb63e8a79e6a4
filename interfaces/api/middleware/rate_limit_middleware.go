package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"pixvault/pkg/utils"
)

// UploadRateLimiter caps uploads per client so one importer cannot
// starve the ingest path.
func UploadRateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if owner := c.Get(OwnerHeader); owner != "" {
				return owner
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.ErrorResponse(c, fiber.StatusTooManyRequests, "Too many uploads. Please slow down.", nil)
		},
	})
}
