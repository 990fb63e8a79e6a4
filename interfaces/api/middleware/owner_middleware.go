package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"pixvault/pkg/utils"
)

// OwnerHeader carries the acting owner's id. Authentication lives in
// front of this service; by the time a request arrives the caller has
// been resolved to an owner.
const OwnerHeader = "X-Owner-ID"

const ownerLocal = "ownerID"

// RequireOwner resolves the owner id from the request header and stores
// it in locals for the handlers.
func RequireOwner() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(OwnerHeader)
		if raw == "" {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Missing "+OwnerHeader+" header", nil)
		}
		ownerID, err := uuid.Parse(raw)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid owner id", err)
		}
		c.Locals(ownerLocal, ownerID)
		return c.Next()
	}
}

// OwnerID returns the owner resolved by RequireOwner.
func OwnerID(c *fiber.Ctx) uuid.UUID {
	if id, ok := c.Locals(ownerLocal).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}
