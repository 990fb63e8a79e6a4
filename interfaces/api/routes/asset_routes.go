package routes

import (
	"github.com/gofiber/fiber/v2"

	"pixvault/interfaces/api/handlers"
	"pixvault/interfaces/api/middleware"
)

func SetupAssetRoutes(router fiber.Router, h *handlers.Handlers) {
	assets := router.Group("/assets")
	assets.Use(middleware.RequireOwner())

	// Upload is the write-heavy endpoint, rate limited per owner
	assets.Post("/", middleware.UploadRateLimiter(), h.Ingest.Upload)

	assets.Get("/", h.Asset.List)
	assets.Get("/:id", h.Asset.Get)
	assets.Get("/:id/faces", h.Asset.Faces)
	assets.Get("/:id/tags", h.Asset.Tags)
}
