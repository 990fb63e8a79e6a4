package routes

import (
	"github.com/gofiber/fiber/v2"

	"pixvault/interfaces/api/handlers"
	"pixvault/pkg/config"
)

func SetupRoutes(app *fiber.App, h *handlers.Handlers, cfg *config.Config) {
	// Setup health and root routes
	SetupHealthRoutes(app, h.Health)

	// API version group
	api := app.Group("/api/v1")

	// Setup all route groups
	SetupAssetRoutes(api, h)
	SetupPersonRoutes(api, h)
	SetupPipelineRoutes(api, h)

	// Setup WebSocket routes (needs app, not api group)
	SetupWebSocketRoutes(app)
}
