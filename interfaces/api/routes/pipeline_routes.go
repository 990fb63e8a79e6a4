package routes

import (
	"github.com/gofiber/fiber/v2"

	"pixvault/interfaces/api/handlers"
	"pixvault/interfaces/api/middleware"
)

func SetupPipelineRoutes(router fiber.Router, h *handlers.Handlers) {
	pipeline := router.Group("/pipeline")
	pipeline.Use(middleware.RequireOwner())

	pipeline.Get("/runs/:id", h.Pipeline.RunStatus)
	pipeline.Post("/assets/:id/reprocess", h.Pipeline.Reprocess)
}
