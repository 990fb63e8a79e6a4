package routes

import (
	"github.com/gofiber/fiber/v2"

	"pixvault/interfaces/api/handlers"
	"pixvault/interfaces/api/middleware"
)

func SetupPersonRoutes(router fiber.Router, h *handlers.Handlers) {
	persons := router.Group("/persons")
	persons.Use(middleware.RequireOwner())

	persons.Get("/", h.Person.List)
	persons.Get("/:id", h.Person.Get)
	persons.Get("/:id/faces", h.Person.Faces)
	persons.Patch("/:id", h.Person.Update)
	persons.Post("/:id/merge", h.Person.Merge)
	persons.Delete("/:id", h.Person.Delete)

	// Manual clustering pass, normally triggered by the pipeline
	persons.Post("/cluster", h.Person.Cluster)
}
