package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"

	"pixvault/interfaces/api/handlers"
	"pixvault/interfaces/api/middleware"
	"pixvault/interfaces/api/routes"
	"pixvault/pkg/di"
	"pixvault/pkg/logger"
)

func main() {
	// Initialize logger
	if err := logger.Init("logs", true); err != nil {
		fmt.Printf("Warning: Failed to initialize logger: %v\n", err)
	}
	logger.Startup("logger_init", "Logger initialized - logs will be written to ./logs/", nil)

	// Initialize DI container
	container := di.NewContainer()

	// Initialize all dependencies
	if err := container.Initialize(); err != nil {
		logger.StartupError("container_init_failed", "Failed to initialize container", err, nil)
		os.Exit(1)
	}

	cfg := container.GetConfig()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(),
		AppName:      cfg.App.Name,
		BodyLimit:    int(cfg.Storage.MaxUploadBytes) + 1024*1024,
	})

	// Setup middleware
	app.Use(middleware.LoggerMiddleware())
	app.Use(middleware.CorsMiddleware())

	// Create handlers from services
	h := handlers.NewHandlers(
		&handlers.Services{
			IngestService:  container.IngestService,
			AssetService:   container.AssetService,
			PersonService:  container.PersonService,
			ClusterService: container.ClusterService,
		},
		container.Orchestrator,
		container.Pool,
		container.DB,
		container.RedisClient,
		cfg,
	)

	// Setup routes
	routes.SetupRoutes(app, h, cfg)

	// Start the worker pool once routes are up
	container.StartPipeline()

	// Setup graceful shutdown
	setupGracefulShutdown(app, container)

	// Start server
	port := cfg.App.Port
	logger.Startup("server_starting", "Server starting", map[string]interface{}{
		"port":        port,
		"environment": cfg.App.Env,
		"health":      fmt.Sprintf("http://localhost:%s/health", port),
		"api":         fmt.Sprintf("http://localhost:%s/api/v1", port),
		"websocket":   fmt.Sprintf("ws://localhost:%s/ws", port),
	})

	if err := app.Listen(":" + port); err != nil {
		logger.StartupError("server_failed", "Server failed to start", err, nil)
		os.Exit(1)
	}
}

func setupGracefulShutdown(app *fiber.App, container *di.Container) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		logger.Startup("shutdown_started", "Gracefully shutting down", nil)

		if err := app.Shutdown(); err != nil {
			logger.StartupError("server_shutdown_failed", "Error shutting down server", err, nil)
		}

		if err := container.Cleanup(); err != nil {
			logger.StartupError("cleanup_failed", "Error during cleanup", err, nil)
		}

		logger.Startup("shutdown_complete", "Shutdown complete", nil)
		os.Exit(0)
	}()
}
