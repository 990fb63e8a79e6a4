package handlers

import (
	"gorm.io/gorm"

	"pixvault/domain/services"
	"pixvault/infrastructure/redis"
	"pixvault/infrastructure/worker"
	"pixvault/pkg/config"
)

// Services contains the services the handlers depend on
type Services struct {
	IngestService  services.IngestService
	AssetService   services.AssetService
	PersonService  services.PersonService
	ClusterService services.FaceClusterService
}

// Handlers contains all HTTP handlers
type Handlers struct {
	Ingest   *IngestHandler
	Asset    *AssetHandler
	Person   *PersonHandler
	Pipeline *PipelineHandler
	Health   *HealthHandler
}

// NewHandlers creates all handlers with their dependencies
func NewHandlers(
	services *Services,
	orchestrator *worker.Orchestrator,
	pool *worker.Pool,
	db *gorm.DB,
	redisClient *redis.RedisClient,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		Ingest:   NewIngestHandler(services.IngestService, cfg.Storage.MaxUploadBytes),
		Asset:    NewAssetHandler(services.AssetService),
		Person:   NewPersonHandler(services.PersonService, services.ClusterService),
		Pipeline: NewPipelineHandler(orchestrator, services.IngestService),
		Health:   NewHealthHandler(db, redisClient, pool),
	}
}
