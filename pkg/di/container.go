package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"pixvault/application/serviceimpl"
	"pixvault/domain/repositories"
	"pixvault/domain/services"
	"pixvault/infrastructure/eventbus"
	"pixvault/infrastructure/exifmeta"
	"pixvault/infrastructure/geocode"
	"pixvault/infrastructure/inference"
	"pixvault/infrastructure/mediaprobe"
	"pixvault/infrastructure/postgres"
	"pixvault/infrastructure/redis"
	"pixvault/infrastructure/storage"
	"pixvault/infrastructure/thumbnail"
	"pixvault/infrastructure/vision"
	"pixvault/infrastructure/worker"
	"pixvault/pkg/config"
	"pixvault/pkg/logger"
	"pixvault/pkg/scheduler"
)

type Container struct {
	// Configuration
	Config *config.Config

	// Infrastructure
	DB             *gorm.DB
	RedisClient    *redis.RedisClient
	Storage        storage.Backend
	EventScheduler scheduler.EventScheduler
	Sessions       *inference.SessionCache
	Geocoder       *geocode.Resolver

	// Repositories
	UserRepository   repositories.UserRepository
	AssetRepository  repositories.AssetRepository
	FaceRepository   repositories.FaceRepository
	PersonRepository repositories.PersonRepository
	TagRepository    repositories.TagRepository

	// Services
	IngestService  services.IngestService
	AssetService   services.AssetService
	PersonService  services.PersonService
	ClusterService services.FaceClusterService

	// Pipeline
	Queue        worker.Queue
	State        worker.StateStore
	Orchestrator *worker.Orchestrator
	Pool         *worker.Pool
}

func NewContainer() *Container {
	return &Container{}
}

func (c *Container) Initialize() error {
	if err := c.initConfig(); err != nil {
		return err
	}

	if err := c.initInfrastructure(); err != nil {
		return err
	}

	if err := c.initRepositories(); err != nil {
		return err
	}

	if err := c.initPipeline(); err != nil {
		return err
	}

	if err := c.initServices(); err != nil {
		return err
	}

	if err := c.initScheduler(); err != nil {
		return err
	}

	return nil
}

func (c *Container) initConfig() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	c.Config = cfg
	logger.Startup("config_loaded", "Configuration loaded", nil)
	return nil
}

func (c *Container) initInfrastructure() error {
	// Database
	dbConfig := postgres.DatabaseConfig{
		Host:     c.Config.Database.Host,
		Port:     c.Config.Database.Port,
		User:     c.Config.Database.User,
		Password: c.Config.Database.Password,
		DBName:   c.Config.Database.DBName,
		SSLMode:  c.Config.Database.SSLMode,
	}

	db, err := postgres.NewDatabase(dbConfig)
	if err != nil {
		return err
	}
	c.DB = db
	logger.Startup("db_connected", "Database connected", nil)

	if err := postgres.Migrate(db); err != nil {
		return err
	}
	logger.Startup("db_migrated", "Database migrated", nil)

	// Redis backs the queue, run state and locks. Without it everything
	// runs in-process, which is fine for a single node.
	if c.Config.Redis.Enabled {
		client, err := redis.NewRedisClient(c.Config.Redis)
		if err != nil {
			logger.StartupWarn("redis_unavailable", "Redis unavailable, using in-process queue and state", map[string]interface{}{"error": err.Error()})
		} else {
			c.RedisClient = client
		}
	}

	// Local content-addressed storage
	store, err := storage.NewLocalBackend(c.Config.Storage.Root)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	c.Storage = store
	logger.Startup("storage_initialized", "Storage initialized", map[string]interface{}{"root": c.Config.Storage.Root})

	// ONNX session cache; sessions are created lazily so startup never
	// blocks on model downloads.
	if c.Config.Inference.Enabled {
		c.Sessions = inference.NewSessionCache(c.Config.Inference.ModelDir, c.Config.Inference.RuntimeLib)
		logger.Startup("inference_initialized", "Inference session cache initialized", map[string]interface{}{"modelDir": c.Config.Inference.ModelDir})
	} else {
		logger.Startup("inference_disabled", "Inference disabled, ML stages will yield empty results", nil)
	}

	if c.Config.Geocode.Enabled {
		c.Geocoder = geocode.NewResolver(c.Config.Geocode.Endpoint, c.Config.Geocode.UserAgent)
	}

	return nil
}

func (c *Container) initRepositories() error {
	c.UserRepository = postgres.NewUserRepository(c.DB)
	c.AssetRepository = postgres.NewAssetRepository(c.DB)
	c.FaceRepository = postgres.NewFaceRepository(c.DB)
	c.PersonRepository = postgres.NewPersonRepository(c.DB)
	c.TagRepository = postgres.NewTagRepository(c.DB)
	logger.Startup("repositories_initialized", "Repositories initialized", nil)
	return nil
}

func (c *Container) initPipeline() error {
	if c.RedisClient != nil {
		c.Queue = worker.NewRedisQueue(c.RedisClient.Client)
		c.State = worker.NewRedisState(c.RedisClient.Client)
	} else {
		c.Queue = worker.NewMemoryQueue()
		c.State = worker.NewMemoryState()
	}

	c.Orchestrator = worker.NewOrchestrator(c.Queue, c.State)

	// Clustering runs inside the pipeline (cluster_faces stage) and is
	// also reachable from the scheduler sweep.
	c.ClusterService = serviceimpl.NewClusterService(
		c.FaceRepository,
		c.PersonRepository,
		c.State,
		eventbus.Manager,
		c.Config.Clustering.Eps,
		c.Config.Clustering.MinPts,
	)

	var faceDetector *vision.FaceDetector
	var faceEmbedder *vision.FaceEmbedder
	var objectDetector *vision.ObjectDetector
	var sceneClassifier *vision.SceneClassifier

	if c.Sessions != nil {
		faceDetector = vision.NewFaceDetector(c.Sessions, c.Config.Inference.FaceThreshold)
		faceEmbedder = vision.NewFaceEmbedder(c.Sessions)
		objectDetector = vision.NewObjectDetector(c.Sessions, c.Config.Inference.ObjectThreshold)
		sceneClassifier = vision.NewSceneClassifier(c.Sessions, c.loadSceneLabels())
	}

	stages := worker.NewPipelineStages(
		c.AssetRepository,
		c.FaceRepository,
		c.TagRepository,
		c.Storage,
		exifmeta.NewExtractor(),
		thumbnail.NewGenerator(c.Storage),
		c.Geocoder,
		mediaprobe.NewProber("", ""),
		faceDetector,
		faceEmbedder,
		objectDetector,
		sceneClassifier,
		c.ClusterService,
		eventbus.Manager,
	)
	stages.RegisterAll(c.Orchestrator)

	poolConfig := worker.PoolConfig{
		LaneConcurrency: map[string]int{
			worker.LaneDefault:    c.Config.Pipeline.DefaultWorkers,
			worker.LaneThumbnails: c.Config.Pipeline.ThumbnailWorkers,
			worker.LaneML:         c.Config.Pipeline.MLWorkers,
		},
		RecycleAfter: c.Config.Pipeline.RecycleAfter,
		MaxRetries:   c.Config.Pipeline.MaxRetries,
		BaseDelay:    2 * time.Second,
	}

	// Worker recycling drops the inference sessions so a recycled ML
	// worker starts from a clean runtime.
	c.Pool = worker.NewPool(c.Orchestrator, c.Queue, poolConfig, func(lane string) {
		if lane == worker.LaneML && c.Sessions != nil {
			c.Sessions.Close()
		}
	})

	logger.Startup("pipeline_initialized", "Pipeline orchestrator and pool initialized", map[string]interface{}{
		"defaultWorkers":   poolConfig.LaneConcurrency[worker.LaneDefault],
		"thumbnailWorkers": poolConfig.LaneConcurrency[worker.LaneThumbnails],
		"mlWorkers":        poolConfig.LaneConcurrency[worker.LaneML],
	})
	return nil
}

// loadSceneLabels fetches the places365 category table through the model
// cache. Missing labels degrade the scene stage, never block startup.
func (c *Container) loadSceneLabels() []string {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	path, err := inference.EnsureModel(ctx, c.Config.Inference.ModelDir, inference.SceneLabelsSpec)
	if err != nil {
		logger.StartupWarn("scene_labels_unavailable", "Scene label table unavailable", map[string]interface{}{"error": err.Error()})
		return nil
	}
	labels, err := vision.LoadSceneLabels(path)
	if err != nil {
		logger.StartupWarn("scene_labels_unreadable", "Scene label table unreadable", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return labels
}

func (c *Container) initServices() error {
	c.IngestService = serviceimpl.NewIngestService(
		c.AssetRepository,
		c.UserRepository,
		c.Storage,
		c.Orchestrator,
	)
	c.AssetService = serviceimpl.NewAssetService(
		c.AssetRepository,
		c.FaceRepository,
		c.TagRepository,
	)
	c.PersonService = serviceimpl.NewPersonService(
		c.PersonRepository,
		c.FaceRepository,
		c.State,
		eventbus.Manager,
	)
	logger.Startup("services_initialized", "Services initialized", nil)
	return nil
}

func (c *Container) initScheduler() error {
	c.EventScheduler = scheduler.NewEventScheduler()

	// Assets whose pipeline never completed get resubmitted.
	staleAfter := time.Duration(c.Config.Pipeline.StaleAfterMinutes) * time.Minute
	err := c.EventScheduler.AddJob("stale-asset-sweep", "*/15 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		cutoff := time.Now().Add(-staleAfter)
		assets, err := c.AssetRepository.GetStale(ctx, cutoff, 100)
		if err != nil {
			logger.SchedulerError("stale_sweep", "Failed to list stale assets", err, nil)
			return
		}
		for i := range assets {
			if _, err := c.Orchestrator.SubmitAsset(ctx, &assets[i]); err != nil {
				logger.SchedulerError("stale_sweep", "Failed to resubmit stale asset", err, map[string]interface{}{
					"assetId": assets[i].ID.String(),
				})
			}
		}
		if len(assets) > 0 {
			logger.Scheduler("stale_sweep", "Resubmitted stale assets", map[string]interface{}{"count": len(assets)})
		}
	})
	if err != nil {
		return fmt.Errorf("schedule stale sweep: %w", err)
	}

	// Noise faces left unclustered get another chance once more faces
	// have accumulated.
	err = c.EventScheduler.AddJob("cluster-sweep", "0 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		owners, err := c.FaceRepository.OwnersWithUnassigned(ctx)
		if err != nil {
			logger.SchedulerError("cluster_sweep", "Failed to list owners with unassigned faces", err, nil)
			return
		}
		for _, owner := range owners {
			if _, err := c.ClusterService.ClusterFaces(ctx, owner); err != nil {
				if errors.Is(err, services.ErrClusteringBusy) {
					continue
				}
				logger.SchedulerError("cluster_sweep", "Clustering pass failed", err, map[string]interface{}{
					"ownerId": owner.String(),
				})
			}
		}
	})
	if err != nil {
		return fmt.Errorf("schedule cluster sweep: %w", err)
	}

	c.EventScheduler.Start()
	return nil
}

func (c *Container) StartPipeline() {
	c.Pool.Start()
}

func (c *Container) Cleanup() error {
	logger.Startup("cleanup_started", "Starting cleanup...", nil)

	if c.Pool != nil && c.Pool.IsRunning() {
		c.Pool.Stop()
	}

	if c.EventScheduler != nil && c.EventScheduler.IsRunning() {
		c.EventScheduler.Stop()
	}

	if c.Sessions != nil {
		c.Sessions.Close()
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			logger.StartupWarn("redis_close_failed", "Failed to close Redis connection", map[string]interface{}{"error": err.Error()})
		}
	}

	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				logger.StartupWarn("db_close_failed", "Failed to close database connection", map[string]interface{}{"error": err.Error()})
			}
		}
	}

	logger.Startup("cleanup_completed", "Cleanup completed", nil)
	return nil
}

func (c *Container) GetConfig() *config.Config {
	return c.Config
}
