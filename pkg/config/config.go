package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Inference  InferenceConfig
	Geocode    GeocodeConfig
	Pipeline   PipelineConfig
	Clustering ClusteringConfig
}

type AppConfig struct {
	Name string
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	// Enabled false runs queue, run state and locks in-process.
	Enabled bool
}

type StorageConfig struct {
	// Root directory for originals, thumbnails and face crops
	Root string
	// Upload size cap in bytes
	MaxUploadBytes int64
}

type InferenceConfig struct {
	// Directory where ONNX models are downloaded and cached
	ModelDir string
	// Path to the onnxruntime shared library
	RuntimeLib string
	// Disable to skip model loading entirely; ML stages yield empty results
	Enabled bool
	// Detection thresholds
	FaceThreshold   float32
	ObjectThreshold float32
}

type GeocodeConfig struct {
	Endpoint  string
	UserAgent string
	Enabled   bool
}

type PipelineConfig struct {
	DefaultWorkers   int
	ThumbnailWorkers int
	MLWorkers        int
	MaxRetries       int
	RecycleAfter     int
	// Age after which unprocessed assets are swept back into the pipeline
	StaleAfterMinutes int
}

type ClusteringConfig struct {
	Eps    float64
	MinPts int
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists (optional for production)
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	maxUpload, _ := strconv.ParseInt(getEnv("STORAGE_MAX_UPLOAD_BYTES", "524288000"), 10, 64)
	faceThresh, _ := strconv.ParseFloat(getEnv("INFERENCE_FACE_THRESHOLD", "0.5"), 32)
	objectThresh, _ := strconv.ParseFloat(getEnv("INFERENCE_OBJECT_THRESHOLD", "0.25"), 32)
	eps, _ := strconv.ParseFloat(getEnv("CLUSTER_EPS", "0.5"), 64)
	minPts, _ := strconv.Atoi(getEnv("CLUSTER_MIN_PTS", "2"))
	defaultWorkers, _ := strconv.Atoi(getEnv("PIPELINE_DEFAULT_WORKERS", "4"))
	thumbWorkers, _ := strconv.Atoi(getEnv("PIPELINE_THUMBNAIL_WORKERS", "2"))
	mlWorkers, _ := strconv.Atoi(getEnv("PIPELINE_ML_WORKERS", "1"))
	maxRetries, _ := strconv.Atoi(getEnv("PIPELINE_MAX_RETRIES", "3"))
	recycleAfter, _ := strconv.Atoi(getEnv("PIPELINE_RECYCLE_AFTER", "100"))
	staleAfter, _ := strconv.Atoi(getEnv("PIPELINE_STALE_AFTER_MINUTES", "60"))

	config := &Config{
		App: AppConfig{
			Name: getEnv("APP_NAME", "PixVault"),
			Port: getEnv("APP_PORT", "3000"),
			Env:  getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "pixvault"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			Enabled:  getEnv("REDIS_ENABLED", "true") == "true",
		},
		Storage: StorageConfig{
			Root:           getEnv("STORAGE_ROOT", "data"),
			MaxUploadBytes: maxUpload,
		},
		Inference: InferenceConfig{
			ModelDir:        getEnv("INFERENCE_MODEL_DIR", "models"),
			RuntimeLib:      getEnv("INFERENCE_RUNTIME_LIB", "/usr/lib/libonnxruntime.so"),
			Enabled:         getEnv("INFERENCE_ENABLED", "true") == "true",
			FaceThreshold:   float32(faceThresh),
			ObjectThreshold: float32(objectThresh),
		},
		Geocode: GeocodeConfig{
			Endpoint:  getEnv("GEOCODE_ENDPOINT", "https://nominatim.openstreetmap.org/reverse"),
			UserAgent: getEnv("GEOCODE_USER_AGENT", "pixvault/1.0"),
			Enabled:   getEnv("GEOCODE_ENABLED", "true") == "true",
		},
		Pipeline: PipelineConfig{
			DefaultWorkers:    defaultWorkers,
			ThumbnailWorkers:  thumbWorkers,
			MLWorkers:         mlWorkers,
			MaxRetries:        maxRetries,
			RecycleAfter:      recycleAfter,
			StaleAfterMinutes: staleAfter,
		},
		Clustering: ClusteringConfig{
			Eps:    eps,
			MinPts: minPts,
		},
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
