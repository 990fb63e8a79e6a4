package postgres

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pixvault/domain/models"
)

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func NewDatabase(config DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		config.Host, config.User, config.Password, config.DBName, config.Port, config.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	// Enable pgvector for face embeddings before the faces table exists
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("failed to enable pgvector extension: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Asset{},
		&models.Person{},
		&models.Face{},
		&models.Tag{},
		&models.AssetTag{},
	); err != nil {
		return fmt.Errorf("failed to run auto migrations: %v", err)
	}

	// AutoMigrate cannot express vector index types
	if err := db.Exec(
		"CREATE INDEX IF NOT EXISTS idx_faces_embedding ON faces USING hnsw (embedding vector_cosine_ops)",
	).Error; err != nil {
		return fmt.Errorf("failed to create embedding index: %v", err)
	}

	return nil
}
