package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// EmbeddingDim is the face embedding dimensionality (ArcFace output).
const EmbeddingDim = 512

type Face struct {
	ID      uuid.UUID `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	AssetID uuid.UUID `gorm:"type:uuid;not null;index"`

	// Bounding box (x, y, width, height as fraction of image dimensions, 0-1)
	BboxX      float64 `gorm:"not null"`
	BboxY      float64 `gorm:"not null"`
	BboxWidth  float64 `gorm:"not null"`
	BboxHeight float64 `gorm:"not null"`

	// Detection confidence (0-1)
	Confidence float64 `gorm:"not null"`

	// Optional 5-point landmarks (eyes, nose, mouth corners), stored as a
	// flat normalized array [x1, y1, x2, y2, ...] encoded as JSON.
	Landmarks string `gorm:"type:jsonb"`

	// Face embedding vector, L2-normalized. Nullable: embedding may have
	// failed even when detection succeeded.
	Embedding *pgvector.Vector `gorm:"type:vector(512)"`

	// Assigned person; nil until the clustering engine (or a user) assigns one.
	PersonID *uuid.UUID `gorm:"type:uuid;index"`

	// Aligned face crop saved alongside the asset thumbnails
	ThumbnailPath string `gorm:"type:varchar(500)"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// Relations
	Asset  Asset   `gorm:"foreignKey:AssetID"`
	Person *Person `gorm:"foreignKey:PersonID"`
}

func (Face) TableName() string {
	return "faces"
}

// HasEmbedding reports whether this face is eligible for clustering.
func (f *Face) HasEmbedding() bool {
	return f.Embedding != nil
}

// BeforeCreate assigns an ID so callers can reference faces before flush.
func (f *Face) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
