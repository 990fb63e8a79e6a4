package models

import (
	"time"

	"github.com/google/uuid"
)

type AssetType string

const (
	AssetTypeImage AssetType = "image"
	AssetTypeVideo AssetType = "video"
)

type Asset struct {
	ID      uuid.UUID `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	OwnerID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_assets_owner_hash,priority:1"`

	// Content identity. (owner_id, file_hash_sha256) is the dedup key:
	// uploading identical bytes twice returns the existing asset.
	FileHashSHA256   string `gorm:"type:varchar(64);not null;uniqueIndex:idx_assets_owner_hash,priority:2"`
	OriginalFilename string `gorm:"type:varchar(255)"`

	// Storage references
	StoragePath string `gorm:"type:text;not null"`
	TinyPath    string `gorm:"type:text"`
	ThumbPath   string `gorm:"type:text"`
	PreviewPath string `gorm:"type:text"`

	// File info
	FileSizeBytes   int64     `gorm:"not null"`
	MimeType        string    `gorm:"type:varchar(100);not null"`
	AssetType       AssetType `gorm:"type:varchar(20);not null;index"`
	Width           int
	Height          int
	DurationSeconds float64

	// Capture time as extracted from metadata
	CapturedAt     *time.Time `gorm:"index"`
	TimezoneOffset *int

	// Location
	Latitude  *float64
	Longitude *float64
	City      string `gorm:"type:varchar(255)"`
	Country   string `gorm:"type:varchar(255)"`

	// Raw technical metadata as JSON (camera make/model, exposure, orientation, ...)
	ExifData string `gorm:"type:jsonb"`

	// Set once the visual-intelligence stages have committed their results.
	// Stays nil indefinitely when models are unavailable.
	MLProcessedAt *time.Time

	// Soft delete is an API-layer concern; the pipeline never sets this.
	DeletedAt *time.Time `gorm:"index"`

	IsFavorite bool `gorm:"default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// Relations
	Owner User   `gorm:"foreignKey:OwnerID"`
	Faces []Face `gorm:"foreignKey:AssetID"`
}

func (Asset) TableName() string {
	return "assets"
}

// MLDone reports whether the intelligence stages have run for this asset.
func (a *Asset) MLDone() bool {
	return a.MLProcessedAt != nil
}
