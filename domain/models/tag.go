package models

import (
	"time"

	"github.com/google/uuid"
)

type TagType string

const (
	TagTypeObject TagType = "object" // detected objects (car, dog, tree)
	TagTypeScene  TagType = "scene"  // scene classification (beach, mountain)
	TagTypeManual TagType = "manual" // user-added tags
	TagTypeColor  TagType = "color"  // dominant colors
	TagTypeText   TagType = "text"   // OCR detected text
)

// Tag is a deduplicated (name, type) pair shared across assets.
type Tag struct {
	ID uuid.UUID `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`

	// Lowercase, normalized name
	Name    string  `gorm:"type:varchar(100);not null;uniqueIndex:idx_tags_name_type,priority:1"`
	TagType TagType `gorm:"type:varchar(20);not null;uniqueIndex:idx_tags_name_type,priority:2"`

	// Denormalized usage counter for popularity sorting
	UsageCount int `gorm:"default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Tag) TableName() string {
	return "tags"
}

// AssetTag associates an asset with a tag, carrying the detection confidence
// and, for object tags, a normalized bounding box. Unique per (asset, tag).
type AssetTag struct {
	ID      uuid.UUID `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	AssetID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_asset_tags_asset_tag,priority:1"`
	TagID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_asset_tags_asset_tag,priority:2;index"`

	// ML confidence (1.0 for manual tags)
	Confidence float64 `gorm:"default:1.0"`

	// Bounding box for object tags (normalized 0-1, unset for scene tags)
	BboxX      *float64
	BboxY      *float64
	BboxWidth  *float64
	BboxHeight *float64

	// Source of the tag: producing model name, or "user"
	Source string `gorm:"type:varchar(50);default:'user'"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// Relations
	Asset Asset `gorm:"foreignKey:AssetID"`
	Tag   Tag   `gorm:"foreignKey:TagID"`
}

func (AssetTag) TableName() string {
	return "asset_tags"
}
