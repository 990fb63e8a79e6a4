package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pixvault/domain/models"
)

// AssetMetadataUpdate carries the fields the pipeline commits after the
// extraction stages. Nil pointers mean "leave untouched".
type AssetMetadataUpdate struct {
	CapturedAt      *time.Time
	TimezoneOffset  *int
	Latitude        *float64
	Longitude       *float64
	City            *string
	Country         *string
	Width           *int
	Height          *int
	DurationSeconds *float64
	ExifData        *string
	TinyPath        *string
	ThumbPath       *string
	PreviewPath     *string
	MLProcessedAt   *time.Time
}

type AssetRepository interface {
	Create(ctx context.Context, asset *models.Asset) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Asset, error)
	GetByOwnerAndHash(ctx context.Context, ownerID uuid.UUID, hash string) (*models.Asset, error)
	GetByOwner(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]models.Asset, int64, error)

	UpdateMetadata(ctx context.Context, id uuid.UUID, update AssetMetadataUpdate) error
	MarkMLProcessed(ctx context.Context, id uuid.UUID, at time.Time) error

	// Assets whose pipeline never completed (ml_processed_at is null and the
	// record is older than the cutoff); used by the reprocess sweep.
	GetStale(ctx context.Context, cutoff time.Time, limit int) ([]models.Asset, error)

	Count(ctx context.Context, ownerID uuid.UUID) (int64, error)
}
