package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pixvault/domain/models"
	"pixvault/domain/repositories"
)

type AssetRepositoryImpl struct {
	db *gorm.DB
}

func NewAssetRepository(db *gorm.DB) repositories.AssetRepository {
	return &AssetRepositoryImpl{db: db}
}

func (r *AssetRepositoryImpl) Create(ctx context.Context, asset *models.Asset) error {
	return r.db.WithContext(ctx).Create(asset).Error
}

func (r *AssetRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	var asset models.Asset
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&asset).Error
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *AssetRepositoryImpl) GetByOwnerAndHash(ctx context.Context, ownerID uuid.UUID, hash string) (*models.Asset, error) {
	var asset models.Asset
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND file_hash_sha256 = ?", ownerID, hash).
		First(&asset).Error
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *AssetRepositoryImpl) GetByOwner(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]models.Asset, int64, error) {
	var assets []models.Asset
	var total int64

	base := r.db.WithContext(ctx).Model(&models.Asset{}).
		Where("owner_id = ? AND deleted_at IS NULL", ownerID)

	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND deleted_at IS NULL", ownerID).
		Order("COALESCE(captured_at, created_at) DESC").
		Offset(offset).
		Limit(limit).
		Find(&assets).Error

	return assets, total, err
}

// UpdateMetadata applies only the fields the update carries. Nil pointers
// leave columns untouched so concurrent stages cannot clobber each other.
func (r *AssetRepositoryImpl) UpdateMetadata(ctx context.Context, id uuid.UUID, update repositories.AssetMetadataUpdate) error {
	values := map[string]interface{}{}

	if update.CapturedAt != nil {
		values["captured_at"] = *update.CapturedAt
	}
	if update.TimezoneOffset != nil {
		values["timezone_offset"] = *update.TimezoneOffset
	}
	if update.Latitude != nil {
		values["latitude"] = *update.Latitude
	}
	if update.Longitude != nil {
		values["longitude"] = *update.Longitude
	}
	if update.City != nil {
		values["city"] = *update.City
	}
	if update.Country != nil {
		values["country"] = *update.Country
	}
	if update.Width != nil {
		values["width"] = *update.Width
	}
	if update.Height != nil {
		values["height"] = *update.Height
	}
	if update.DurationSeconds != nil {
		values["duration_seconds"] = *update.DurationSeconds
	}
	if update.ExifData != nil {
		values["exif_data"] = *update.ExifData
	}
	if update.TinyPath != nil {
		values["tiny_path"] = *update.TinyPath
	}
	if update.ThumbPath != nil {
		values["thumb_path"] = *update.ThumbPath
	}
	if update.PreviewPath != nil {
		values["preview_path"] = *update.PreviewPath
	}
	if update.MLProcessedAt != nil {
		values["ml_processed_at"] = *update.MLProcessedAt
	}

	if len(values) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Model(&models.Asset{}).Where("id = ?", id).Updates(values).Error
}

func (r *AssetRepositoryImpl) MarkMLProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Asset{}).
		Where("id = ?", id).
		Update("ml_processed_at", at).Error
}

func (r *AssetRepositoryImpl) GetStale(ctx context.Context, cutoff time.Time, limit int) ([]models.Asset, error) {
	var assets []models.Asset
	err := r.db.WithContext(ctx).
		Where("ml_processed_at IS NULL AND deleted_at IS NULL AND created_at < ?", cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&assets).Error
	return assets, err
}

func (r *AssetRepositoryImpl) Count(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Asset{}).
		Where("owner_id = ? AND deleted_at IS NULL", ownerID).
		Count(&count).Error
	return count, err
}
