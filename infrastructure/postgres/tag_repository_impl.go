package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pixvault/domain/models"
	"pixvault/domain/repositories"
)

type TagRepositoryImpl struct {
	db *gorm.DB
}

func NewTagRepository(db *gorm.DB) repositories.TagRepository {
	return &TagRepositoryImpl{db: db}
}

func (r *TagRepositoryImpl) GetOrCreate(ctx context.Context, name string, tagType models.TagType) (*models.Tag, error) {
	var tag models.Tag
	err := r.db.WithContext(ctx).
		Where("name = ? AND tag_type = ?", name, tagType).
		First(&tag).Error
	if err == nil {
		return &tag, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	tag = models.Tag{Name: name, TagType: tagType}
	// A concurrent worker may create the same tag between the lookup and
	// the insert; DoNothing plus re-read handles the race.
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&tag).Error
	if err != nil {
		return nil, err
	}
	if tag.ID == uuid.Nil {
		err = r.db.WithContext(ctx).
			Where("name = ? AND tag_type = ?", name, tagType).
			First(&tag).Error
		if err != nil {
			return nil, err
		}
	}
	return &tag, nil
}

func (r *TagRepositoryImpl) UpsertAssetTag(ctx context.Context, assetTag *models.AssetTag) (bool, error) {
	var existing models.AssetTag
	err := r.db.WithContext(ctx).
		Where("asset_id = ? AND tag_id = ?", assetTag.AssetID, assetTag.TagID).
		First(&existing).Error
	if err == nil {
		return false, r.db.WithContext(ctx).Model(&models.AssetTag{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"confidence":  assetTag.Confidence,
				"bbox_x":      assetTag.BboxX,
				"bbox_y":      assetTag.BboxY,
				"bbox_width":  assetTag.BboxWidth,
				"bbox_height": assetTag.BboxHeight,
				"source":      assetTag.Source,
			}).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	return true, r.db.WithContext(ctx).Create(assetTag).Error
}

func (r *TagRepositoryImpl) GetByAsset(ctx context.Context, assetID uuid.UUID) ([]models.AssetTag, error) {
	var tags []models.AssetTag
	err := r.db.WithContext(ctx).
		Preload("Tag").
		Where("asset_id = ?", assetID).
		Order("confidence DESC").
		Find(&tags).Error
	return tags, err
}

func (r *TagRepositoryImpl) DeleteByAssetAndSource(ctx context.Context, assetID uuid.UUID, source string) error {
	// Collect the affected tag IDs first so their usage counters can be
	// recomputed after the rows are gone. A tag the model no longer
	// emits would otherwise keep its stale count forever.
	var tagIDs []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.AssetTag{}).
		Where("asset_id = ? AND source = ?", assetID, source).
		Distinct().
		Pluck("tag_id", &tagIDs).Error
	if err != nil {
		return err
	}
	if len(tagIDs) == 0 {
		return nil
	}

	err = r.db.WithContext(ctx).
		Where("asset_id = ? AND source = ?", assetID, source).
		Delete(&models.AssetTag{}).Error
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Exec(`
		UPDATE tags SET usage_count = (
			SELECT COUNT(*) FROM asset_tags WHERE asset_tags.tag_id = tags.id
		) WHERE id IN ?
	`, tagIDs).Error
}

// RecountUsage recomputes the denormalized counter from asset_tags.
func (r *TagRepositoryImpl) RecountUsage(ctx context.Context, tagID uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE tags SET usage_count = (
			SELECT COUNT(*) FROM asset_tags WHERE asset_tags.tag_id = tags.id
		) WHERE id = ?
	`, tagID).Error
}
