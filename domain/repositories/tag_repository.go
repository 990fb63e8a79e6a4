package repositories

import (
	"context"

	"github.com/google/uuid"

	"pixvault/domain/models"
)

type TagRepository interface {
	// GetOrCreate returns the tag for (name, tagType), creating it when it
	// does not exist yet. Name is normalized to lowercase by the caller.
	GetOrCreate(ctx context.Context, name string, tagType models.TagType) (*models.Tag, error)

	// UpsertAssetTag inserts the association unless (asset, tag) already
	// exists, in which case the confidence and bbox are refreshed. Returns
	// true when a new row was created.
	UpsertAssetTag(ctx context.Context, assetTag *models.AssetTag) (bool, error)

	GetByAsset(ctx context.Context, assetID uuid.UUID) ([]models.AssetTag, error)

	// DeleteByAssetAndSource removes the asset's tag rows for one model
	// source and refreshes usage_count on every tag that lost a row.
	DeleteByAssetAndSource(ctx context.Context, assetID uuid.UUID, source string) error
	RecountUsage(ctx context.Context, tagID uuid.UUID) error
}
