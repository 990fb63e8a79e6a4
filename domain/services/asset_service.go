package services

import (
	"context"

	"github.com/google/uuid"

	"pixvault/domain/models"
)

// AssetService provides the read surface through which clients observe
// asynchronously-populated metadata (tags, faces, resolved location).
type AssetService interface {
	GetAsset(ctx context.Context, ownerID, assetID uuid.UUID) (*models.Asset, error)
	GetAssets(ctx context.Context, ownerID uuid.UUID, page, limit int) ([]models.Asset, int64, error)
	GetAssetFaces(ctx context.Context, ownerID, assetID uuid.UUID) ([]models.Face, error)
	GetAssetTags(ctx context.Context, ownerID, assetID uuid.UUID) ([]models.AssetTag, error)
}
