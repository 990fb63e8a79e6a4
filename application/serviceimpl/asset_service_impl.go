package serviceimpl

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pixvault/domain/models"
	"pixvault/domain/repositories"
	"pixvault/domain/services"
)

type AssetServiceImpl struct {
	assetRepo repositories.AssetRepository
	faceRepo  repositories.FaceRepository
	tagRepo   repositories.TagRepository
}

func NewAssetService(
	assetRepo repositories.AssetRepository,
	faceRepo repositories.FaceRepository,
	tagRepo repositories.TagRepository,
) services.AssetService {
	return &AssetServiceImpl{
		assetRepo: assetRepo,
		faceRepo:  faceRepo,
		tagRepo:   tagRepo,
	}
}

func (s *AssetServiceImpl) GetAsset(ctx context.Context, ownerID, assetID uuid.UUID) (*models.Asset, error) {
	return s.ownedAsset(ctx, ownerID, assetID)
}

func (s *AssetServiceImpl) GetAssets(ctx context.Context, ownerID uuid.UUID, page, limit int) ([]models.Asset, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return s.assetRepo.GetByOwner(ctx, ownerID, (page-1)*limit, limit)
}

func (s *AssetServiceImpl) GetAssetFaces(ctx context.Context, ownerID, assetID uuid.UUID) ([]models.Face, error) {
	if _, err := s.ownedAsset(ctx, ownerID, assetID); err != nil {
		return nil, err
	}
	return s.faceRepo.GetByAsset(ctx, assetID)
}

func (s *AssetServiceImpl) GetAssetTags(ctx context.Context, ownerID, assetID uuid.UUID) ([]models.AssetTag, error) {
	if _, err := s.ownedAsset(ctx, ownerID, assetID); err != nil {
		return nil, err
	}
	return s.tagRepo.GetByAsset(ctx, assetID)
}

func (s *AssetServiceImpl) ownedAsset(ctx context.Context, ownerID, assetID uuid.UUID) (*models.Asset, error) {
	asset, err := s.assetRepo.GetByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrAssetNotFound
		}
		return nil, err
	}
	if asset.OwnerID != ownerID || asset.DeletedAt != nil {
		return nil, services.ErrAssetNotFound
	}
	return asset, nil
}
