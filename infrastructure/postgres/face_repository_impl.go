package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pixvault/domain/models"
	"pixvault/domain/repositories"
)

type FaceRepositoryImpl struct {
	db *gorm.DB
}

func NewFaceRepository(db *gorm.DB) repositories.FaceRepository {
	return &FaceRepositoryImpl{db: db}
}

func (r *FaceRepositoryImpl) Create(ctx context.Context, face *models.Face) error {
	return r.db.WithContext(ctx).Create(face).Error
}

func (r *FaceRepositoryImpl) CreateBatch(ctx context.Context, faces []*models.Face) error {
	if len(faces) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(faces, 50).Error
}

func (r *FaceRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Face, error) {
	var face models.Face
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&face).Error
	if err != nil {
		return nil, err
	}
	return &face, nil
}

func (r *FaceRepositoryImpl) GetByAsset(ctx context.Context, assetID uuid.UUID) ([]models.Face, error) {
	var faces []models.Face
	err := r.db.WithContext(ctx).Where("asset_id = ?", assetID).Find(&faces).Error
	return faces, err
}

func (r *FaceRepositoryImpl) GetByPerson(ctx context.Context, personID uuid.UUID) ([]models.Face, error) {
	var faces []models.Face
	err := r.db.WithContext(ctx).Where("person_id = ?", personID).Find(&faces).Error
	return faces, err
}

func (r *FaceRepositoryImpl) GetUnassignedByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Face, error) {
	var faces []models.Face
	err := r.db.WithContext(ctx).
		Joins("JOIN assets ON assets.id = faces.asset_id").
		Where("assets.owner_id = ? AND faces.person_id IS NULL AND faces.embedding IS NOT NULL", ownerID).
		Find(&faces).Error
	return faces, err
}

func (r *FaceRepositoryImpl) OwnersWithUnassigned(ctx context.Context) ([]uuid.UUID, error) {
	var owners []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.Face{}).
		Joins("JOIN assets ON assets.id = faces.asset_id").
		Where("faces.person_id IS NULL AND faces.embedding IS NOT NULL").
		Distinct().
		Pluck("assets.owner_id", &owners).Error
	return owners, err
}

func (r *FaceRepositoryImpl) UpdatePersonID(ctx context.Context, id uuid.UUID, personID *uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Face{}).
		Where("id = ?", id).
		Update("person_id", personID).Error
}

func (r *FaceRepositoryImpl) ReassignPerson(ctx context.Context, fromPersonID, toPersonID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Face{}).
		Where("person_id = ?", fromPersonID).
		Update("person_id", toPersonID).Error
}

func (r *FaceRepositoryImpl) DetachPerson(ctx context.Context, personID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Face{}).
		Where("person_id = ?", personID).
		Update("person_id", nil).Error
}

func (r *FaceRepositoryImpl) CountByPerson(ctx context.Context, personID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Face{}).
		Where("person_id = ?", personID).
		Count(&count).Error
	return count, err
}

func (r *FaceRepositoryImpl) DeleteByAsset(ctx context.Context, assetID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("asset_id = ?", assetID).Delete(&models.Face{}).Error
}
