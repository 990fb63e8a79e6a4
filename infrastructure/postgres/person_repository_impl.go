package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pixvault/domain/models"
	"pixvault/domain/repositories"
)

type PersonRepositoryImpl struct {
	db *gorm.DB
}

func NewPersonRepository(db *gorm.DB) repositories.PersonRepository {
	return &PersonRepositoryImpl{db: db}
}

func (r *PersonRepositoryImpl) Create(ctx context.Context, person *models.Person) error {
	return r.db.WithContext(ctx).Create(person).Error
}

func (r *PersonRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	var person models.Person
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&person).Error
	if err != nil {
		return nil, err
	}
	return &person, nil
}

func (r *PersonRepositoryImpl) GetByOwner(ctx context.Context, ownerID uuid.UUID, includeTombstoned bool, offset, limit int) ([]models.Person, int64, error) {
	var persons []models.Person
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Person{}).Where("owner_id = ?", ownerID)
	if !includeTombstoned {
		query = query.Where("merged_into_id IS NULL")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("face_count DESC, name ASC").
		Offset(offset).
		Limit(limit).
		Find(&persons).Error

	return persons, total, err
}

func (r *PersonRepositoryImpl) Update(ctx context.Context, id uuid.UUID, person *models.Person) error {
	person.UpdatedAt = time.Now()
	// Select the curation columns explicitly: with a struct update gorm
	// drops zero values, which would make clearing a flag impossible.
	return r.db.WithContext(ctx).
		Model(&models.Person{}).
		Where("id = ?", id).
		Select("name", "is_hidden", "is_favorite", "updated_at").
		Updates(person).Error
}

func (r *PersonRepositoryImpl) UpdateFaceCount(ctx context.Context, id uuid.UUID, count int) error {
	return r.db.WithContext(ctx).
		Model(&models.Person{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"face_count": count,
			"updated_at": time.Now(),
		}).Error
}

func (r *PersonRepositoryImpl) SetCoverFace(ctx context.Context, id uuid.UUID, faceID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Person{}).
		Where("id = ?", id).
		Update("cover_face_id", faceID).Error
}

// MarkMerged tombstones a person after its faces have been reassigned.
func (r *PersonRepositoryImpl) MarkMerged(ctx context.Context, id uuid.UUID, mergedInto uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Person{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"merged_into_id": mergedInto,
			"face_count":     0,
			"cover_face_id":  nil,
			"updated_at":     time.Now(),
		}).Error
}

func (r *PersonRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Person{}).Error
}

func (r *PersonRepositoryImpl) Count(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Person{}).
		Where("owner_id = ? AND merged_into_id IS NULL", ownerID).
		Count(&count).Error
	return count, err
}
