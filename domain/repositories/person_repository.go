package repositories

import (
	"context"

	"github.com/google/uuid"

	"pixvault/domain/models"
)

type PersonRepository interface {
	Create(ctx context.Context, person *models.Person) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Person, error)
	GetByOwner(ctx context.Context, ownerID uuid.UUID, includeTombstoned bool, offset, limit int) ([]models.Person, int64, error)

	Update(ctx context.Context, id uuid.UUID, person *models.Person) error
	UpdateFaceCount(ctx context.Context, id uuid.UUID, count int) error
	SetCoverFace(ctx context.Context, id uuid.UUID, faceID uuid.UUID) error
	MarkMerged(ctx context.Context, id uuid.UUID, mergedInto uuid.UUID) error

	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context, ownerID uuid.UUID) (int64, error)
}
