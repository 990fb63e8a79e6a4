package repositories

import (
	"context"

	"github.com/google/uuid"

	"pixvault/domain/models"
)

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	AddStorageUsed(ctx context.Context, id uuid.UUID, delta int64) error
}
