package repositories

import (
	"context"

	"github.com/google/uuid"

	"pixvault/domain/models"
)

type FaceRepository interface {
	Create(ctx context.Context, face *models.Face) error
	CreateBatch(ctx context.Context, faces []*models.Face) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Face, error)
	GetByAsset(ctx context.Context, assetID uuid.UUID) ([]models.Face, error)
	GetByPerson(ctx context.Context, personID uuid.UUID) ([]models.Face, error)

	// Faces eligible for clustering: person_id IS NULL, embedding NOT NULL,
	// scoped to one owner via the asset join.
	GetUnassignedByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Face, error)

	// Owners that currently have faces eligible for clustering, for the
	// periodic clustering sweep.
	OwnersWithUnassigned(ctx context.Context) ([]uuid.UUID, error)

	UpdatePersonID(ctx context.Context, id uuid.UUID, personID *uuid.UUID) error
	ReassignPerson(ctx context.Context, fromPersonID, toPersonID uuid.UUID) error
	DetachPerson(ctx context.Context, personID uuid.UUID) error
	CountByPerson(ctx context.Context, personID uuid.UUID) (int64, error)

	DeleteByAsset(ctx context.Context, assetID uuid.UUID) error
}
