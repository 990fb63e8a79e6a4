package services

import (
	"context"

	"github.com/google/uuid"

	"pixvault/domain/models"
)

// PersonUpdate carries the curation fields a client may change. Nil
// pointers mean "leave untouched".
type PersonUpdate struct {
	Name       *string
	IsHidden   *bool
	IsFavorite *bool
}

// Empty reports whether the update would change nothing.
func (u PersonUpdate) Empty() bool {
	return u.Name == nil && u.IsHidden == nil && u.IsFavorite == nil
}

// PersonService exposes the manual correction operations on person
// identities. Merge runs under the same per-owner lock as clustering.
type PersonService interface {
	GetPersons(ctx context.Context, ownerID uuid.UUID, page, limit int) ([]models.Person, int64, error)
	GetPerson(ctx context.Context, ownerID, personID uuid.UUID) (*models.Person, error)
	GetFaces(ctx context.Context, ownerID, personID uuid.UUID) ([]models.Face, error)

	// UpdatePerson applies name, hidden and favorite changes.
	UpdatePerson(ctx context.Context, ownerID, personID uuid.UUID, update PersonUpdate) error

	// MergePersons moves every face of merge into keep, tombstones merge
	// (faceCount 0, mergedInto keep) and recomputes keep's face count.
	MergePersons(ctx context.Context, ownerID, keepID, mergeID uuid.UUID) error

	// DeletePerson detaches all faces (making them eligible for
	// re-clustering) and removes the person record.
	DeletePerson(ctx context.Context, ownerID, personID uuid.UUID) error
}
