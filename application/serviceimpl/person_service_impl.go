package serviceimpl

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pixvault/domain/models"
	"pixvault/domain/repositories"
	"pixvault/domain/services"
	"pixvault/infrastructure/worker"
	"pixvault/pkg/logger"
)

type PersonServiceImpl struct {
	personRepo repositories.PersonRepository
	faceRepo   repositories.FaceRepository
	locks      worker.StateStore
	events     worker.Broadcaster
}

func NewPersonService(
	personRepo repositories.PersonRepository,
	faceRepo repositories.FaceRepository,
	locks worker.StateStore,
	events worker.Broadcaster,
) services.PersonService {
	return &PersonServiceImpl{
		personRepo: personRepo,
		faceRepo:   faceRepo,
		locks:      locks,
		events:     events,
	}
}

func (s *PersonServiceImpl) GetPersons(ctx context.Context, ownerID uuid.UUID, page, limit int) ([]models.Person, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}
	return s.personRepo.GetByOwner(ctx, ownerID, false, (page-1)*limit, limit)
}

func (s *PersonServiceImpl) GetPerson(ctx context.Context, ownerID, personID uuid.UUID) (*models.Person, error) {
	return s.ownedPerson(ctx, ownerID, personID)
}

func (s *PersonServiceImpl) GetFaces(ctx context.Context, ownerID, personID uuid.UUID) ([]models.Face, error) {
	if _, err := s.ownedPerson(ctx, ownerID, personID); err != nil {
		return nil, err
	}
	return s.faceRepo.GetByPerson(ctx, personID)
}

func (s *PersonServiceImpl) UpdatePerson(ctx context.Context, ownerID, personID uuid.UUID, update services.PersonUpdate) error {
	person, err := s.ownedPerson(ctx, ownerID, personID)
	if err != nil {
		return err
	}

	if update.Name != nil {
		person.Name = *update.Name
	}
	if update.IsHidden != nil {
		person.IsHidden = *update.IsHidden
	}
	if update.IsFavorite != nil {
		person.IsFavorite = *update.IsFavorite
	}
	if err := s.personRepo.Update(ctx, personID, person); err != nil {
		return fmt.Errorf("update person: %w", err)
	}

	if s.events != nil {
		s.events.BroadcastToUser(ownerID, "person:updated", map[string]interface{}{
			"personId":   personID.String(),
			"name":       person.Name,
			"isHidden":   person.IsHidden,
			"isFavorite": person.IsFavorite,
		})
	}
	return nil
}

// MergePersons folds merge into keep under the owner's clustering lock so a
// concurrent clustering pass cannot assign faces to the disappearing person.
func (s *PersonServiceImpl) MergePersons(ctx context.Context, ownerID, keepID, mergeID uuid.UUID) error {
	if keepID == mergeID {
		return services.ErrMergeSelf
	}

	acquired, err := s.locks.AcquireLock(ctx, clusterLockName(ownerID), clusterLockTTL)
	if err != nil {
		return fmt.Errorf("acquire cluster lock: %w", err)
	}
	if !acquired {
		return services.ErrClusteringBusy
	}
	defer func() {
		_ = s.locks.ReleaseLock(context.Background(), clusterLockName(ownerID))
	}()

	keep, err := s.ownedPerson(ctx, ownerID, keepID)
	if err != nil {
		return err
	}
	merge, err := s.ownedPerson(ctx, ownerID, mergeID)
	if err != nil {
		return err
	}

	// The merge target must be live so tombstone forwarding stays acyclic.
	if keep.Tombstoned() {
		return services.ErrMergeIntoTombstone
	}
	if merge.Tombstoned() {
		return services.ErrPersonNotFound
	}

	if err := s.faceRepo.ReassignPerson(ctx, mergeID, keepID); err != nil {
		return fmt.Errorf("reassign faces: %w", err)
	}
	if err := s.personRepo.MarkMerged(ctx, mergeID, keepID); err != nil {
		return fmt.Errorf("tombstone person: %w", err)
	}

	count, err := s.faceRepo.CountByPerson(ctx, keepID)
	if err != nil {
		return fmt.Errorf("recount faces: %w", err)
	}
	if err := s.personRepo.UpdateFaceCount(ctx, keepID, int(count)); err != nil {
		return fmt.Errorf("update face count: %w", err)
	}

	logger.Cluster("merge", "Persons merged", map[string]interface{}{
		"ownerId": ownerID.String(),
		"keep":    keepID.String(),
		"merged":  mergeID.String(),
		"faces":   count,
	})

	if s.events != nil {
		s.events.BroadcastToUser(ownerID, "person:merged", map[string]interface{}{
			"keepId":   keepID.String(),
			"mergedId": mergeID.String(),
		})
	}
	return nil
}

// DeletePerson detaches every face first so they become eligible for the
// next clustering pass.
func (s *PersonServiceImpl) DeletePerson(ctx context.Context, ownerID, personID uuid.UUID) error {
	if _, err := s.ownedPerson(ctx, ownerID, personID); err != nil {
		return err
	}

	acquired, err := s.locks.AcquireLock(ctx, clusterLockName(ownerID), clusterLockTTL)
	if err != nil {
		return fmt.Errorf("acquire cluster lock: %w", err)
	}
	if !acquired {
		return services.ErrClusteringBusy
	}
	defer func() {
		_ = s.locks.ReleaseLock(context.Background(), clusterLockName(ownerID))
	}()

	if err := s.faceRepo.DetachPerson(ctx, personID); err != nil {
		return fmt.Errorf("detach faces: %w", err)
	}
	if err := s.personRepo.Delete(ctx, personID); err != nil {
		return fmt.Errorf("delete person: %w", err)
	}

	if s.events != nil {
		s.events.BroadcastToUser(ownerID, "person:deleted", map[string]interface{}{
			"personId": personID.String(),
		})
	}
	return nil
}

func (s *PersonServiceImpl) ownedPerson(ctx context.Context, ownerID, personID uuid.UUID) (*models.Person, error) {
	person, err := s.personRepo.GetByID(ctx, personID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrPersonNotFound
		}
		return nil, err
	}
	if person.OwnerID != ownerID {
		return nil, services.ErrPersonNotFound
	}
	return person, nil
}
