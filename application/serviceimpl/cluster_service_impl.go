package serviceimpl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pixvault/domain/models"
	"pixvault/domain/repositories"
	"pixvault/domain/services"
	"pixvault/infrastructure/worker"
	"pixvault/pkg/clusters"
	"pixvault/pkg/logger"
)

// clusterLockTTL bounds how long a crashed run can block an owner.
const clusterLockTTL = 5 * time.Minute

func clusterLockName(ownerID uuid.UUID) string {
	return "cluster:" + ownerID.String()
}

type ClusterServiceImpl struct {
	faceRepo   repositories.FaceRepository
	personRepo repositories.PersonRepository
	locks      worker.StateStore
	events     worker.Broadcaster

	eps    float64
	minPts int
}

func NewClusterService(
	faceRepo repositories.FaceRepository,
	personRepo repositories.PersonRepository,
	locks worker.StateStore,
	events worker.Broadcaster,
	eps float64,
	minPts int,
) services.FaceClusterService {
	return &ClusterServiceImpl{
		faceRepo:   faceRepo,
		personRepo: personRepo,
		locks:      locks,
		events:     events,
		eps:        eps,
		minPts:     minPts,
	}
}

func (s *ClusterServiceImpl) ClusterFaces(ctx context.Context, ownerID uuid.UUID) (*services.ClusterRunResult, error) {
	acquired, err := s.locks.AcquireLock(ctx, clusterLockName(ownerID), clusterLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire cluster lock: %w", err)
	}
	if !acquired {
		return nil, services.ErrClusteringBusy
	}
	defer func() {
		_ = s.locks.ReleaseLock(context.Background(), clusterLockName(ownerID))
	}()

	faces, err := s.faceRepo.GetUnassignedByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load unassigned faces: %w", err)
	}

	result := &services.ClusterRunResult{TotalFaces: len(faces)}
	if len(faces) < 2 {
		return result, nil
	}

	embeddings := make([][]float32, len(faces))
	for i := range faces {
		embeddings[i] = faces[i].Embedding.Slice()
	}

	clusterer, err := clusters.NewDBSCAN(s.eps, s.minPts, clusters.CosineDistance)
	if err != nil {
		return nil, fmt.Errorf("configure clusterer: %w", err)
	}
	if err := clusterer.Learn(embeddings); err != nil {
		return nil, fmt.Errorf("cluster embeddings: %w", err)
	}

	guesses := clusterer.Guesses()
	members := map[int][]*models.Face{}
	for i, cluster := range guesses {
		if cluster == 0 {
			result.NoiseFaces++
			continue
		}
		members[cluster] = append(members[cluster], &faces[i])
	}
	result.Clusters = len(members)

	touched := map[uuid.UUID]bool{}
	for _, group := range members {
		personID, created, err := s.resolvePerson(ctx, ownerID, group)
		if err != nil {
			return nil, err
		}
		if created {
			result.CreatedPersons++
		}

		for _, face := range group {
			if face.PersonID != nil && *face.PersonID == personID {
				continue
			}
			if err := s.faceRepo.UpdatePersonID(ctx, face.ID, &personID); err != nil {
				return nil, fmt.Errorf("assign face %s: %w", face.ID, err)
			}
			result.AssignedFaces++
		}
		touched[personID] = true
	}

	for personID := range touched {
		if err := s.refreshPerson(ctx, personID); err != nil {
			return nil, err
		}
	}

	logger.Cluster("run_done", "Clustering pass complete", map[string]interface{}{
		"ownerId":  ownerID.String(),
		"faces":    result.TotalFaces,
		"clusters": result.Clusters,
		"created":  result.CreatedPersons,
		"assigned": result.AssignedFaces,
		"noise":    result.NoiseFaces,
	})

	if s.events != nil && result.AssignedFaces > 0 {
		s.events.BroadcastToUser(ownerID, "person:updated", map[string]interface{}{
			"clusters":       result.Clusters,
			"createdPersons": result.CreatedPersons,
			"assignedFaces":  result.AssignedFaces,
		})
	}

	return result, nil
}

// resolvePerson picks the identity a cluster collapses into. If any member
// already carries a live person, that person wins; otherwise a new one is
// created. Incremental runs only see unassigned faces, so an existing person
// can only enter through a face the user manually assigned.
func (s *ClusterServiceImpl) resolvePerson(ctx context.Context, ownerID uuid.UUID, group []*models.Face) (uuid.UUID, bool, error) {
	for _, face := range group {
		if face.PersonID == nil {
			continue
		}
		person, err := s.personRepo.GetByID(ctx, *face.PersonID)
		if err != nil {
			continue
		}
		if !person.Tombstoned() {
			return person.ID, false, nil
		}
	}

	person := &models.Person{
		ID:      uuid.New(),
		OwnerID: ownerID,
	}
	if err := s.personRepo.Create(ctx, person); err != nil {
		return uuid.Nil, false, fmt.Errorf("create person: %w", err)
	}
	return person.ID, true, nil
}

// refreshPerson recomputes the denormalized face count and backfills the
// cover face when missing.
func (s *ClusterServiceImpl) refreshPerson(ctx context.Context, personID uuid.UUID) error {
	count, err := s.faceRepo.CountByPerson(ctx, personID)
	if err != nil {
		return fmt.Errorf("count faces: %w", err)
	}
	if err := s.personRepo.UpdateFaceCount(ctx, personID, int(count)); err != nil {
		return fmt.Errorf("update face count: %w", err)
	}

	person, err := s.personRepo.GetByID(ctx, personID)
	if err != nil {
		return err
	}
	if person.CoverFaceID == nil {
		faces, err := s.faceRepo.GetByPerson(ctx, personID)
		if err != nil {
			return err
		}
		if len(faces) > 0 {
			best := faces[0]
			for _, f := range faces[1:] {
				if f.Confidence > best.Confidence {
					best = f
				}
			}
			if err := s.personRepo.SetCoverFace(ctx, personID, best.ID); err != nil {
				return fmt.Errorf("set cover face: %w", err)
			}
		}
	}
	return nil
}
