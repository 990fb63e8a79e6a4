package serviceimpl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"pixvault/domain/services"
	"pixvault/infrastructure/worker"
)

func newClusterFixture(events *fakeBroadcaster) (*fakeFaceRepo, *fakePersonRepo, services.FaceClusterService) {
	faceRepo := newFakeFaceRepo()
	personRepo := newFakePersonRepo()
	svc := NewClusterService(faceRepo, personRepo, worker.NewMemoryState(), events, 0.5, 2)
	return faceRepo, personRepo, svc
}

func TestClusterFacesGroupsSimilarEmbeddings(t *testing.T) {
	events := &fakeBroadcaster{}
	faceRepo, personRepo, svc := newClusterFixture(events)
	owner := uuid.New()

	// Two tight groups along orthogonal axes plus one outlier.
	a1 := faceRepo.addFace(owner, []float32{1, 0.01, 0}, 0.9)
	a2 := faceRepo.addFace(owner, []float32{1, 0.02, 0}, 0.95)
	a3 := faceRepo.addFace(owner, []float32{1, 0, 0.01}, 0.8)
	b1 := faceRepo.addFace(owner, []float32{0, 1, 0.01}, 0.9)
	b2 := faceRepo.addFace(owner, []float32{0.01, 1, 0}, 0.85)
	outlier := faceRepo.addFace(owner, []float32{-1, -1, 1}, 0.7)

	result, err := svc.ClusterFaces(context.Background(), owner)
	if err != nil {
		t.Fatal(err)
	}

	if result.TotalFaces != 6 {
		t.Errorf("TotalFaces = %d, want 6", result.TotalFaces)
	}
	if result.Clusters != 2 {
		t.Errorf("Clusters = %d, want 2", result.Clusters)
	}
	if result.CreatedPersons != 2 {
		t.Errorf("CreatedPersons = %d, want 2", result.CreatedPersons)
	}
	if result.AssignedFaces != 5 {
		t.Errorf("AssignedFaces = %d, want 5", result.AssignedFaces)
	}
	if result.NoiseFaces != 1 {
		t.Errorf("NoiseFaces = %d, want 1", result.NoiseFaces)
	}

	// Group A all share one person, group B another.
	get := func(id uuid.UUID) *uuid.UUID {
		f, err := faceRepo.GetByID(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		return f.PersonID
	}
	pa := get(a1.ID)
	if pa == nil || get(a2.ID) == nil || get(a3.ID) == nil {
		t.Fatal("group A face left unassigned")
	}
	if *get(a2.ID) != *pa || *get(a3.ID) != *pa {
		t.Error("group A split across persons")
	}
	pb := get(b1.ID)
	if pb == nil || get(b2.ID) == nil || *get(b2.ID) != *pb {
		t.Error("group B split across persons")
	}
	if *pa == *pb {
		t.Error("distinct groups collapsed into one person")
	}
	if get(outlier.ID) != nil {
		t.Error("noise face was assigned a person")
	}

	// Denormalized counts and cover faces were refreshed.
	person, err := personRepo.GetByID(context.Background(), *pa)
	if err != nil {
		t.Fatal(err)
	}
	if person.FaceCount != 3 {
		t.Errorf("FaceCount = %d, want 3", person.FaceCount)
	}
	if person.CoverFaceID == nil {
		t.Error("cover face not set")
	}

	if !events.has("person:updated") {
		t.Error("no person:updated event broadcast")
	}
}

func TestClusterFacesFewFacesIsNoop(t *testing.T) {
	faceRepo, personRepo, svc := newClusterFixture(nil)
	owner := uuid.New()
	faceRepo.addFace(owner, []float32{1, 0, 0}, 0.9)

	result, err := svc.ClusterFaces(context.Background(), owner)
	if err != nil {
		t.Fatal(err)
	}
	if result.Clusters != 0 || result.AssignedFaces != 0 {
		t.Errorf("unexpected work on singleton: %+v", result)
	}

	if n, _ := personRepo.Count(context.Background(), owner); n != 0 {
		t.Errorf("persons created for singleton: %d", n)
	}
}

func TestClusterFacesIsIdempotent(t *testing.T) {
	faceRepo, personRepo, svc := newClusterFixture(nil)
	owner := uuid.New()
	faceRepo.addFace(owner, []float32{1, 0.01, 0}, 0.9)
	faceRepo.addFace(owner, []float32{1, 0.02, 0}, 0.9)

	if _, err := svc.ClusterFaces(context.Background(), owner); err != nil {
		t.Fatal(err)
	}
	second, err := svc.ClusterFaces(context.Background(), owner)
	if err != nil {
		t.Fatal(err)
	}

	if second.TotalFaces != 0 || second.AssignedFaces != 0 {
		t.Errorf("second pass did work: %+v", second)
	}
	if n, _ := personRepo.Count(context.Background(), owner); n != 1 {
		t.Errorf("persons = %d, want 1", n)
	}
}

func TestClusterFacesRespectsOwnerLock(t *testing.T) {
	faceRepo := newFakeFaceRepo()
	personRepo := newFakePersonRepo()
	locks := worker.NewMemoryState()
	svc := NewClusterService(faceRepo, personRepo, locks, nil, 0.5, 2)
	owner := uuid.New()

	ok, err := locks.AcquireLock(context.Background(), "cluster:"+owner.String(), time.Minute)
	if err != nil || !ok {
		t.Fatalf("setup lock: (%v, %v)", ok, err)
	}

	_, err = svc.ClusterFaces(context.Background(), owner)
	if !errors.Is(err, services.ErrClusteringBusy) {
		t.Errorf("err = %v, want ErrClusteringBusy", err)
	}
}
