package serviceimpl

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"pixvault/domain/models"
	"pixvault/domain/services"
	"pixvault/infrastructure/worker"
)

func newPersonFixture(events *fakeBroadcaster) (*fakeFaceRepo, *fakePersonRepo, services.PersonService) {
	faceRepo := newFakeFaceRepo()
	personRepo := newFakePersonRepo()
	svc := NewPersonService(personRepo, faceRepo, worker.NewMemoryState(), events)
	return faceRepo, personRepo, svc
}

func addPerson(t *testing.T, repo *fakePersonRepo, ownerID uuid.UUID) *models.Person {
	t.Helper()
	p := &models.Person{ID: uuid.New(), OwnerID: ownerID}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p
}

func assignFaces(t *testing.T, repo *fakeFaceRepo, ownerID, personID uuid.UUID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		f := repo.addFace(ownerID, []float32{1, 0, 0}, 0.9)
		pid := personID
		if err := repo.UpdatePersonID(context.Background(), f.ID, &pid); err != nil {
			t.Fatal(err)
		}
	}
}

func TestMergePersonsMovesFacesAndTombstones(t *testing.T) {
	events := &fakeBroadcaster{}
	faceRepo, personRepo, svc := newPersonFixture(events)
	owner := uuid.New()

	keep := addPerson(t, personRepo, owner)
	merge := addPerson(t, personRepo, owner)
	assignFaces(t, faceRepo, owner, keep.ID, 2)
	assignFaces(t, faceRepo, owner, merge.ID, 3)

	if err := svc.MergePersons(context.Background(), owner, keep.ID, merge.ID); err != nil {
		t.Fatal(err)
	}

	kept, err := personRepo.GetByID(context.Background(), keep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if kept.FaceCount != 5 {
		t.Errorf("keep.FaceCount = %d, want 5", kept.FaceCount)
	}

	merged, err := personRepo.GetByID(context.Background(), merge.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !merged.Tombstoned() {
		t.Error("merged person not tombstoned")
	}
	if merged.MergedIntoID == nil || *merged.MergedIntoID != keep.ID {
		t.Error("tombstone does not forward to keep")
	}
	if merged.FaceCount != 0 {
		t.Errorf("merged.FaceCount = %d, want 0", merged.FaceCount)
	}

	if n, _ := faceRepo.CountByPerson(context.Background(), merge.ID); n != 0 {
		t.Errorf("faces left on merged person: %d", n)
	}
	if !events.has("person:merged") {
		t.Error("no person:merged event broadcast")
	}
}

func TestMergePersonsRejectsSelf(t *testing.T) {
	_, personRepo, svc := newPersonFixture(nil)
	owner := uuid.New()
	p := addPerson(t, personRepo, owner)

	err := svc.MergePersons(context.Background(), owner, p.ID, p.ID)
	if !errors.Is(err, services.ErrMergeSelf) {
		t.Errorf("err = %v, want ErrMergeSelf", err)
	}
}

func TestMergePersonsRejectsTombstonedTarget(t *testing.T) {
	_, personRepo, svc := newPersonFixture(nil)
	owner := uuid.New()

	keep := addPerson(t, personRepo, owner)
	merge := addPerson(t, personRepo, owner)
	other := addPerson(t, personRepo, owner)
	if err := personRepo.MarkMerged(context.Background(), keep.ID, other.ID); err != nil {
		t.Fatal(err)
	}

	err := svc.MergePersons(context.Background(), owner, keep.ID, merge.ID)
	if !errors.Is(err, services.ErrMergeIntoTombstone) {
		t.Errorf("err = %v, want ErrMergeIntoTombstone", err)
	}
}

func TestMergePersonsRejectsForeignOwner(t *testing.T) {
	_, personRepo, svc := newPersonFixture(nil)
	owner := uuid.New()

	keep := addPerson(t, personRepo, owner)
	foreign := addPerson(t, personRepo, uuid.New())

	err := svc.MergePersons(context.Background(), owner, keep.ID, foreign.ID)
	if !errors.Is(err, services.ErrPersonNotFound) {
		t.Errorf("err = %v, want ErrPersonNotFound", err)
	}
}

func TestDeletePersonDetachesFaces(t *testing.T) {
	faceRepo, personRepo, svc := newPersonFixture(nil)
	owner := uuid.New()

	p := addPerson(t, personRepo, owner)
	assignFaces(t, faceRepo, owner, p.ID, 2)

	if err := svc.DeletePerson(context.Background(), owner, p.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := personRepo.GetByID(context.Background(), p.ID); err == nil {
		t.Error("person row still present")
	}

	// Detached faces are eligible for re-clustering again.
	unassigned, err := faceRepo.GetUnassignedByOwner(context.Background(), owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(unassigned) != 2 {
		t.Errorf("unassigned faces = %d, want 2", len(unassigned))
	}
}

func TestUpdatePersonName(t *testing.T) {
	_, personRepo, svc := newPersonFixture(nil)
	owner := uuid.New()
	p := addPerson(t, personRepo, owner)

	name := "Ada"
	if err := svc.UpdatePerson(context.Background(), owner, p.ID, services.PersonUpdate{Name: &name}); err != nil {
		t.Fatal(err)
	}

	got, err := personRepo.GetByID(context.Background(), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Ada" {
		t.Errorf("Name = %q, want Ada", got.Name)
	}
}

func TestUpdatePersonCurationFlags(t *testing.T) {
	_, personRepo, svc := newPersonFixture(nil)
	owner := uuid.New()
	p := addPerson(t, personRepo, owner)
	ctx := context.Background()

	on := true
	if err := svc.UpdatePerson(ctx, owner, p.ID, services.PersonUpdate{IsHidden: &on, IsFavorite: &on}); err != nil {
		t.Fatal(err)
	}
	got, err := personRepo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsHidden || !got.IsFavorite {
		t.Errorf("flags = (hidden %v, favorite %v), want both set", got.IsHidden, got.IsFavorite)
	}

	// Clearing a flag must survive the round trip and leave the other
	// fields untouched.
	off := false
	if err := svc.UpdatePerson(ctx, owner, p.ID, services.PersonUpdate{IsHidden: &off}); err != nil {
		t.Fatal(err)
	}
	got, err = personRepo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsHidden {
		t.Error("hidden flag not cleared")
	}
	if !got.IsFavorite {
		t.Error("favorite flag lost by partial update")
	}
}

func TestUpdatePersonForeignOwner(t *testing.T) {
	_, personRepo, svc := newPersonFixture(nil)
	p := addPerson(t, personRepo, uuid.New())

	name := "Eve"
	err := svc.UpdatePerson(context.Background(), uuid.New(), p.ID, services.PersonUpdate{Name: &name})
	if !errors.Is(err, services.ErrPersonNotFound) {
		t.Errorf("err = %v, want ErrPersonNotFound", err)
	}
}

func TestGetPersonsExcludesTombstoned(t *testing.T) {
	_, personRepo, svc := newPersonFixture(nil)
	owner := uuid.New()

	live := addPerson(t, personRepo, owner)
	dead := addPerson(t, personRepo, owner)
	if err := personRepo.MarkMerged(context.Background(), dead.ID, live.ID); err != nil {
		t.Fatal(err)
	}

	persons, total, err := svc.GetPersons(context.Background(), owner, 1, 50)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(persons) != 1 || persons[0].ID != live.ID {
		t.Errorf("got %d persons (total %d), want only the live one", len(persons), total)
	}
}
