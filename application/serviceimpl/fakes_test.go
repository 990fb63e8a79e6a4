package serviceimpl

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"pixvault/domain/models"
	"pixvault/domain/repositories"
)

// In-memory repository fakes shared by the service tests.

type fakeAssetRepo struct {
	mu     sync.Mutex
	assets map[uuid.UUID]*models.Asset
}

func newFakeAssetRepo() *fakeAssetRepo {
	return &fakeAssetRepo{assets: make(map[uuid.UUID]*models.Asset)}
}

func (r *fakeAssetRepo) Create(ctx context.Context, asset *models.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assets {
		if a.OwnerID == asset.OwnerID && a.FileHashSHA256 == asset.FileHashSHA256 {
			return gorm.ErrDuplicatedKey
		}
	}
	cp := *asset
	r.assets[asset.ID] = &cp
	return nil
}

func (r *fakeAssetRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAssetRepo) GetByOwnerAndHash(ctx context.Context, ownerID uuid.UUID, hash string) (*models.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assets {
		if a.OwnerID == ownerID && a.FileHashSHA256 == hash {
			cp := *a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAssetRepo) GetByOwner(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]models.Asset, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Asset
	for _, a := range r.assets {
		if a.OwnerID == ownerID && a.DeletedAt == nil {
			out = append(out, *a)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeAssetRepo) UpdateMetadata(ctx context.Context, id uuid.UUID, update repositories.AssetMetadataUpdate) error {
	return nil
}

func (r *fakeAssetRepo) MarkMLProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.assets[id]; ok {
		a.MLProcessedAt = &at
	}
	return nil
}

func (r *fakeAssetRepo) GetStale(ctx context.Context, cutoff time.Time, limit int) ([]models.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Asset
	for _, a := range r.assets {
		if a.MLProcessedAt == nil && a.CreatedAt.Before(cutoff) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeAssetRepo) Count(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.assets {
		if a.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

type fakeFaceRepo struct {
	mu    sync.Mutex
	faces map[uuid.UUID]*models.Face
	// ownerOf maps asset id to owner for the unassigned query.
	ownerOf map[uuid.UUID]uuid.UUID
}

func newFakeFaceRepo() *fakeFaceRepo {
	return &fakeFaceRepo{
		faces:   make(map[uuid.UUID]*models.Face),
		ownerOf: make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *fakeFaceRepo) addFace(ownerID uuid.UUID, embedding []float32, confidence float64) *models.Face {
	r.mu.Lock()
	defer r.mu.Unlock()
	assetID := uuid.New()
	r.ownerOf[assetID] = ownerID
	face := &models.Face{
		ID:         uuid.New(),
		AssetID:    assetID,
		Confidence: confidence,
	}
	if embedding != nil {
		v := pgvector.NewVector(embedding)
		face.Embedding = &v
	}
	r.faces[face.ID] = face
	return face
}

func (r *fakeFaceRepo) Create(ctx context.Context, face *models.Face) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *face
	r.faces[face.ID] = &cp
	return nil
}

func (r *fakeFaceRepo) CreateBatch(ctx context.Context, faces []*models.Face) error {
	for _, f := range faces {
		if err := r.Create(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeFaceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Face, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.faces[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *fakeFaceRepo) GetByAsset(ctx context.Context, assetID uuid.UUID) ([]models.Face, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Face
	for _, f := range r.faces {
		if f.AssetID == assetID {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *fakeFaceRepo) GetByPerson(ctx context.Context, personID uuid.UUID) ([]models.Face, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Face
	for _, f := range r.faces {
		if f.PersonID != nil && *f.PersonID == personID {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *fakeFaceRepo) GetUnassignedByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Face, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Face
	for _, f := range r.faces {
		if r.ownerOf[f.AssetID] == ownerID && f.PersonID == nil && f.Embedding != nil {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *fakeFaceRepo) OwnersWithUnassigned(ctx context.Context) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var owners []uuid.UUID
	for _, f := range r.faces {
		owner := r.ownerOf[f.AssetID]
		if f.PersonID == nil && f.Embedding != nil && !seen[owner] {
			seen[owner] = true
			owners = append(owners, owner)
		}
	}
	return owners, nil
}

func (r *fakeFaceRepo) UpdatePersonID(ctx context.Context, id uuid.UUID, personID *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.faces[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	f.PersonID = personID
	return nil
}

func (r *fakeFaceRepo) ReassignPerson(ctx context.Context, fromPersonID, toPersonID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.faces {
		if f.PersonID != nil && *f.PersonID == fromPersonID {
			to := toPersonID
			f.PersonID = &to
		}
	}
	return nil
}

func (r *fakeFaceRepo) DetachPerson(ctx context.Context, personID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.faces {
		if f.PersonID != nil && *f.PersonID == personID {
			f.PersonID = nil
		}
	}
	return nil
}

func (r *fakeFaceRepo) CountByPerson(ctx context.Context, personID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, f := range r.faces {
		if f.PersonID != nil && *f.PersonID == personID {
			n++
		}
	}
	return n, nil
}

func (r *fakeFaceRepo) DeleteByAsset(ctx context.Context, assetID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, f := range r.faces {
		if f.AssetID == assetID {
			delete(r.faces, id)
		}
	}
	return nil
}

type fakePersonRepo struct {
	mu      sync.Mutex
	persons map[uuid.UUID]*models.Person
}

func newFakePersonRepo() *fakePersonRepo {
	return &fakePersonRepo{persons: make(map[uuid.UUID]*models.Person)}
}

func (r *fakePersonRepo) Create(ctx context.Context, person *models.Person) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *person
	r.persons[person.ID] = &cp
	return nil
}

func (r *fakePersonRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.persons[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePersonRepo) GetByOwner(ctx context.Context, ownerID uuid.UUID, includeTombstoned bool, offset, limit int) ([]models.Person, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Person
	for _, p := range r.persons {
		if p.OwnerID != ownerID {
			continue
		}
		if !includeTombstoned && p.MergedIntoID != nil {
			continue
		}
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (r *fakePersonRepo) Update(ctx context.Context, id uuid.UUID, person *models.Person) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.persons[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *person
	cp.ID = id
	r.persons[id] = &cp
	return nil
}

func (r *fakePersonRepo) UpdateFaceCount(ctx context.Context, id uuid.UUID, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.persons[id]; ok {
		p.FaceCount = count
	}
	return nil
}

func (r *fakePersonRepo) SetCoverFace(ctx context.Context, id uuid.UUID, faceID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.persons[id]; ok {
		f := faceID
		p.CoverFaceID = &f
	}
	return nil
}

func (r *fakePersonRepo) MarkMerged(ctx context.Context, id uuid.UUID, mergedInto uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.persons[id]; ok {
		m := mergedInto
		p.MergedIntoID = &m
		p.FaceCount = 0
		p.CoverFaceID = nil
	}
	return nil
}

func (r *fakePersonRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.persons, id)
	return nil
}

func (r *fakePersonRepo) Count(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.persons {
		if p.OwnerID == ownerID && p.MergedIntoID == nil {
			n++
		}
	}
	return n, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*models.User)}
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) AddStorageUsed(ctx context.Context, id uuid.UUID, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.StorageUsedBytes += delta
	}
	return nil
}

// fakeBroadcaster records every event pushed at it.
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *fakeBroadcaster) BroadcastToUser(userID uuid.UUID, messageType string, data map[string]interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, messageType)
}

func (b *fakeBroadcaster) has(messageType string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.events {
		if e == messageType {
			return true
		}
	}
	return false
}
