package services

import (
	"context"

	"github.com/google/uuid"
)

// ClusterRunResult summarizes one clustering pass for an owner.
type ClusterRunResult struct {
	TotalFaces     int // unassigned faces considered
	Clusters       int // dense clusters found
	CreatedPersons int // new person records
	AssignedFaces  int // faces that received a person
	NoiseFaces     int // left unassigned, retried next run
}

// FaceClusterService groups an owner's unassigned face embeddings into
// person identities. All mutations of an owner's person/face graph are
// serialized through a per-owner lock.
type FaceClusterService interface {
	// ClusterFaces runs one density-based clustering pass over the owner's
	// unassigned faces. Idempotent: a fully-clustered face set is a no-op.
	ClusterFaces(ctx context.Context, ownerID uuid.UUID) (*ClusterRunResult, error)
}
