package services

import (
	"context"

	"github.com/google/uuid"

	"pixvault/domain/models"
)

// IngestResult reports the outcome of an upload.
type IngestResult struct {
	Asset     *models.Asset
	Duplicate bool // true when identical bytes were already ingested
}

// IngestService validates and stores uploads, dedups on content hash, and
// submits new assets to the processing pipeline.
type IngestService interface {
	// Ingest stores the upload and queues pipeline work. Identical bytes for
	// the same owner short-circuit: the existing asset is returned with
	// Duplicate set and nothing is queued.
	Ingest(ctx context.Context, ownerID uuid.UUID, filename, mimeType string, data []byte) (*IngestResult, error)

	// Reprocess re-submits an existing asset through the full pipeline.
	Reprocess(ctx context.Context, assetID uuid.UUID) error
}
