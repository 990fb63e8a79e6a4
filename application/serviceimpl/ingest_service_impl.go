package serviceimpl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pixvault/domain/models"
	"pixvault/domain/repositories"
	"pixvault/domain/services"
	"pixvault/infrastructure/storage"
	"pixvault/infrastructure/worker"
	"pixvault/pkg/logger"
)

// supportedMimeTypes maps accepted upload types to their asset kind.
var supportedMimeTypes = map[string]models.AssetType{
	"image/jpeg":      models.AssetTypeImage,
	"image/png":       models.AssetTypeImage,
	"image/gif":       models.AssetTypeImage,
	"image/webp":      models.AssetTypeImage,
	"image/bmp":       models.AssetTypeImage,
	"image/tiff":      models.AssetTypeImage,
	"video/mp4":       models.AssetTypeVideo,
	"video/quicktime": models.AssetTypeVideo,
	"video/webm":      models.AssetTypeVideo,
	"video/x-msvideo": models.AssetTypeVideo,
}

type IngestServiceImpl struct {
	assetRepo    repositories.AssetRepository
	userRepo     repositories.UserRepository
	store        storage.Backend
	orchestrator *worker.Orchestrator
}

func NewIngestService(
	assetRepo repositories.AssetRepository,
	userRepo repositories.UserRepository,
	store storage.Backend,
	orchestrator *worker.Orchestrator,
) services.IngestService {
	return &IngestServiceImpl{
		assetRepo:    assetRepo,
		userRepo:     userRepo,
		store:        store,
		orchestrator: orchestrator,
	}
}

func (s *IngestServiceImpl) Ingest(ctx context.Context, ownerID uuid.UUID, filename, mimeType string, data []byte) (*services.IngestResult, error) {
	assetType, ok := supportedMimeTypes[strings.ToLower(mimeType)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", services.ErrUnsupportedMediaType, mimeType)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	// Identical bytes for the same owner short-circuit before anything is
	// written or queued.
	existing, err := s.assetRepo.GetByOwnerAndHash(ctx, ownerID, hash)
	if err == nil {
		logger.Ingest("duplicate", "Upload matched existing asset", map[string]interface{}{
			"assetId": existing.ID.String(),
			"hash":    hash,
		})
		return &services.IngestResult{Asset: existing, Duplicate: true}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}

	key := storage.OriginalKey(hash, filepath.Ext(filename))
	if err := s.store.Write(ctx, key, data); err != nil {
		return nil, fmt.Errorf("write original: %w", err)
	}

	asset := &models.Asset{
		ID:               uuid.New(),
		OwnerID:          ownerID,
		FileHashSHA256:   hash,
		OriginalFilename: filename,
		StoragePath:      key,
		FileSizeBytes:    int64(len(data)),
		MimeType:         strings.ToLower(mimeType),
		AssetType:        assetType,
	}

	if err := s.assetRepo.Create(ctx, asset); err != nil {
		// A concurrent upload of the same bytes may have won the insert.
		if dup, dupErr := s.assetRepo.GetByOwnerAndHash(ctx, ownerID, hash); dupErr == nil {
			return &services.IngestResult{Asset: dup, Duplicate: true}, nil
		}
		return nil, fmt.Errorf("create asset: %w", err)
	}

	if err := s.userRepo.AddStorageUsed(ctx, ownerID, asset.FileSizeBytes); err != nil {
		logger.IngestError("storage_quota", "Failed to update storage usage", err, map[string]interface{}{
			"ownerId": ownerID.String(),
		})
	}

	runID, err := s.orchestrator.SubmitAsset(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("submit pipeline run: %w", err)
	}

	logger.Ingest("accepted", "Asset ingested", map[string]interface{}{
		"assetId":  asset.ID.String(),
		"runId":    runID.String(),
		"type":     string(assetType),
		"sizeB":    asset.FileSizeBytes,
		"filename": filename,
	})

	return &services.IngestResult{Asset: asset, Duplicate: false}, nil
}

func (s *IngestServiceImpl) Reprocess(ctx context.Context, assetID uuid.UUID) error {
	asset, err := s.assetRepo.GetByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return services.ErrAssetNotFound
		}
		return err
	}

	runID, err := s.orchestrator.SubmitAsset(ctx, asset)
	if err != nil {
		return fmt.Errorf("submit pipeline run: %w", err)
	}

	logger.Ingest("reprocess", "Asset resubmitted to pipeline", map[string]interface{}{
		"assetId": asset.ID.String(),
		"runId":   runID.String(),
	})
	return nil
}
