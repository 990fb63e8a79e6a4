package handlers

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"

	"pixvault/domain/services"
	"pixvault/interfaces/api/middleware"
	"pixvault/pkg/utils"
)

type IngestHandler struct {
	ingestService  services.IngestService
	maxUploadBytes int64
}

func NewIngestHandler(ingestService services.IngestService, maxUploadBytes int64) *IngestHandler {
	return &IngestHandler{
		ingestService:  ingestService,
		maxUploadBytes: maxUploadBytes,
	}
}

// UploadResponse reports the ingest outcome. Duplicate uploads return
// the already-known asset.
type UploadResponse struct {
	Asset     AssetResponse `json:"asset"`
	Duplicate bool          `json:"duplicate"`
}

// Upload accepts a multipart file, stores it and queues pipeline work.
func (h *IngestHandler) Upload(c *fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)

	file, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File is required", err)
	}
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		return utils.ErrorResponse(c, fiber.StatusRequestEntityTooLarge, "File exceeds upload limit", nil)
	}

	f, err := file.Open()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read file", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read file", err)
	}

	result, err := h.ingestService.Ingest(c.Context(), ownerID, file.Filename, file.Header.Get("Content-Type"), data)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedMediaType) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unsupported media type", err)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Ingest failed", err)
	}

	status := fiber.StatusCreated
	if result.Duplicate {
		status = fiber.StatusOK
	}
	return utils.SuccessResponse(c, status, "Asset ingested", UploadResponse{
		Asset:     toAssetResponse(result.Asset),
		Duplicate: result.Duplicate,
	})
}
