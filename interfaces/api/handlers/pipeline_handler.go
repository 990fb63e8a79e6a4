package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"pixvault/domain/services"
	"pixvault/infrastructure/worker"
	"pixvault/pkg/utils"
)

type PipelineHandler struct {
	orchestrator  *worker.Orchestrator
	ingestService services.IngestService
}

func NewPipelineHandler(orchestrator *worker.Orchestrator, ingestService services.IngestService) *PipelineHandler {
	return &PipelineHandler{
		orchestrator:  orchestrator,
		ingestService: ingestService,
	}
}

// RunStatus returns the per-stage status map of one pipeline run.
func (h *PipelineHandler) RunStatus(c *fiber.Ctx) error {
	runID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid run id", err)
	}

	statuses, err := h.orchestrator.RunStatuses(c.Context(), runID)
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Run not found", nil)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "", fiber.Map{
		"run_id": runID,
		"stages": statuses,
	})
}

// Reprocess pushes an existing asset back through its full pipeline graph.
func (h *PipelineHandler) Reprocess(c *fiber.Ctx) error {
	assetID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid asset id", err)
	}

	if err := h.ingestService.Reprocess(c.Context(), assetID); err != nil {
		if errors.Is(err, services.ErrAssetNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Asset not found", err)
		}
		return err
	}

	return utils.SuccessResponse(c, fiber.StatusAccepted, "Asset queued for reprocessing", nil)
}
