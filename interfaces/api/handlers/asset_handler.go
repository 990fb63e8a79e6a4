package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"pixvault/domain/services"
	"pixvault/interfaces/api/middleware"
	"pixvault/pkg/utils"
)

type AssetHandler struct {
	assetService services.AssetService
}

func NewAssetHandler(assetService services.AssetService) *AssetHandler {
	return &AssetHandler{assetService: assetService}
}

// List returns the owner's assets, newest capture first.
func (h *AssetHandler) List(c *fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 50)

	assets, total, err := h.assetService.GetAssets(c.Context(), ownerID, page, limit)
	if err != nil {
		return err
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "", utils.PaginatedData{
		Items: toAssetResponses(assets),
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

func (h *AssetHandler) Get(c *fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)
	assetID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid asset id", err)
	}

	asset, err := h.assetService.GetAsset(c.Context(), ownerID, assetID)
	if err != nil {
		if errors.Is(err, services.ErrAssetNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Asset not found", err)
		}
		return err
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "", toAssetResponse(asset))
}

// Faces returns detections for one asset; empty until the face stage ran.
func (h *AssetHandler) Faces(c *fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)
	assetID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid asset id", err)
	}

	faces, err := h.assetService.GetAssetFaces(c.Context(), ownerID, assetID)
	if err != nil {
		if errors.Is(err, services.ErrAssetNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Asset not found", err)
		}
		return err
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "", toFaceResponses(faces))
}

// Tags returns object and scene tags; empty until the ML stages ran.
func (h *AssetHandler) Tags(c *fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)
	assetID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid asset id", err)
	}

	tags, err := h.assetService.GetAssetTags(c.Context(), ownerID, assetID)
	if err != nil {
		if errors.Is(err, services.ErrAssetNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Asset not found", err)
		}
		return err
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "", toTagResponses(tags))
}
