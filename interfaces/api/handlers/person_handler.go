package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"pixvault/domain/services"
	"pixvault/interfaces/api/middleware"
	"pixvault/pkg/utils"
)

type PersonHandler struct {
	personService  services.PersonService
	clusterService services.FaceClusterService
}

func NewPersonHandler(personService services.PersonService, clusterService services.FaceClusterService) *PersonHandler {
	return &PersonHandler{
		personService:  personService,
		clusterService: clusterService,
	}
}

type UpdatePersonRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=255"`
	IsHidden   *bool   `json:"is_hidden"`
	IsFavorite *bool   `json:"is_favorite"`
}

type MergePersonsRequest struct {
	MergeID string `json:"merge_id" validate:"required,uuid"`
}

func (h *PersonHandler) List(c *fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 50)

	persons, total, err := h.personService.GetPersons(c.Context(), ownerID, page, limit)
	if err != nil {
		return err
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "", utils.PaginatedData{
		Items: toPersonResponses(persons),
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

func (h *PersonHandler) Get(c *fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)
	personID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid person id", err)
	}

	person, err := h.personService.GetPerson(c.Context(), ownerID, personID)
	if err != nil {
		if errors.Is(err, services.ErrPersonNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Person not found", err)
		}
		return err
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "", toPersonResponse(person))
}

func (h *PersonHandler) Faces(c *fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)
	personID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid person id", err)
	}

	faces, err := h.personService.GetFaces(c.Context(), ownerID, personID)
	if err != nil {
		if errors.Is(err, services.ErrPersonNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Person not found", err)
		}
		return err
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "", toFaceResponses(faces))
}

// Update applies curation changes: rename, hide or favorite.
func (h *PersonHandler) Update(c *fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)
	personID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid person id", err)
	}

	var req UpdatePersonRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	update := services.PersonUpdate{
		Name:       req.Name,
		IsHidden:   req.IsHidden,
		IsFavorite: req.IsFavorite,
	}
	if update.Empty() {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "No fields to update", nil)
	}

	if err := h.personService.UpdatePerson(c.Context(), ownerID, personID, update); err != nil {
		if errors.Is(err, services.ErrPersonNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Person not found", err)
		}
		return err
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Person updated", nil)
}

// Merge folds the person named in the body into the person in the path.
func (h *PersonHandler) Merge(c *fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)
	keepID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid person id", err)
	}

	var req MergePersonsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	mergeID, err := uuid.Parse(req.MergeID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid merge_id", err)
	}

	if err := h.personService.MergePersons(c.Context(), ownerID, keepID, mergeID); err != nil {
		switch {
		case errors.Is(err, services.ErrPersonNotFound):
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Person not found", err)
		case errors.Is(err, services.ErrMergeSelf):
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Cannot merge a person into itself", err)
		case errors.Is(err, services.ErrMergeIntoTombstone):
			return utils.ErrorResponse(c, fiber.StatusConflict, "Merge target was itself merged away", err)
		case errors.Is(err, services.ErrClusteringBusy):
			return utils.ErrorResponse(c, fiber.StatusConflict, "Clustering in progress, retry shortly", err)
		}
		return err
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Persons merged", nil)
}

func (h *PersonHandler) Delete(c *fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)
	personID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid person id", err)
	}

	if err := h.personService.DeletePerson(c.Context(), ownerID, personID); err != nil {
		switch {
		case errors.Is(err, services.ErrPersonNotFound):
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Person not found", err)
		case errors.Is(err, services.ErrClusteringBusy):
			return utils.ErrorResponse(c, fiber.StatusConflict, "Clustering in progress, retry shortly", err)
		}
		return err
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Person deleted", nil)
}

// Cluster triggers a clustering pass for the owner outside the normal
// pipeline flow.
func (h *PersonHandler) Cluster(c *fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)

	result, err := h.clusterService.ClusterFaces(c.Context(), ownerID)
	if err != nil {
		if errors.Is(err, services.ErrClusteringBusy) {
			return utils.ErrorResponse(c, fiber.StatusConflict, "Clustering already in progress", err)
		}
		return err
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Clustering pass complete", result)
}
