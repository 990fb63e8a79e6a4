package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"pixvault/domain/services"
	"pixvault/pkg/logger"
	"pixvault/pkg/utils"
)

func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "An error occurred"

		switch {
		case errors.Is(err, services.ErrUnsupportedMediaType):
			code = fiber.StatusBadRequest
			message = "Unsupported media type"
		case errors.Is(err, services.ErrAssetNotFound),
			errors.Is(err, services.ErrPersonNotFound):
			code = fiber.StatusNotFound
			message = "Not found"
		case errors.Is(err, services.ErrMergeSelf),
			errors.Is(err, services.ErrMergeIntoTombstone):
			code = fiber.StatusConflict
			message = "Invalid merge"
		case errors.Is(err, services.ErrClusteringBusy):
			code = fiber.StatusConflict
			message = "Clustering in progress"
		default:
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				code = fiberErr.Code
				message = fiberErr.Message
			}
		}

		logger.Error(logger.CategoryAPI, "error_handler", "Request error occurred", err, map[string]interface{}{
			"status_code": code,
			"path":        c.Path(),
			"method":      c.Method(),
		})

		return utils.ErrorResponse(c, code, message, err)
	}
}
