package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/primehaven/haven-chat-api/internal/middleware"
	"github.com/primehaven/haven-chat-api/internal/service"
	"github.com/primehaven/haven-chat-api/internal/utils"
	"github.com/primehaven/haven-chat-api/pkg/directory"
)

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// sendChatError maps service errors onto HTTP status codes with the shared
// response envelope.
func sendChatError(c *fiber.Ctx, err error) error {
	switch {
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidRoomID):
		return utils.SendError(c, fiber.StatusBadRequest, "invalid room identifier")
	case errors.Is(err, service.ErrMissingLinkage):
		return utils.SendError(c, fiber.StatusBadRequest, "missing required linkage")
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, directory.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "resource not found")
	case errors.Is(err, service.ErrChatForbidden), errors.Is(err, service.ErrNotParticipant):
		return utils.SendError(c, fiber.StatusForbidden, "not authorised")
	case errors.Is(err, service.ErrMessageDeleted):
		return utils.SendError(c, fiber.StatusConflict, "message has been deleted")
	case errors.Is(err, service.ErrAttachmentTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "attachment too large")
	case errors.Is(err, service.ErrAttachmentTypeNotAllowed):
		return utils.SendError(c, fiber.StatusUnsupportedMediaType, "attachment type not allowed")
	default:
		return utils.SendError(c, fiber.StatusInternalServerError, "internal error")
	}
}
