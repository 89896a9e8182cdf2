package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/primehaven/haven-chat-api/internal/middleware"
	"github.com/primehaven/haven-chat-api/internal/service"
	"github.com/primehaven/haven-chat-api/internal/utils"
)

// AttachmentHandler wires the attachment upload endpoint.
type AttachmentHandler struct {
	service service.AttachmentService
	logger  zerolog.Logger
}

// NewAttachmentHandler creates an attachment handler instance.
func NewAttachmentHandler(service service.AttachmentService, logger zerolog.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		service: service,
		logger:  logger.With().Str("component", "attachment_handler").Logger(),
	}
}

// Register binds attachment routes under the provided router group.
func (h *AttachmentHandler) Register(router fiber.Router) {
	router.Post("/rooms/:roomID/attachments", h.upload)
}

func (h *AttachmentHandler) upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	attachment, err := h.service.Upload(requestContext(c), middleware.UserID(c), middleware.UserName(c), c.Params("roomID"), file)
	if err != nil {
		return sendChatError(c, err)
	}

	return utils.SendCreated(c, "attachment uploaded", attachment)
}
