package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/primehaven/haven-chat-api/internal/dto"
	"github.com/primehaven/haven-chat-api/internal/middleware"
	"github.com/primehaven/haven-chat-api/internal/service"
	"github.com/primehaven/haven-chat-api/internal/utils"
)

// MessageHandler wires the message log endpoints.
type MessageHandler struct {
	service service.MessageService
	logger  zerolog.Logger
}

// NewMessageHandler creates a message handler instance.
func NewMessageHandler(service service.MessageService, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		service: service,
		logger:  logger.With().Str("component", "message_handler").Logger(),
	}
}

// Register binds message routes under the provided router group.
func (h *MessageHandler) Register(router fiber.Router) {
	router.Post("/rooms/:roomID/messages", h.send)
	router.Get("/rooms/:roomID/messages", h.history)
	router.Post("/rooms/:roomID/read", h.markRead)
	router.Put("/messages/:messageID", h.edit)
	router.Delete("/messages/:messageID", h.delete)
}

func (h *MessageHandler) send(c *fiber.Ctx) error {
	var req dto.MessageSendRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	message, err := h.service.Send(requestContext(c), middleware.UserID(c), middleware.UserName(c), c.Params("roomID"), req)
	if err != nil {
		return sendChatError(c, err)
	}

	return utils.SendCreated(c, "message sent", message)
}

func (h *MessageHandler) history(c *fiber.Ctx) error {
	var beforePtr *time.Time
	if before := c.Query("before"); before != "" {
		parsed, err := time.Parse(time.RFC3339, before)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid before timestamp")
		}
		beforePtr = &parsed
	}

	query := dto.MessageHistoryQuery{
		Offset: c.QueryInt("offset"),
		Before: beforePtr,
		Limit:  c.QueryInt("limit"),
	}

	messages, err := h.service.History(requestContext(c), middleware.UserID(c), c.Params("roomID"), query)
	if err != nil {
		return sendChatError(c, err)
	}

	return utils.SendSuccess(c, "message history", messages)
}

func (h *MessageHandler) markRead(c *fiber.Ctx) error {
	err := h.service.MarkRead(requestContext(c), middleware.UserID(c), c.Params("roomID"))
	if err != nil {
		return sendChatError(c, err)
	}

	return utils.SendSuccess(c, "room marked read", nil)
}

func (h *MessageHandler) edit(c *fiber.Ctx) error {
	var req dto.MessageUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	message, err := h.service.Edit(requestContext(c), middleware.UserID(c), c.Params("messageID"), req)
	if err != nil {
		return sendChatError(c, err)
	}

	return utils.SendSuccess(c, "message updated", message)
}

func (h *MessageHandler) delete(c *fiber.Ctx) error {
	message, err := h.service.Delete(requestContext(c), middleware.UserID(c), c.Params("messageID"))
	if err != nil {
		return sendChatError(c, err)
	}

	return utils.SendSuccess(c, "message deleted", message)
}
