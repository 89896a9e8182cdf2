package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/primehaven/haven-chat-api/internal/dto"
	"github.com/primehaven/haven-chat-api/internal/middleware"
	"github.com/primehaven/haven-chat-api/internal/service"
	"github.com/primehaven/haven-chat-api/internal/utils"
)

// RoomHandler wires the room directory endpoints.
type RoomHandler struct {
	service service.RoomService
	logger  zerolog.Logger
}

// NewRoomHandler creates a room handler instance.
func NewRoomHandler(service service.RoomService, logger zerolog.Logger) *RoomHandler {
	return &RoomHandler{
		service: service,
		logger:  logger.With().Str("component", "room_handler").Logger(),
	}
}

// Register binds room routes under the provided router group.
func (h *RoomHandler) Register(router fiber.Router) {
	router.Post("/rooms", h.create)
	router.Get("/rooms", h.list)
	router.Post("/rooms/batch-delete", h.batchDelete)
	router.Get("/rooms/:roomID", h.get)
	router.Delete("/rooms/:roomID", h.delete)
	router.Post("/rooms/:roomID/join", h.join)
	router.Post("/rooms/:roomID/leave", h.leave)
}

func (h *RoomHandler) create(c *fiber.Ctx) error {
	var req dto.RoomCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	room, err := h.service.CreateRoom(requestContext(c), middleware.UserID(c), middleware.UserName(c), req)
	if err != nil {
		return sendChatError(c, err)
	}

	return utils.SendCreated(c, "room created", room)
}

func (h *RoomHandler) list(c *fiber.Ctx) error {
	limit := c.QueryInt("limit")
	offset := c.QueryInt("offset")

	rooms, err := h.service.ListRooms(requestContext(c), middleware.UserID(c), limit, offset)
	if err != nil {
		return sendChatError(c, err)
	}

	return utils.SendSuccess(c, "rooms", rooms)
}

func (h *RoomHandler) get(c *fiber.Ctx) error {
	room, err := h.service.GetRoom(requestContext(c), middleware.UserID(c), middleware.UserName(c), c.Params("roomID"))
	if err != nil {
		return sendChatError(c, err)
	}

	return utils.SendSuccess(c, "room", room)
}

func (h *RoomHandler) delete(c *fiber.Ctx) error {
	err := h.service.DeleteRoom(requestContext(c), middleware.UserID(c), middleware.UserRole(c), c.Params("roomID"))
	if err != nil {
		return sendChatError(c, err)
	}

	return utils.SendSuccess(c, "room deleted", nil)
}

func (h *RoomHandler) batchDelete(c *fiber.Ctx) error {
	var req dto.RoomBatchDeleteRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.BatchDelete(requestContext(c), middleware.UserID(c), middleware.UserRole(c), req)
	if err != nil {
		return sendChatError(c, err)
	}

	return utils.SendSuccess(c, "batch delete complete", result)
}

func (h *RoomHandler) join(c *fiber.Ctx) error {
	room, err := h.service.JoinRoom(requestContext(c), middleware.UserID(c), middleware.UserName(c), c.Params("roomID"))
	if err != nil {
		return sendChatError(c, err)
	}

	return utils.SendSuccess(c, "room joined", room)
}

func (h *RoomHandler) leave(c *fiber.Ctx) error {
	err := h.service.LeaveRoom(requestContext(c), middleware.UserID(c), c.Params("roomID"))
	if err != nil {
		return sendChatError(c, err)
	}

	return utils.SendSuccess(c, "room left", nil)
}
