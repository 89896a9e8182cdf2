package handler

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/primehaven/haven-chat-api/internal/middleware"
	"github.com/primehaven/haven-chat-api/internal/service"
	"github.com/primehaven/haven-chat-api/internal/utils"
)

// LiveHandler wires the realtime endpoints: the websocket upgrade, typing
// indicators, presence queries and heartbeats.
type LiveHandler struct {
	service service.LiveService
	logger  zerolog.Logger
}

// NewLiveHandler creates a live handler instance.
func NewLiveHandler(service service.LiveService, logger zerolog.Logger) *LiveHandler {
	return &LiveHandler{
		service: service,
		logger:  logger.With().Str("component", "live_handler").Logger(),
	}
}

// Register binds realtime routes under the provided router group.
func (h *LiveHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
	router.Post("/rooms/:roomID/typing/start", h.typingStart)
	router.Post("/rooms/:roomID/typing/stop", h.typingStop)
	router.Get("/online-status", h.onlineStatus)
	router.Post("/heartbeat", h.heartbeat)
}

func (h *LiveHandler) handleConnection(conn *websocket.Conn) {
	userID := localString(conn, "user_id")
	if userID == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "user id missing"))
		_ = conn.Close()
		return
	}

	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	opts := service.ConnectionOptions{
		UserID:        userID,
		UserName:      localString(conn, "user_name"),
		CorrelationID: localString(conn, "correlation_id"),
		Context:       baseCtx,
	}

	h.logger.Info().Str("user_id", userID).Msg("websocket connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Str("user_id", userID).Msg("websocket disconnected")
}

func localString(conn *websocket.Conn, key string) string {
	if value := conn.Locals(key); value != nil {
		if str, ok := value.(string); ok {
			return strings.TrimSpace(str)
		}
	}
	return ""
}

func (h *LiveHandler) typingStart(c *fiber.Ctx) error {
	return h.typing(c, true)
}

func (h *LiveHandler) typingStop(c *fiber.Ctx) error {
	return h.typing(c, false)
}

func (h *LiveHandler) typing(c *fiber.Ctx, isTyping bool) error {
	err := h.service.Typing(requestContext(c), middleware.UserID(c), middleware.UserName(c), c.Params("roomID"), isTyping)
	if err != nil {
		return sendChatError(c, err)
	}

	return utils.SendSuccess(c, "typing status updated", nil)
}

func (h *LiveHandler) onlineStatus(c *fiber.Ctx) error {
	raw := strings.TrimSpace(c.Query("user_ids"))
	if raw == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "user_ids required")
	}

	userIDs := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			userIDs = append(userIDs, trimmed)
		}
	}
	if len(userIDs) == 0 || len(userIDs) > 100 {
		return utils.SendError(c, fiber.StatusBadRequest, "user_ids must contain between 1 and 100 entries")
	}

	status, err := h.service.OnlineStatus(requestContext(c), userIDs)
	if err != nil {
		return sendChatError(c, err)
	}

	return utils.SendSuccess(c, "online status", status)
}

func (h *LiveHandler) heartbeat(c *fiber.Ctx) error {
	if err := h.service.Heartbeat(requestContext(c), middleware.UserID(c)); err != nil {
		return sendChatError(c, err)
	}

	return utils.SendSuccess(c, "heartbeat recorded", nil)
}
