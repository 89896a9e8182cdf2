package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/primehaven/haven-chat-api/internal/config"
	"github.com/primehaven/haven-chat-api/internal/handler"
	"github.com/primehaven/haven-chat-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RoomHandler       *handler.RoomHandler
	MessageHandler    *handler.MessageHandler
	LiveHandler       *handler.LiveHandler
	AttachmentHandler *handler.AttachmentHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	chat := app.Group("/api/v1/chat", jwtMiddleware)

	if deps.RoomHandler != nil {
		deps.RoomHandler.Register(chat)
	}
	if deps.MessageHandler != nil {
		deps.MessageHandler.Register(chat)
	}
	if deps.AttachmentHandler != nil {
		deps.AttachmentHandler.Register(chat)
	}
	if deps.LiveHandler != nil {
		deps.LiveHandler.Register(chat)
	}
}
