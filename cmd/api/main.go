package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/primehaven/haven-chat-api/internal/config"
	"github.com/primehaven/haven-chat-api/internal/database"
	"github.com/primehaven/haven-chat-api/internal/handler"
	"github.com/primehaven/haven-chat-api/internal/middleware"
	"github.com/primehaven/haven-chat-api/internal/models"
	"github.com/primehaven/haven-chat-api/internal/repository"
	"github.com/primehaven/haven-chat-api/internal/router"
	"github.com/primehaven/haven-chat-api/internal/service"
	cloud "github.com/primehaven/haven-chat-api/pkg/cloudinary"
	"github.com/primehaven/haven-chat-api/pkg/directory"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.ChatRoom{}, &models.ChatParticipant{}, &models.ChatMessage{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, running without cross-node relay")
		natsConn = nil
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	roomRepo := repository.NewRoomRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	propertyClient := directory.NewPropertyClient(cfg.PropertyServiceURL, cfg.DirectoryTimeout, logger)

	// Without an escrow service, escrow-linked creates are rejected as a
	// missing linkage instead of failing on a dead client.
	var escrowDir service.EscrowDirectory
	if cfg.EscrowServiceURL != "" {
		escrowDir = directory.NewEscrowClient(cfg.EscrowServiceURL, cfg.DirectoryTimeout, logger)
	} else {
		logger.Warn().Msg("escrow service not configured, escrow-linked rooms disabled")
	}

	gateway := service.NewGateway(logger)
	liveService := service.NewLiveService(gateway, participantRepo, redisClient, natsConn, service.LiveConfig{
		ChannelBase:    cfg.EventChannelBase,
		PresenceTTL:    cfg.PresenceTTL,
		LastMessageTTL: cfg.LastMessageTTL,
		KeepAlive:      cfg.WSKeepAlive,
	}, logger)
	roomService := service.NewRoomService(roomRepo, participantRepo, messageRepo, propertyClient, escrowDir, liveService, validate, logger)
	messageService := service.NewMessageService(messageRepo, participantRepo, roomRepo, roomService, liveService, validate, logger)

	var attachmentService service.AttachmentService
	if cfg.CloudinaryCloud != "" {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloud,
			APIKey:    cfg.CloudinaryKey,
			APISecret: cfg.CloudinarySecret,
			Folder:    cfg.CloudinaryFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		attachmentService = service.NewAttachmentService(uploader, roomService, cfg.AttachmentMaxMB, logger)
	} else {
		logger.Warn().Msg("cloudinary not configured, attachment uploads disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	liveService.Start(ctx)

	roomHandler := handler.NewRoomHandler(roomService, logger)
	messageHandler := handler.NewMessageHandler(messageService, logger)
	liveHandler := handler.NewLiveHandler(liveService, logger)

	var attachmentHandler *handler.AttachmentHandler
	if attachmentService != nil {
		attachmentHandler = handler.NewAttachmentHandler(attachmentService, logger)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		RoomHandler:       roomHandler,
		MessageHandler:    messageHandler,
		LiveHandler:       liveHandler,
		AttachmentHandler: attachmentHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
