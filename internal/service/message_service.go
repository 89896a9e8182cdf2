package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/primehaven/haven-chat-api/internal/dto"
	"github.com/primehaven/haven-chat-api/internal/middleware"
	"github.com/primehaven/haven-chat-api/internal/models"
	"github.com/primehaven/haven-chat-api/internal/observability"
	"github.com/primehaven/haven-chat-api/internal/repository"
)

// MessageService owns the append-only message log of a room.
type MessageService interface {
	Send(ctx context.Context, userID, userName, rawRoomID string, req dto.MessageSendRequest) (dto.MessageResponse, error)
	History(ctx context.Context, userID, rawRoomID string, query dto.MessageHistoryQuery) ([]dto.MessageResponse, error)
	Edit(ctx context.Context, userID, messageID string, req dto.MessageUpdateRequest) (dto.MessageResponse, error)
	Delete(ctx context.Context, userID, messageID string) (dto.MessageResponse, error)
	MarkRead(ctx context.Context, userID, rawRoomID string) error
}

type messageService struct {
	messages     repository.MessageRepository
	participants repository.ParticipantRepository
	rooms        repository.RoomRepository
	roomDir      RoomService
	live         LiveService
	validator    *validator.Validate
	sanitizer    *bluemonday.Policy
	tracer       trace.Tracer
	logger       zerolog.Logger
}

// NewMessageService constructs the message log service.
func NewMessageService(messages repository.MessageRepository, participants repository.ParticipantRepository, rooms repository.RoomRepository, roomDir RoomService, live LiveService, validate *validator.Validate, logger zerolog.Logger) MessageService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	return &messageService{
		messages:     messages,
		participants: participants,
		rooms:        rooms,
		roomDir:      roomDir,
		live:         live,
		validator:    validate,
		sanitizer:    sanitizer,
		tracer:       otel.Tracer("github.com/primehaven/haven-chat-api/internal/service/message"),
		logger:       logger.With().Str("component", "message_service").Logger(),
	}
}

func (s *messageService) Send(ctx context.Context, userID, userName, rawRoomID string, req dto.MessageSendRequest) (dto.MessageResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.MessageResponse{}, err
	}

	roomID, err := s.roomDir.EnsureMembership(ctx, userID, userName, rawRoomID)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	clean := strings.TrimSpace(s.sanitizer.Sanitize(req.Content))
	if clean == "" {
		return dto.MessageResponse{}, fmt.Errorf("message content empty after sanitization")
	}

	messageType := req.MessageType
	if messageType == "" {
		messageType = models.MessageTypeText
	}

	attrs := []attribute.KeyValue{
		attribute.String("chat.room_id", roomID),
		attribute.String("chat.sender_id", userID),
		attribute.String("chat.type", messageType),
	}
	if correlation := middleware.CorrelationIDFromContext(ctx); correlation != "" {
		attrs = append(attrs, attribute.String("correlation_id", correlation))
	}

	spanCtx, span := s.tracer.Start(ctx, "chat.send", trace.WithAttributes(attrs...))
	defer span.End()

	model := models.ChatMessage{
		RoomID:      roomID,
		SenderID:    userID,
		SenderName:  userName,
		Content:     clean,
		MessageType: messageType,
		FileURL:     req.FileURL,
		FileName:    req.FileName,
		FileSize:    req.FileSize,
		ReplyToID:   req.ReplyToID,
	}

	if err := s.messages.Save(spanCtx, &model); err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}

	response := dto.NewMessageResponse(model)
	if s.live != nil {
		s.live.PublishMessage(spanCtx, response)
	}

	observability.ChatMessages().WithLabelValues(messageType).Inc()

	return response, nil
}

func (s *messageService) History(ctx context.Context, userID, rawRoomID string, query dto.MessageHistoryQuery) ([]dto.MessageResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	ref, err := ResolveRoomID(rawRoomID)
	if err != nil {
		return nil, err
	}

	room, err := s.rooms.Get(ctx, ref.RoomID)
	if err != nil {
		return nil, err
	}

	// Property rooms are readable by any authenticated user; everything else
	// needs an active membership.
	member, err := s.participants.IsActiveMember(ctx, room.ID, userID)
	if err != nil {
		return nil, err
	}
	if !member && room.RoomType != models.RoomTypeProperty {
		return nil, ErrNotParticipant
	}

	before := time.Time{}
	if query.Before != nil {
		before = *query.Before
	}

	messages, err := s.messages.ListByRoom(ctx, room.ID, before, query.Offset, query.Limit)
	if err != nil {
		return nil, err
	}

	// Reading history advances the reader's cursor. Best effort: a failed
	// cursor update never hides the messages themselves.
	if member {
		if err := s.participants.MarkRead(ctx, room.ID, userID, time.Now().UTC()); err != nil {
			s.logger.Warn().Err(err).Str("room_id", room.ID).Str("user_id", userID).Msg("failed to advance read cursor")
		}
	}

	return dto.NewMessageResponseSlice(messages), nil
}

// Edit rewrites the content of a message. Only the sender may edit, and a
// tombstoned message stays tombstoned.
func (s *messageService) Edit(ctx context.Context, userID, messageID string, req dto.MessageUpdateRequest) (dto.MessageResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.MessageResponse{}, err
	}

	message, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return dto.MessageResponse{}, err
	}
	if message.SenderID != userID {
		return dto.MessageResponse{}, ErrChatForbidden
	}
	if message.IsDeleted {
		return dto.MessageResponse{}, ErrMessageDeleted
	}

	clean := strings.TrimSpace(s.sanitizer.Sanitize(req.Content))
	if clean == "" {
		return dto.MessageResponse{}, fmt.Errorf("message content empty after sanitization")
	}

	if err := s.messages.UpdateContent(ctx, messageID, clean); err != nil {
		return dto.MessageResponse{}, err
	}

	updated, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	response := dto.NewMessageResponse(updated)
	if s.live != nil {
		s.live.Publish(ctx, dto.Event{
			Type:   dto.EventTypeMessageEdited,
			RoomID: updated.RoomID,
			Data:   response,
		})
	}

	return response, nil
}

// Delete tombstones a message: the row survives with its content replaced so
// history keeps its shape for every reader.
func (s *messageService) Delete(ctx context.Context, userID, messageID string) (dto.MessageResponse, error) {
	message, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return dto.MessageResponse{}, err
	}
	if message.SenderID != userID {
		return dto.MessageResponse{}, ErrChatForbidden
	}

	if err := s.messages.Tombstone(ctx, messageID); err != nil {
		return dto.MessageResponse{}, err
	}

	deleted, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	response := dto.NewMessageResponse(deleted)
	if s.live != nil {
		s.live.Publish(ctx, dto.Event{
			Type:   dto.EventTypeMessageDeleted,
			RoomID: deleted.RoomID,
			Data:   response,
		})
	}

	return response, nil
}

func (s *messageService) MarkRead(ctx context.Context, userID, rawRoomID string) error {
	ref, err := ResolveRoomID(rawRoomID)
	if err != nil {
		return err
	}

	return s.participants.MarkRead(ctx, ref.RoomID, userID, time.Now().UTC())
}
