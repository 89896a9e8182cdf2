package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/primehaven/haven-chat-api/internal/dto"
	"github.com/primehaven/haven-chat-api/internal/models"
	"github.com/primehaven/haven-chat-api/internal/observability"
	"github.com/primehaven/haven-chat-api/internal/repository"
	"github.com/primehaven/haven-chat-api/pkg/directory"
)

// PropertyDirectory resolves property listings owned by the property service.
type PropertyDirectory interface {
	GetProperty(ctx context.Context, propertyID string) (directory.Property, error)
}

// EscrowDirectory resolves escrow transactions owned by the escrow service.
// Rooms opened for a transaction carry the escrow id after validation.
type EscrowDirectory interface {
	GetEscrow(ctx context.Context, escrowID string) (directory.Escrow, error)
}

// RoomService manages the room directory and participant registry.
type RoomService interface {
	CreateRoom(ctx context.Context, userID, userName string, req dto.RoomCreateRequest) (dto.RoomResponse, error)
	GetRoom(ctx context.Context, userID, userName, rawRoomID string) (dto.RoomResponse, error)
	ListRooms(ctx context.Context, userID string, limit, offset int) ([]dto.RoomResponse, error)
	DeleteRoom(ctx context.Context, userID, role, rawRoomID string) error
	BatchDelete(ctx context.Context, userID, role string, req dto.RoomBatchDeleteRequest) (dto.BatchDeleteResponse, error)
	JoinRoom(ctx context.Context, userID, userName, rawRoomID string) (dto.RoomResponse, error)
	LeaveRoom(ctx context.Context, userID, rawRoomID string) error
	EnsureMembership(ctx context.Context, userID, userName, rawRoomID string) (string, error)
}

type roomService struct {
	rooms        repository.RoomRepository
	participants repository.ParticipantRepository
	messages     repository.MessageRepository
	properties   PropertyDirectory
	escrows      EscrowDirectory
	live         LiveService
	validator    *validator.Validate
	logger       zerolog.Logger
}

// NewRoomService constructs the room directory service.
func NewRoomService(rooms repository.RoomRepository, participants repository.ParticipantRepository, messages repository.MessageRepository, properties PropertyDirectory, escrows EscrowDirectory, live LiveService, validate *validator.Validate, logger zerolog.Logger) RoomService {
	return &roomService{
		rooms:        rooms,
		participants: participants,
		messages:     messages,
		properties:   properties,
		escrows:      escrows,
		live:         live,
		validator:    validate,
		logger:       logger.With().Str("component", "room_service").Logger(),
	}
}

func (s *roomService) CreateRoom(ctx context.Context, userID, userName string, req dto.RoomCreateRequest) (dto.RoomResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.RoomResponse{}, err
	}

	if req.PropertyID != "" {
		room, err := s.ensurePropertyRoom(ctx, req.PropertyID, userID, userName)
		if err != nil {
			return dto.RoomResponse{}, err
		}
		return s.enrich(ctx, room), nil
	}

	roomType := req.RoomType
	if roomType == "" {
		roomType = models.RoomTypePrivate
	}
	if roomType == models.RoomTypeProperty {
		return dto.RoomResponse{}, ErrMissingLinkage
	}

	escrowID, err := s.validateEscrow(ctx, req.EscrowID)
	if err != nil {
		return dto.RoomResponse{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Conversation"
	}

	room := models.ChatRoom{
		Name:      name,
		RoomType:  roomType,
		EscrowID:  escrowID,
		CreatedBy: userID,
		IsActive:  true,
	}

	participants := []models.ChatParticipant{{
		UserID:   userID,
		UserName: userName,
		Role:     "admin",
	}}
	for _, id := range req.ParticipantIDs {
		id = strings.TrimSpace(id)
		if id == "" || id == userID {
			continue
		}
		if containsParticipant(participants, id) {
			continue
		}
		participants = append(participants, models.ChatParticipant{UserID: id, Role: "member"})
	}

	if err := s.rooms.Create(ctx, &room, participants); err != nil {
		return dto.RoomResponse{}, err
	}

	observability.ChatRoomsCreated().WithLabelValues(roomType).Inc()
	s.announceRoomCreated(ctx, room, participants)

	created, err := s.rooms.GetWithParticipants(ctx, room.ID)
	if err != nil {
		return dto.RoomResponse{}, err
	}

	return s.enrich(ctx, created), nil
}

// validateEscrow confirms an optional escrow linkage against the escrow
// service. A missing escrow is a NotFound for the caller.
func (s *roomService) validateEscrow(ctx context.Context, escrowID string) (*string, error) {
	escrowID = strings.TrimSpace(escrowID)
	if escrowID == "" {
		return nil, nil
	}
	if s.escrows == nil {
		return nil, ErrMissingLinkage
	}

	if _, err := s.escrows.GetEscrow(ctx, escrowID); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}

	return &escrowID, nil
}

func containsParticipant(participants []models.ChatParticipant, userID string) bool {
	for _, p := range participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// ensurePropertyRoom returns the canonical room for a property, creating it on
// first contact. The room id is deterministic and property_id carries a unique
// index, so concurrent callers converge: the loser of the insert race refetches
// the winner's row and joins it.
func (s *roomService) ensurePropertyRoom(ctx context.Context, propertyID, userID, userName string) (models.ChatRoom, error) {
	existing, err := s.rooms.GetByPropertyID(ctx, propertyID)
	if err == nil {
		if joinErr := s.ensureJoined(ctx, existing.ID, userID, userName, "member"); joinErr != nil {
			return models.ChatRoom{}, joinErr
		}
		return s.rooms.GetWithParticipants(ctx, existing.ID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ChatRoom{}, err
	}

	name := fmt.Sprintf("Property %s", propertyID)
	var meta datatypes.JSONMap
	ownerID := ""

	if s.properties != nil {
		property, dirErr := s.properties.GetProperty(ctx, propertyID)
		switch {
		case dirErr == nil:
			if property.Title != "" {
				name = property.Title
			}
			ownerID = property.OwnerID
			meta = datatypes.JSONMap{
				"title":    property.Title,
				"owner_id": property.OwnerID,
				"price":    property.Price,
				"city":     property.City,
				"status":   property.Status,
			}
		case errors.Is(dirErr, directory.ErrNotFound):
			return models.ChatRoom{}, gorm.ErrRecordNotFound
		default:
			// Property service being down should not block the conversation.
			s.logger.Warn().Err(dirErr).Str("property_id", propertyID).Msg("property lookup failed, creating room without metadata")
		}
	}

	room := models.ChatRoom{
		ID:           PropertyRoomID(propertyID),
		Name:         name,
		RoomType:     models.RoomTypeProperty,
		PropertyID:   &propertyID,
		PropertyMeta: meta,
		CreatedBy:    userID,
		IsActive:     true,
	}

	participants := []models.ChatParticipant{{
		UserID:   userID,
		UserName: userName,
		Role:     "admin",
	}}
	if ownerID != "" && ownerID != userID {
		participants = append(participants, models.ChatParticipant{UserID: ownerID, Role: "member"})
	}

	if err := s.rooms.Create(ctx, &room, participants); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			winner, getErr := s.rooms.GetByPropertyID(ctx, propertyID)
			if getErr != nil {
				return models.ChatRoom{}, getErr
			}
			if joinErr := s.ensureJoined(ctx, winner.ID, userID, userName, "member"); joinErr != nil {
				return models.ChatRoom{}, joinErr
			}
			return s.rooms.GetWithParticipants(ctx, winner.ID)
		}
		return models.ChatRoom{}, err
	}

	observability.ChatRoomsCreated().WithLabelValues(models.RoomTypeProperty).Inc()
	s.announceRoomCreated(ctx, room, participants)

	return s.rooms.GetWithParticipants(ctx, room.ID)
}

// ensureJoined guarantees an active membership row for the user. A previous
// member is reactivated in place so their join date and read cursor survive.
func (s *roomService) ensureJoined(ctx context.Context, roomID, userID, userName, role string) error {
	existing, err := s.participants.Get(ctx, roomID, userID)
	if err == nil {
		if existing.IsActive {
			return nil
		}
		return s.participants.Reactivate(ctx, roomID, userID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return s.participants.Add(ctx, &models.ChatParticipant{
		RoomID:   roomID,
		UserID:   userID,
		UserName: userName,
		Role:     role,
	})
}

func (s *roomService) announceRoomCreated(ctx context.Context, room models.ChatRoom, participants []models.ChatParticipant) {
	if s.live == nil {
		return
	}

	targets := make([]string, 0, len(participants))
	for _, p := range participants {
		targets = append(targets, p.UserID)
	}

	s.live.Publish(ctx, dto.Event{
		Type:    dto.EventTypeRoomCreated,
		RoomID:  room.ID,
		Targets: targets,
		Data:    dto.NewRoomResponse(room),
	})
}

func (s *roomService) GetRoom(ctx context.Context, userID, userName, rawRoomID string) (dto.RoomResponse, error) {
	ref, err := ResolveRoomID(rawRoomID)
	if err != nil {
		return dto.RoomResponse{}, err
	}

	if ref.IsPropertyAlias() {
		room, err := s.ensurePropertyRoom(ctx, ref.PropertyID, userID, userName)
		if err != nil {
			return dto.RoomResponse{}, err
		}
		return s.enrich(ctx, room), nil
	}

	room, err := s.rooms.GetWithParticipants(ctx, ref.RoomID)
	if err != nil {
		return dto.RoomResponse{}, err
	}

	// Property rooms are readable by any authenticated user; everything else
	// needs an active membership or creator standing.
	if room.RoomType != models.RoomTypeProperty {
		member, err := s.participants.IsActiveMember(ctx, room.ID, userID)
		if err != nil {
			return dto.RoomResponse{}, err
		}
		if !member && room.CreatedBy != userID {
			return dto.RoomResponse{}, ErrChatForbidden
		}
	}

	return s.enrich(ctx, room), nil
}

func (s *roomService) ListRooms(ctx context.Context, userID string, limit, offset int) ([]dto.RoomResponse, error) {
	rooms, err := s.rooms.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	out := make([]dto.RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, s.enrich(ctx, room))
	}
	return out, nil
}

func (s *roomService) DeleteRoom(ctx context.Context, userID, role, rawRoomID string) error {
	ref, err := ResolveRoomID(rawRoomID)
	if err != nil {
		return err
	}

	room, err := s.rooms.Get(ctx, ref.RoomID)
	if err != nil {
		return err
	}

	if err := s.authoriseDelete(ctx, room, userID, role); err != nil {
		return err
	}

	participants, err := s.participants.ListByRoom(ctx, room.ID)
	if err != nil {
		return err
	}

	if err := s.rooms.Delete(ctx, room.ID); err != nil {
		return err
	}

	if s.live != nil {
		targets := make([]string, 0, len(participants))
		for _, p := range participants {
			targets = append(targets, p.UserID)
		}
		s.live.Publish(ctx, dto.Event{
			Type:    dto.EventTypeRoomDeleted,
			RoomID:  room.ID,
			Targets: targets,
			Data:    map[string]string{"room_id": room.ID},
		})
	}

	return nil
}

// authoriseDelete enforces the deletion rule: any active participant may
// delete a plain room; property rooms additionally require the creator or a
// participant holding the admin role. A platform admin passes either way.
func (s *roomService) authoriseDelete(ctx context.Context, room models.ChatRoom, userID, platformRole string) error {
	if platformRole == "admin" {
		return nil
	}

	participant, err := s.participants.Get(ctx, room.ID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChatForbidden
		}
		return err
	}
	if !participant.IsActive {
		return ErrChatForbidden
	}

	if room.RoomType == models.RoomTypeProperty && room.CreatedBy != userID && participant.Role != "admin" {
		return ErrChatForbidden
	}

	return nil
}

func (s *roomService) BatchDelete(ctx context.Context, userID, role string, req dto.RoomBatchDeleteRequest) (dto.BatchDeleteResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.BatchDeleteResponse{}, err
	}

	response := dto.BatchDeleteResponse{
		Deleted: make([]string, 0, len(req.RoomIDs)),
		Failed:  make([]dto.BatchDeleteFailure, 0),
	}

	for _, rawID := range req.RoomIDs {
		err := s.DeleteRoom(ctx, userID, role, rawID)
		switch {
		case err == nil:
			response.Deleted = append(response.Deleted, rawID)
		case errors.Is(err, gorm.ErrRecordNotFound):
			response.Failed = append(response.Failed, dto.BatchDeleteFailure{RoomID: rawID, Reason: "room not found"})
		case errors.Is(err, ErrChatForbidden):
			response.Failed = append(response.Failed, dto.BatchDeleteFailure{RoomID: rawID, Reason: "not authorised"})
		case errors.Is(err, ErrInvalidRoomID):
			response.Failed = append(response.Failed, dto.BatchDeleteFailure{RoomID: rawID, Reason: "invalid room id"})
		default:
			return dto.BatchDeleteResponse{}, err
		}
	}

	return response, nil
}

func (s *roomService) JoinRoom(ctx context.Context, userID, userName, rawRoomID string) (dto.RoomResponse, error) {
	ref, err := ResolveRoomID(rawRoomID)
	if err != nil {
		return dto.RoomResponse{}, err
	}

	if ref.IsPropertyAlias() {
		room, err := s.ensurePropertyRoom(ctx, ref.PropertyID, userID, userName)
		if err != nil {
			return dto.RoomResponse{}, err
		}
		return s.enrich(ctx, room), nil
	}

	room, err := s.rooms.Get(ctx, ref.RoomID)
	if err != nil {
		return dto.RoomResponse{}, err
	}

	if err := s.ensureJoined(ctx, room.ID, userID, userName, "member"); err != nil {
		return dto.RoomResponse{}, err
	}

	if s.live != nil {
		s.live.Publish(ctx, dto.Event{
			Type:   dto.EventTypeUserJoined,
			RoomID: room.ID,
			Data:   map[string]string{"room_id": room.ID, "user_id": userID, "user_name": userName},
		})
	}

	joined, err := s.rooms.GetWithParticipants(ctx, room.ID)
	if err != nil {
		return dto.RoomResponse{}, err
	}
	return s.enrich(ctx, joined), nil
}

func (s *roomService) LeaveRoom(ctx context.Context, userID, rawRoomID string) error {
	ref, err := ResolveRoomID(rawRoomID)
	if err != nil {
		return err
	}

	if err := s.participants.Deactivate(ctx, ref.RoomID, userID); err != nil {
		return err
	}

	if s.live != nil {
		s.live.Publish(ctx, dto.Event{
			Type:   dto.EventTypeUserLeft,
			RoomID: ref.RoomID,
			Data:   map[string]string{"room_id": ref.RoomID, "user_id": userID},
		})
	}

	return nil
}

// EnsureMembership resolves a room reference for a write operation. Property
// rooms are created on demand and the caller auto-joins them; plain rooms
// require an existing active membership.
func (s *roomService) EnsureMembership(ctx context.Context, userID, userName, rawRoomID string) (string, error) {
	ref, err := ResolveRoomID(rawRoomID)
	if err != nil {
		return "", err
	}

	if ref.IsPropertyAlias() {
		room, err := s.ensurePropertyRoom(ctx, ref.PropertyID, userID, userName)
		if err != nil {
			return "", err
		}
		return room.ID, nil
	}

	if _, err := s.rooms.Get(ctx, ref.RoomID); err != nil {
		return "", err
	}

	member, err := s.participants.IsActiveMember(ctx, ref.RoomID, userID)
	if err != nil {
		return "", err
	}
	if !member {
		return "", ErrNotParticipant
	}

	return ref.RoomID, nil
}

// enrich attaches last message and message count. Tombstoned rows are excluded
// from both.
func (s *roomService) enrich(ctx context.Context, room models.ChatRoom) dto.RoomResponse {
	response := dto.NewRoomResponse(room)

	count, err := s.messages.CountByRoom(ctx, room.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("room_id", room.ID).Msg("failed to count messages")
	} else {
		response.MessageCount = count
	}

	latest, err := s.messages.LatestByRoom(ctx, room.ID)
	if err == nil {
		last := dto.NewMessageResponse(latest)
		response.LastMessage = &last
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn().Err(err).Str("room_id", room.ID).Msg("failed to load last message")
	}

	return response
}
