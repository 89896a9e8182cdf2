package dto

import (
	"time"

	"github.com/primehaven/haven-chat-api/internal/models"
)

// RoomCreateRequest is the payload to open a new chat room. PropertyID makes
// the room property-kind; participant ids beyond the creator are optional.
type RoomCreateRequest struct {
	Name           string   `json:"name" validate:"omitempty,max=255"`
	RoomType       string   `json:"room_type" validate:"omitempty,oneof=private group property"`
	PropertyID     string   `json:"property_id" validate:"omitempty,max=64"`
	EscrowID       string   `json:"escrow_id" validate:"omitempty,max=64"`
	ParticipantIDs []string `json:"participant_ids" validate:"omitempty,max=50,dive,required,max=64"`
}

// RoomBatchDeleteRequest deletes several rooms in one call.
type RoomBatchDeleteRequest struct {
	RoomIDs []string `json:"room_ids" validate:"required,min=1,max=100,dive,required,max=128"`
}

// MessageSendRequest is the payload to append a message to a room.
type MessageSendRequest struct {
	Content     string  `json:"content" validate:"required,min=1,max=4000"`
	MessageType string  `json:"message_type" validate:"omitempty,oneof=text image file voice video"`
	FileURL     string  `json:"file_url" validate:"omitempty,url,max=512"`
	FileName    string  `json:"file_name" validate:"omitempty,max=255"`
	FileSize    int64   `json:"file_size" validate:"omitempty,min=0"`
	ReplyToID   *string `json:"reply_to_id" validate:"omitempty,uuid4"`
}

// MessageUpdateRequest edits the content of an existing message.
type MessageUpdateRequest struct {
	Content string `json:"content" validate:"required,min=1,max=4000"`
}

// MessageHistoryQuery holds query filters for listing room history. Offset
// pages through the newest-first ordering; Before additionally restricts the
// listing to messages created before the given instant.
type MessageHistoryQuery struct {
	Offset int        `query:"offset" validate:"omitempty,min=0"`
	Before *time.Time `query:"before"`
	Limit  int        `query:"limit" validate:"omitempty,min=1,max=100"`
}

// ParticipantResponse is the serialized representation of a room member.
type ParticipantResponse struct {
	UserID     string     `json:"user_id"`
	UserName   string     `json:"user_name,omitempty"`
	Role       string     `json:"role"`
	IsActive   bool       `json:"is_active"`
	JoinedAt   time.Time  `json:"joined_at"`
	LastReadAt *time.Time `json:"last_read_at,omitempty"`
}

// NewParticipantResponse converts a participant model into a DTO.
func NewParticipantResponse(model models.ChatParticipant) ParticipantResponse {
	return ParticipantResponse{
		UserID:     model.UserID,
		UserName:   model.UserName,
		Role:       model.Role,
		IsActive:   model.IsActive,
		JoinedAt:   model.JoinedAt,
		LastReadAt: model.LastReadAt,
	}
}

// NewParticipantResponseSlice converts a slice of participants into DTOs.
func NewParticipantResponseSlice(items []models.ChatParticipant) []ParticipantResponse {
	out := make([]ParticipantResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewParticipantResponse(item))
	}
	return out
}

// RoomResponse describes a room returned by the API. LastMessage and
// MessageCount are computed from non-deleted rows only.
type RoomResponse struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	RoomType     string                `json:"room_type"`
	PropertyID   *string               `json:"property_id,omitempty"`
	EscrowID     *string               `json:"escrow_id,omitempty"`
	PropertyMeta map[string]any        `json:"property_meta,omitempty"`
	CreatedBy    string                `json:"created_by"`
	IsActive     bool                  `json:"is_active"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	Participants []ParticipantResponse `json:"participants,omitempty"`
	LastMessage  *MessageResponse      `json:"last_message,omitempty"`
	MessageCount int64                 `json:"message_count"`
}

// NewRoomResponse converts a room model into a DTO including participants when preloaded.
func NewRoomResponse(model models.ChatRoom) RoomResponse {
	response := RoomResponse{
		ID:         model.ID,
		Name:       model.Name,
		RoomType:   model.RoomType,
		PropertyID: model.PropertyID,
		EscrowID:   model.EscrowID,
		CreatedBy:  model.CreatedBy,
		IsActive:   model.IsActive,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
	if model.PropertyMeta != nil {
		response.PropertyMeta = map[string]any(model.PropertyMeta)
	}
	if len(model.Participants) > 0 {
		response.Participants = NewParticipantResponseSlice(model.Participants)
	}
	return response
}

// NewRoomResponseSlice converts a slice of rooms into DTOs.
func NewRoomResponseSlice(items []models.ChatRoom) []RoomResponse {
	out := make([]RoomResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewRoomResponse(item))
	}
	return out
}

// MessageResponse is the serialized representation of a chat message.
type MessageResponse struct {
	ID          string    `json:"id"`
	RoomID      string    `json:"room_id"`
	SenderID    string    `json:"sender_id"`
	SenderName  string    `json:"sender_name,omitempty"`
	Content     string    `json:"content"`
	MessageType string    `json:"message_type"`
	FileURL     string    `json:"file_url,omitempty"`
	FileName    string    `json:"file_name,omitempty"`
	FileSize    int64     `json:"file_size,omitempty"`
	ReplyToID   *string   `json:"reply_to_id,omitempty"`
	IsEdited    bool      `json:"is_edited"`
	IsDeleted   bool      `json:"is_deleted"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewMessageResponse converts a message model into a DTO.
func NewMessageResponse(model models.ChatMessage) MessageResponse {
	return MessageResponse{
		ID:          model.ID,
		RoomID:      model.RoomID,
		SenderID:    model.SenderID,
		SenderName:  model.SenderName,
		Content:     model.Content,
		MessageType: model.MessageType,
		FileURL:     model.FileURL,
		FileName:    model.FileName,
		FileSize:    model.FileSize,
		ReplyToID:   model.ReplyToID,
		IsEdited:    model.IsEdited,
		IsDeleted:   model.IsDeleted,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// NewMessageResponseSlice converts a slice of messages into DTOs.
func NewMessageResponseSlice(items []models.ChatMessage) []MessageResponse {
	out := make([]MessageResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewMessageResponse(item))
	}
	return out
}

// BatchDeleteFailure records why a single room in a batch could not be deleted.
type BatchDeleteFailure struct {
	RoomID string `json:"room_id"`
	Reason string `json:"reason"`
}

// BatchDeleteResponse summarises the outcome of a batch room deletion.
type BatchDeleteResponse struct {
	Deleted []string             `json:"deleted"`
	Failed  []BatchDeleteFailure `json:"failed"`
}

// OnlineStatusResponse reports which of the requested users are online.
type OnlineStatusResponse struct {
	Online map[string]bool `json:"online"`
}

// AttachmentResponse describes an uploaded chat attachment.
type AttachmentResponse struct {
	FileURL     string `json:"file_url"`
	FileName    string `json:"file_name"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type"`
	MessageType string `json:"message_type"`
}

// Event is the envelope broadcast to websocket clients and relayed across
// nodes. Targets, when set, addresses specific users instead of a room;
// Exclude withholds a broadcast from one user (the typist, usually).
// Source identifies the publishing node so relays can skip their own events.
type Event struct {
	Type    string   `json:"type"`
	RoomID  string   `json:"room_id,omitempty"`
	Targets []string `json:"targets,omitempty"`
	Exclude string   `json:"exclude,omitempty"`
	Data    any      `json:"data,omitempty"`
	Source  string   `json:"source,omitempty"`
}

// Event types fanned out by the gateway.
const (
	EventTypeMessage        = "message"
	EventTypeMessageEdited  = "message_edited"
	EventTypeMessageDeleted = "message_deleted"
	EventTypeRoomCreated    = "room_created"
	EventTypeRoomDeleted    = "room_deleted"
	EventTypeTyping         = "typing"
	EventTypeUserJoined     = "user_joined"
	EventTypeUserLeft       = "user_left"
)

// TypingPayload is the data of a typing event.
type TypingPayload struct {
	RoomID   string `json:"room_id"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
	IsTyping bool   `json:"is_typing"`
}
