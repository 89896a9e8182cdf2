package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DeletedMessageContent replaces the body of a message after soft deletion.
const DeletedMessageContent = "This message was deleted"

// Room kinds recognised by the directory.
const (
	RoomTypePrivate  = "private"
	RoomTypeGroup    = "group"
	RoomTypeProperty = "property"
)

// Message content types.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
	MessageTypeVoice = "voice"
	MessageTypeVideo = "video"
)

// ChatRoom represents a conversation container. Property rooms carry a
// property reference; PropertyID has a unique index so at most one canonical
// room exists per property.
type ChatRoom struct {
	ID           string            `gorm:"primaryKey;size:36" json:"id"`
	Name         string            `gorm:"size:255;not null" json:"name"`
	RoomType     string            `gorm:"size:32;not null;default:private" json:"room_type"`
	PropertyID   *string           `gorm:"size:64;uniqueIndex" json:"property_id,omitempty"`
	EscrowID     *string           `gorm:"size:64;index" json:"escrow_id,omitempty"`
	PropertyMeta datatypes.JSONMap `gorm:"type:json" json:"property_meta,omitempty"`
	CreatedBy    string            `gorm:"size:64;index;not null" json:"created_by"`
	IsActive     bool              `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`

	Participants []ChatParticipant `gorm:"foreignKey:RoomID" json:"participants,omitempty"`
}

// BeforeCreate assigns a UUID primary key when none was provided. Rooms
// resolved from property aliases arrive with a precomputed deterministic id.
func (r *ChatRoom) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// ChatParticipant links a user to a room. A user has at most one row per room;
// leaving flips IsActive instead of deleting so the read cursor survives.
type ChatParticipant struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	RoomID     string     `gorm:"size:36;index:idx_room_user,unique;not null" json:"room_id"`
	UserID     string     `gorm:"size:64;index:idx_room_user,unique;not null" json:"user_id"`
	UserName   string     `gorm:"size:255" json:"user_name"`
	Role       string     `gorm:"size:32;default:member" json:"role"`
	IsActive   bool       `gorm:"not null;default:true" json:"is_active"`
	JoinedAt   time.Time  `json:"joined_at"`
	LastReadAt *time.Time `json:"last_read_at,omitempty"`
}

func (p *ChatParticipant) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now().UTC()
	}
	return nil
}

// ChatMessage is an append-only log entry. Deletion is a tombstone: IsDeleted
// is set and Content is replaced, the row itself is never removed.
type ChatMessage struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	RoomID      string    `gorm:"size:36;index:idx_room_created" json:"room_id"`
	SenderID    string    `gorm:"size:64;index" json:"sender_id"`
	SenderName  string    `gorm:"size:255" json:"sender_name"`
	Content     string    `gorm:"type:text" json:"content"`
	MessageType string    `gorm:"size:32;not null;default:text" json:"message_type"`
	FileURL     string    `gorm:"size:512" json:"file_url,omitempty"`
	FileName    string    `gorm:"size:255" json:"file_name,omitempty"`
	FileSize    int64     `json:"file_size,omitempty"`
	ReplyToID   *string   `gorm:"size:36;index" json:"reply_to_id,omitempty"`
	IsEdited    bool      `gorm:"not null;default:false" json:"is_edited"`
	IsDeleted   bool      `gorm:"not null;default:false" json:"is_deleted"`
	CreatedAt   time.Time `gorm:"index:idx_room_created" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (m *ChatMessage) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
