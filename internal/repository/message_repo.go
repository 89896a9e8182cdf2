package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/primehaven/haven-chat-api/internal/models"
)

// MessageRepository persists the append-only message log. Rows are never
// removed by user action; deletion writes a tombstone.
type MessageRepository interface {
	Save(ctx context.Context, message *models.ChatMessage) error
	Get(ctx context.Context, id string) (models.ChatMessage, error)
	ListByRoom(ctx context.Context, roomID string, before time.Time, offset, limit int) ([]models.ChatMessage, error)
	LatestByRoom(ctx context.Context, roomID string) (models.ChatMessage, error)
	CountByRoom(ctx context.Context, roomID string) (int64, error)
	UpdateContent(ctx context.Context, id, content string) error
	Tombstone(ctx context.Context, id string) error
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a GORM-backed message repository.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Save appends the message and bumps the room's updated_at so room listings
// sort by recent activity.
func (r *messageRepository) Save(ctx context.Context, message *models.ChatMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}

		return tx.Model(&models.ChatRoom{}).
			Where("id = ?", message.RoomID).
			UpdateColumn("updated_at", message.CreatedAt).
			Error
	})
}

func (r *messageRepository) Get(ctx context.Context, id string) (models.ChatMessage, error) {
	var message models.ChatMessage
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&message).Error; err != nil {
		return models.ChatMessage{}, err
	}
	return message, nil
}

// ListByRoom returns history in chronological order. Tombstoned rows are kept
// in the listing; their content already carries the deletion marker.
func (r *messageRepository) ListByRoom(ctx context.Context, roomID string, before time.Time, offset, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := r.db.WithContext(ctx).Where("room_id = ?", roomID)
	if !before.IsZero() {
		query = query.Where("created_at < ?", before)
	}

	var messages []models.ChatMessage
	if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}

	// Reverse to chronological order ascending for clients.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// LatestByRoom returns the newest non-deleted message in the room.
func (r *messageRepository) LatestByRoom(ctx context.Context, roomID string) (models.ChatMessage, error) {
	var message models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND is_deleted = ?", roomID, false).
		Order("created_at DESC, id DESC").
		First(&message).Error
	if err != nil {
		return models.ChatMessage{}, err
	}
	return message, nil
}

// CountByRoom counts non-deleted messages in the room.
func (r *messageRepository) CountByRoom(ctx context.Context, roomID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("room_id = ? AND is_deleted = ?", roomID, false).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *messageRepository) UpdateContent(ctx context.Context, id, content string) error {
	result := r.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]any{"content": content, "is_edited": true})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Tombstone marks the row deleted and replaces its content. Idempotent tombstones
// are rejected as not found so callers can report double deletes.
func (r *messageRepository) Tombstone(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]any{"is_deleted": true, "content": models.DeletedMessageContent})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
