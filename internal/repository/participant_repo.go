package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/primehaven/haven-chat-api/internal/models"
)

// ParticipantRepository persists room membership rows.
type ParticipantRepository interface {
	Add(ctx context.Context, participant *models.ChatParticipant) error
	Get(ctx context.Context, roomID, userID string) (models.ChatParticipant, error)
	ListByRoom(ctx context.Context, roomID string) ([]models.ChatParticipant, error)
	ListRoomIDsByUser(ctx context.Context, userID string) ([]string, error)
	Deactivate(ctx context.Context, roomID, userID string) error
	Reactivate(ctx context.Context, roomID, userID string) error
	MarkRead(ctx context.Context, roomID, userID string, at time.Time) error
	IsActiveMember(ctx context.Context, roomID, userID string) (bool, error)
}

type participantRepository struct {
	db *gorm.DB
}

// NewParticipantRepository constructs a GORM-backed participant repository.
func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

func (r *participantRepository) Add(ctx context.Context, participant *models.ChatParticipant) error {
	return r.db.WithContext(ctx).Create(participant).Error
}

func (r *participantRepository) Get(ctx context.Context, roomID, userID string) (models.ChatParticipant, error) {
	var participant models.ChatParticipant
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&participant).Error
	if err != nil {
		return models.ChatParticipant{}, err
	}
	return participant, nil
}

func (r *participantRepository) ListByRoom(ctx context.Context, roomID string) ([]models.ChatParticipant, error) {
	var participants []models.ChatParticipant
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("joined_at ASC").
		Find(&participants).Error
	if err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *participantRepository) ListRoomIDsByUser(ctx context.Context, userID string) ([]string, error) {
	var roomIDs []string
	err := r.db.WithContext(ctx).
		Model(&models.ChatParticipant{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Pluck("room_id", &roomIDs).Error
	if err != nil {
		return nil, err
	}
	return roomIDs, nil
}

func (r *participantRepository) Deactivate(ctx context.Context, roomID, userID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.ChatParticipant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Reactivate flips an existing membership row back to active. The original
// JoinedAt and read cursor are preserved.
func (r *participantRepository) Reactivate(ctx context.Context, roomID, userID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.ChatParticipant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("is_active", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *participantRepository) MarkRead(ctx context.Context, roomID, userID string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.ChatParticipant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("last_read_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *participantRepository) IsActiveMember(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ChatParticipant{}).
		Where("room_id = ? AND user_id = ? AND is_active = ?", roomID, userID, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
