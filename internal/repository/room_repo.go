package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/primehaven/haven-chat-api/internal/models"
)

// RoomRepository persists chat rooms and their membership.
type RoomRepository interface {
	Create(ctx context.Context, room *models.ChatRoom, participants []models.ChatParticipant) error
	Get(ctx context.Context, id string) (models.ChatRoom, error)
	GetWithParticipants(ctx context.Context, id string) (models.ChatRoom, error)
	GetByPropertyID(ctx context.Context, propertyID string) (models.ChatRoom, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.ChatRoom, error)
	Delete(ctx context.Context, id string) error
}

type roomRepository struct {
	db *gorm.DB
}

// NewRoomRepository constructs a GORM-backed room repository.
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

// Create inserts the room and its initial participants in one transaction so a
// room never becomes visible without its creator in the registry.
func (r *roomRepository) Create(ctx context.Context, room *models.ChatRoom, participants []models.ChatParticipant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}

		for i := range participants {
			participants[i].RoomID = room.ID
		}
		if len(participants) > 0 {
			if err := tx.Create(&participants).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *roomRepository) Get(ctx context.Context, id string) (models.ChatRoom, error) {
	var room models.ChatRoom
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&room).Error; err != nil {
		return models.ChatRoom{}, err
	}
	return room, nil
}

// GetWithParticipants loads the room with its active membership. Users who
// left the room stay in the table but never in the response.
func (r *roomRepository) GetWithParticipants(ctx context.Context, id string) (models.ChatRoom, error) {
	var room models.ChatRoom
	if err := r.db.WithContext(ctx).Preload("Participants", activeParticipants).
		Where("id = ?", id).First(&room).Error; err != nil {
		return models.ChatRoom{}, err
	}
	return room, nil
}

func activeParticipants(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ?", true).Order("joined_at ASC")
}

// GetByPropertyID returns the canonical active room for a property.
func (r *roomRepository) GetByPropertyID(ctx context.Context, propertyID string) (models.ChatRoom, error) {
	var room models.ChatRoom
	if err := r.db.WithContext(ctx).Where("property_id = ? AND is_active = ?", propertyID, true).First(&room).Error; err != nil {
		return models.ChatRoom{}, err
	}
	return room, nil
}

func (r *roomRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.ChatRoom, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var rooms []models.ChatRoom
	err := r.db.WithContext(ctx).
		Joins("JOIN chat_participants ON chat_participants.room_id = chat_rooms.id").
		Where("chat_participants.user_id = ? AND chat_participants.is_active = ?", userID, true).
		Preload("Participants", activeParticipants).
		Order("chat_rooms.updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}

	return rooms, nil
}

// Delete removes the room, its participants and its message log in one
// transaction. Returns gorm.ErrRecordNotFound when the room does not exist.
func (r *roomRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&models.ChatRoom{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := tx.Where("room_id = ?", id).Delete(&models.ChatParticipant{}).Error; err != nil {
			return err
		}

		return tx.Where("room_id = ?", id).Delete(&models.ChatMessage{}).Error
	})
}
