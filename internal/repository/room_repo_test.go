package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/primehaven/haven-chat-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ChatRoom{}, &models.ChatParticipant{}, &models.ChatMessage{}))
	return db
}

func TestRoomRepositoryCreateWithParticipants(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRoomRepository(db)

	room := models.ChatRoom{Name: "Sunset Villa", RoomType: models.RoomTypePrivate, CreatedBy: "alice"}
	participants := []models.ChatParticipant{
		{UserID: "alice", UserName: "Alice", Role: "admin"},
		{UserID: "bob", Role: "member"},
	}

	require.NoError(t, repo.Create(context.Background(), &room, participants))
	require.NotEmpty(t, room.ID)

	loaded, err := repo.GetWithParticipants(context.Background(), room.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Participants, 2)
	require.Equal(t, "alice", loaded.Participants[0].UserID)
	require.True(t, loaded.Participants[0].IsActive)
}

func TestRoomRepositoryPropertyUniqueness(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRoomRepository(db)

	propertyID := "prop-123"
	first := models.ChatRoom{Name: "Listing", RoomType: models.RoomTypeProperty, PropertyID: &propertyID, CreatedBy: "alice"}
	require.NoError(t, repo.Create(context.Background(), &first, nil))

	second := models.ChatRoom{Name: "Listing again", RoomType: models.RoomTypeProperty, PropertyID: &propertyID, CreatedBy: "bob"}
	err := repo.Create(context.Background(), &second, nil)
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	winner, err := repo.GetByPropertyID(context.Background(), propertyID)
	require.NoError(t, err)
	require.Equal(t, first.ID, winner.ID)
}

func TestRoomRepositoryListByUserSkipsInactiveMemberships(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRoomRepository(db)

	active := models.ChatRoom{Name: "Active", CreatedBy: "alice"}
	require.NoError(t, repo.Create(context.Background(), &active, []models.ChatParticipant{{UserID: "alice"}}))

	left := models.ChatRoom{Name: "Left", CreatedBy: "alice"}
	require.NoError(t, repo.Create(context.Background(), &left, []models.ChatParticipant{{UserID: "alice", IsActive: false}}))

	// gorm skips zero-valued fields on create, force the flag down.
	require.NoError(t, db.Model(&models.ChatParticipant{}).
		Where("room_id = ?", left.ID).
		Update("is_active", false).Error)

	rooms, err := repo.ListByUser(context.Background(), "alice", 10, 0)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	require.Equal(t, active.ID, rooms[0].ID)
}

func TestRoomRepositoryParticipantsHideLeavers(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRoomRepository(db)
	participants := NewParticipantRepository(db)

	room := models.ChatRoom{Name: "Deal", CreatedBy: "alice"}
	require.NoError(t, repo.Create(context.Background(), &room, []models.ChatParticipant{
		{UserID: "alice", Role: "admin"},
		{UserID: "bob", Role: "member"},
	}))

	require.NoError(t, participants.Deactivate(context.Background(), room.ID, "bob"))

	loaded, err := repo.GetWithParticipants(context.Background(), room.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Participants, 1)
	require.Equal(t, "alice", loaded.Participants[0].UserID)

	rooms, err := repo.ListByUser(context.Background(), "alice", 10, 0)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	require.Len(t, rooms[0].Participants, 1)

	// The membership row itself survives for reactivation.
	bob, err := participants.Get(context.Background(), room.ID, "bob")
	require.NoError(t, err)
	require.False(t, bob.IsActive)
}

func TestRoomRepositoryDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRoomRepository(db)

	room := models.ChatRoom{Name: "Doomed", CreatedBy: "alice"}
	require.NoError(t, repo.Create(context.Background(), &room, []models.ChatParticipant{{UserID: "alice"}}))
	require.NoError(t, db.Create(&models.ChatMessage{RoomID: room.ID, SenderID: "alice", Content: "hi"}).Error)

	require.NoError(t, repo.Delete(context.Background(), room.ID))

	_, err := repo.Get(context.Background(), room.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var participantCount, messageCount int64
	require.NoError(t, db.Model(&models.ChatParticipant{}).Where("room_id = ?", room.ID).Count(&participantCount).Error)
	require.NoError(t, db.Model(&models.ChatMessage{}).Where("room_id = ?", room.ID).Count(&messageCount).Error)
	require.Zero(t, participantCount)
	require.Zero(t, messageCount)

	require.ErrorIs(t, repo.Delete(context.Background(), room.ID), gorm.ErrRecordNotFound)
}
