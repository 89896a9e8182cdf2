package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/primehaven/haven-chat-api/internal/models"
)

func seedMessage(t *testing.T, repo MessageRepository, roomID, senderID, content string) models.ChatMessage {
	t.Helper()
	message := models.ChatMessage{RoomID: roomID, SenderID: senderID, Content: content, MessageType: models.MessageTypeText}
	require.NoError(t, repo.Save(context.Background(), &message))
	return message
}

func TestMessageRepositoryListKeepsTombstones(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)

	first := seedMessage(t, repo, "room-1", "alice", "hello")
	second := seedMessage(t, repo, "room-1", "bob", "delete me")
	third := seedMessage(t, repo, "room-1", "alice", "goodbye")

	require.NoError(t, repo.Tombstone(context.Background(), second.ID))

	messages, err := repo.ListByRoom(context.Background(), "room-1", time.Time{}, 0, 10)
	require.NoError(t, err)
	require.Len(t, messages, 3, "tombstoned rows stay in the listing")
	require.Equal(t, first.ID, messages[0].ID)
	require.Equal(t, second.ID, messages[1].ID)
	require.Equal(t, third.ID, messages[2].ID)
	require.True(t, messages[1].IsDeleted)
	require.Equal(t, models.DeletedMessageContent, messages[1].Content)
}

func TestMessageRepositoryCountAndLatestExcludeTombstones(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)

	seedMessage(t, repo, "room-1", "alice", "hello")
	last := seedMessage(t, repo, "room-1", "bob", "latest")
	doomed := seedMessage(t, repo, "room-1", "bob", "doomed")
	require.NoError(t, repo.Tombstone(context.Background(), doomed.ID))

	count, err := repo.CountByRoom(context.Background(), "room-1")
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	latest, err := repo.LatestByRoom(context.Background(), "room-1")
	require.NoError(t, err)
	require.Equal(t, last.ID, latest.ID)
}

func TestMessageRepositoryTombstoneIsTerminal(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)

	message := seedMessage(t, repo, "room-1", "alice", "secret")
	require.NoError(t, repo.Tombstone(context.Background(), message.ID))

	// Second delete and edits of a tombstone both report not found.
	require.ErrorIs(t, repo.Tombstone(context.Background(), message.ID), gorm.ErrRecordNotFound)
	require.ErrorIs(t, repo.UpdateContent(context.Background(), message.ID, "rewritten"), gorm.ErrRecordNotFound)

	stored, err := repo.Get(context.Background(), message.ID)
	require.NoError(t, err)
	require.Equal(t, models.DeletedMessageContent, stored.Content)
	require.True(t, stored.IsDeleted)
}

func TestMessageRepositoryUpdateContentMarksEdited(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)

	message := seedMessage(t, repo, "room-1", "alice", "typo")
	require.NoError(t, repo.UpdateContent(context.Background(), message.ID, "fixed"))

	stored, err := repo.Get(context.Background(), message.ID)
	require.NoError(t, err)
	require.Equal(t, "fixed", stored.Content)
	require.True(t, stored.IsEdited)
}

func TestMessageRepositorySaveBumpsRoomActivity(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)

	room := models.ChatRoom{Name: "Quiet", CreatedBy: "alice", UpdatedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, db.Create(&room).Error)

	message := seedMessage(t, repo, room.ID, "alice", "ping")

	var reloaded models.ChatRoom
	require.NoError(t, db.First(&reloaded, "id = ?", room.ID).Error)
	require.WithinDuration(t, message.CreatedAt, reloaded.UpdatedAt, time.Second)
}
