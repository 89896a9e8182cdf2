package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/primehaven/haven-chat-api/internal/models"
)

func TestParticipantRepositoryLifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewParticipantRepository(db)

	participant := models.ChatParticipant{RoomID: "room-1", UserID: "alice", UserName: "Alice"}
	require.NoError(t, repo.Add(context.Background(), &participant))

	active, err := repo.IsActiveMember(context.Background(), "room-1", "alice")
	require.NoError(t, err)
	require.True(t, active)

	require.NoError(t, repo.Deactivate(context.Background(), "room-1", "alice"))
	active, err = repo.IsActiveMember(context.Background(), "room-1", "alice")
	require.NoError(t, err)
	require.False(t, active)

	// Rejoining reactivates the same row, the join date survives.
	require.NoError(t, repo.Reactivate(context.Background(), "room-1", "alice"))
	reloaded, err := repo.Get(context.Background(), "room-1", "alice")
	require.NoError(t, err)
	require.True(t, reloaded.IsActive)
	require.Equal(t, participant.ID, reloaded.ID)
	require.WithinDuration(t, participant.JoinedAt, reloaded.JoinedAt, time.Second)
}

func TestParticipantRepositoryMarkRead(t *testing.T) {
	db := setupTestDB(t)
	repo := NewParticipantRepository(db)

	require.NoError(t, repo.Add(context.Background(), &models.ChatParticipant{RoomID: "room-1", UserID: "alice"}))

	readAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.MarkRead(context.Background(), "room-1", "alice", readAt))

	participant, err := repo.Get(context.Background(), "room-1", "alice")
	require.NoError(t, err)
	require.NotNil(t, participant.LastReadAt)
	require.WithinDuration(t, readAt, *participant.LastReadAt, time.Second)

	require.ErrorIs(t, repo.MarkRead(context.Background(), "room-1", "ghost", readAt), gorm.ErrRecordNotFound)
}

func TestParticipantRepositoryListRoomIDsByUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewParticipantRepository(db)

	require.NoError(t, repo.Add(context.Background(), &models.ChatParticipant{RoomID: "room-1", UserID: "alice"}))
	require.NoError(t, repo.Add(context.Background(), &models.ChatParticipant{RoomID: "room-2", UserID: "alice"}))
	require.NoError(t, repo.Add(context.Background(), &models.ChatParticipant{RoomID: "room-3", UserID: "bob"}))
	require.NoError(t, repo.Deactivate(context.Background(), "room-2", "alice"))

	roomIDs, err := repo.ListRoomIDsByUser(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, []string{"room-1"}, roomIDs)
}
