package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/primehaven/haven-chat-api/internal/dto"
	"github.com/primehaven/haven-chat-api/internal/models"
	"github.com/primehaven/haven-chat-api/internal/repository"
	"github.com/primehaven/haven-chat-api/pkg/directory"
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

type testRepos struct {
	rooms        repository.RoomRepository
	participants repository.ParticipantRepository
	messages     repository.MessageRepository
}

func newTestRepos(t *testing.T) testRepos {
	t.Helper()
	db := setupTestDB(t)
	return testRepos{
		rooms:        repository.NewRoomRepository(db),
		participants: repository.NewParticipantRepository(db),
		messages:     repository.NewMessageRepository(db),
	}
}

// stubPropertyDirectory serves canned property records.
type stubPropertyDirectory struct {
	properties map[string]directory.Property
	err        error
}

func (s *stubPropertyDirectory) GetProperty(_ context.Context, propertyID string) (directory.Property, error) {
	if s.err != nil {
		return directory.Property{}, s.err
	}
	property, ok := s.properties[propertyID]
	if !ok {
		return directory.Property{}, directory.ErrNotFound
	}
	return property, nil
}

// stubEscrowDirectory serves canned escrow records.
type stubEscrowDirectory struct {
	escrows map[string]directory.Escrow
}

func (s *stubEscrowDirectory) GetEscrow(_ context.Context, escrowID string) (directory.Escrow, error) {
	escrow, ok := s.escrows[escrowID]
	if !ok {
		return directory.Escrow{}, directory.ErrNotFound
	}
	return escrow, nil
}

// recordingLive captures published events instead of touching sockets or brokers.
type recordingLive struct {
	mu     sync.Mutex
	events []dto.Event
}

func (r *recordingLive) ServeConnection(*websocket.Conn, ConnectionOptions) {}

func (r *recordingLive) Publish(_ context.Context, event dto.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingLive) PublishMessage(ctx context.Context, message dto.MessageResponse) {
	r.Publish(ctx, dto.Event{Type: dto.EventTypeMessage, RoomID: message.RoomID, Data: message})
}

func (r *recordingLive) Typing(context.Context, string, string, string, bool) error { return nil }

func (r *recordingLive) OnlineStatus(context.Context, []string) (dto.OnlineStatusResponse, error) {
	return dto.OnlineStatusResponse{Online: map[string]bool{}}, nil
}

func (r *recordingLive) Heartbeat(context.Context, string) error { return nil }

func (r *recordingLive) Start(context.Context) {}

func (r *recordingLive) eventsOfType(eventType string) []dto.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]dto.Event, 0)
	for _, event := range r.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}
