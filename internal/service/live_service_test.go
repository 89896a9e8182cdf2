package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/primehaven/haven-chat-api/internal/dto"
	"github.com/primehaven/haven-chat-api/internal/models"
)

func newLiveFixture(t *testing.T, mr *miniredis.Miniredis) (*liveService, testRepos) {
	t.Helper()
	repos := newTestRepos(t)

	var client *redis.Client
	if mr != nil {
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
	}

	svc := NewLiveService(NewGateway(zerolog.Nop()), repos.participants, client, nil, LiveConfig{
		ChannelBase:    "haven-test",
		PresenceTTL:    time.Minute,
		LastMessageTTL: time.Minute,
		KeepAlive:      time.Second,
	}, zerolog.Nop())

	return svc.(*liveService), repos
}

func TestLiveServicePresenceLifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	svc, _ := newLiveFixture(t, mr)

	require.NoError(t, svc.Heartbeat(context.Background(), "alice"))

	status, err := svc.OnlineStatus(context.Background(), []string{"alice", "bob"})
	require.NoError(t, err)
	require.True(t, status.Online["alice"])
	require.False(t, status.Online["bob"])

	// Presence decays once the TTL passes without a heartbeat.
	mr.FastForward(2 * time.Minute)
	status, err = svc.OnlineStatus(context.Background(), []string{"alice"})
	require.NoError(t, err)
	require.False(t, status.Online["alice"])
}

func TestLiveServiceOnlineStatusPrefersLocalConnections(t *testing.T) {
	svc, _ := newLiveFixture(t, nil)

	client := newGatewayClient(svc.gateway, nil, "alice", "Alice")
	svc.gateway.Register(client)

	status, err := svc.OnlineStatus(context.Background(), []string{"alice"})
	require.NoError(t, err)
	require.True(t, status.Online["alice"])
}

func TestLiveServiceRelayAcrossNodes(t *testing.T) {
	mr := miniredis.RunT(t)

	nodeA, _ := newLiveFixture(t, mr)
	nodeB, _ := newLiveFixture(t, mr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	nodeA.Start(ctx)
	nodeB.Start(ctx)

	remote := newGatewayClient(nodeB.gateway, nil, "bob", "Bob")
	nodeB.gateway.Register(remote)
	nodeB.gateway.Subscribe(remote, "room-1")

	local := newGatewayClient(nodeA.gateway, nil, "alice", "Alice")
	nodeA.gateway.Register(local)
	nodeA.gateway.Subscribe(local, "room-1")

	nodeA.Publish(ctx, dto.Event{Type: dto.EventTypeMessage, RoomID: "room-1", Data: map[string]string{"content": "hi"}})

	// The remote node delivers the relayed copy.
	require.Eventually(t, func() bool {
		return len(drainEvents(remote)) > 0
	}, 2*time.Second, 10*time.Millisecond)

	// The publishing node must not double-deliver via its own relay.
	time.Sleep(50 * time.Millisecond)
	require.Len(t, drainEvents(local), 1)
}

func TestLiveServiceRelaySkipsOwnEvents(t *testing.T) {
	svc, _ := newLiveFixture(t, nil)

	client := newGatewayClient(svc.gateway, nil, "alice", "Alice")
	svc.gateway.Register(client)
	svc.gateway.Subscribe(client, "room-1")

	event := dto.Event{Type: dto.EventTypeMessage, RoomID: "room-1", Source: svc.nodeID}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	svc.handleRelayed(payload)
	require.Empty(t, drainEvents(client))
}

func TestLiveServiceCachedLastMessageOnSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	svc, repos := newLiveFixture(t, mr)

	require.NoError(t, repos.participants.Add(context.Background(), &models.ChatParticipant{
		RoomID: PropertyRoomID("listing-42"),
		UserID: "alice",
	}))

	message := dto.MessageResponse{
		ID:      "m-1",
		RoomID:  PropertyRoomID("listing-42"),
		Content: "welcome back",
	}
	svc.PublishMessage(context.Background(), message)

	client := newGatewayClient(svc.gateway, nil, "alice", "Alice")
	svc.gateway.Register(client)
	svc.handleSubscribe(context.Background(), client, "prop_listing-42")

	events := drainEvents(client)
	require.Len(t, events, 1)
	require.Equal(t, dto.EventTypeMessage, events[0].Type)
}

func TestLiveServiceTypingRequiresMembership(t *testing.T) {
	svc, repos := newLiveFixture(t, nil)

	roomID := PropertyRoomID("listing-42")
	require.NoError(t, repos.participants.Add(context.Background(), &models.ChatParticipant{RoomID: roomID, UserID: "alice"}))

	member := newGatewayClient(svc.gateway, nil, "bob", "Bob")
	svc.gateway.Register(member)
	svc.gateway.Subscribe(member, roomID)

	require.NoError(t, svc.Typing(context.Background(), "alice", "Alice", "prop_listing-42", true))
	events := drainEvents(member)
	require.Len(t, events, 1)
	require.Equal(t, dto.EventTypeTyping, events[0].Type)

	require.ErrorIs(t, svc.Typing(context.Background(), "stranger", "", "prop_listing-42", true), ErrNotParticipant)
}
