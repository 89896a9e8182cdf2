package service

import (
	"sync"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/primehaven/haven-chat-api/internal/dto"
	"github.com/primehaven/haven-chat-api/internal/observability"
)

const gatewaySendBufferSize = 32

// Gateway tracks live websocket clients and fans events out to them. All
// state here is volatile; delivery is best effort, at most once. A client
// whose send buffer is full has the event dropped rather than blocking the
// broadcast.
type Gateway struct {
	mu    sync.RWMutex
	rooms map[string]map[*GatewayClient]struct{}
	users map[string]map[*GatewayClient]struct{}
	log   zerolog.Logger
}

// NewGateway constructs an empty gateway.
func NewGateway(logger zerolog.Logger) *Gateway {
	return &Gateway{
		rooms: make(map[string]map[*GatewayClient]struct{}),
		users: make(map[string]map[*GatewayClient]struct{}),
		log:   logger.With().Str("component", "chat_gateway").Logger(),
	}
}

// GatewayClient is one websocket connection attached to the gateway. A user
// may hold several connections; each tracks its own room subscriptions.
type GatewayClient struct {
	conn     *websocket.Conn
	send     chan dto.Event
	userID   string
	userName string
	rooms    map[string]struct{}
	closed   chan struct{}
	once     sync.Once
	gateway  *Gateway
}

func newGatewayClient(gw *Gateway, conn *websocket.Conn, userID, userName string) *GatewayClient {
	return &GatewayClient{
		conn:     conn,
		send:     make(chan dto.Event, gatewaySendBufferSize),
		userID:   userID,
		userName: userName,
		rooms:    make(map[string]struct{}),
		closed:   make(chan struct{}),
		gateway:  gw,
	}
}

func (c *GatewayClient) enqueue(event dto.Event) {
	select {
	case c.send <- event:
	default:
		observability.ChatEventsDropped().Inc()
		c.gateway.log.Warn().
			Str("user_id", c.userID).
			Str("event_type", event.Type).
			Msg("dropping event for slow client")
	}
}

// Register attaches a client to the gateway.
func (g *Gateway) Register(client *GatewayClient) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.users[client.userID]; !exists {
		g.users[client.userID] = make(map[*GatewayClient]struct{})
	}
	g.users[client.userID][client] = struct{}{}

	observability.ChatConnections().Inc()
	g.log.Debug().Str("user_id", client.userID).Msg("client connected")
}

// Unregister detaches a client and all of its room subscriptions. Returns true
// when this was the user's last connection.
func (g *Gateway) Unregister(client *GatewayClient) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for roomID := range client.rooms {
		g.dropFromRoom(roomID, client)
	}

	last := false
	if conns, ok := g.users[client.userID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(g.users, client.userID)
			last = true
		}
	}

	observability.ChatConnections().Dec()
	g.log.Debug().Str("user_id", client.userID).Bool("last_connection", last).Msg("client disconnected")
	return last
}

// Subscribe adds the client to a room's fan-out set.
func (g *Gateway) Subscribe(client *GatewayClient, roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.rooms[roomID]; !exists {
		g.rooms[roomID] = make(map[*GatewayClient]struct{})
	}
	g.rooms[roomID][client] = struct{}{}
	client.rooms[roomID] = struct{}{}
}

// Unsubscribe removes the client from a room's fan-out set.
func (g *Gateway) Unsubscribe(client *GatewayClient, roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.dropFromRoom(roomID, client)
	delete(client.rooms, roomID)
}

func (g *Gateway) dropFromRoom(roomID string, client *GatewayClient) {
	if clients, ok := g.rooms[roomID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(g.rooms, roomID)
		}
	}
}

// BroadcastToRoom delivers an event to every client subscribed to the room.
// An event carrying an Exclude user is not echoed back to that user.
func (g *Gateway) BroadcastToRoom(roomID string, event dto.Event) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for client := range g.rooms[roomID] {
		if event.Exclude != "" && client.userID == event.Exclude {
			continue
		}
		client.enqueue(event)
	}
}

// SendToUser delivers an event to every connection held by the user.
func (g *Gateway) SendToUser(userID string, event dto.Event) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for client := range g.users[userID] {
		client.enqueue(event)
	}
}

// BroadcastToAll delivers an event to every connected client.
func (g *Gateway) BroadcastToAll(event dto.Event) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[*GatewayClient]struct{})
	for userID, conns := range g.users {
		if event.Exclude != "" && userID == event.Exclude {
			continue
		}
		for client := range conns {
			if _, dup := seen[client]; dup {
				continue
			}
			seen[client] = struct{}{}
			client.enqueue(event)
		}
	}
}

// IsUserConnected reports whether the user holds at least one live connection
// on this node.
func (g *Gateway) IsUserConnected(userID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.users[userID]) > 0
}
