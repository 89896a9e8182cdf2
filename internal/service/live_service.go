package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/primehaven/haven-chat-api/internal/dto"
	"github.com/primehaven/haven-chat-api/internal/repository"
)

// ConnectionOptions wraps metadata extracted during the HTTP upgrade.
type ConnectionOptions struct {
	UserID        string
	UserName      string
	CorrelationID string
	Context       context.Context
}

// LiveService owns realtime delivery: websocket connections, presence, and the
// cross-node event relay over Redis pub/sub and NATS.
type LiveService interface {
	ServeConnection(conn *websocket.Conn, opts ConnectionOptions)
	Publish(ctx context.Context, event dto.Event)
	PublishMessage(ctx context.Context, message dto.MessageResponse)
	Typing(ctx context.Context, userID, userName, rawRoomID string, isTyping bool) error
	OnlineStatus(ctx context.Context, userIDs []string) (dto.OnlineStatusResponse, error)
	Heartbeat(ctx context.Context, userID string) error
	Start(ctx context.Context)
}

// LiveConfig carries the tunables for the live service.
type LiveConfig struct {
	ChannelBase    string
	PresenceTTL    time.Duration
	LastMessageTTL time.Duration
	KeepAlive      time.Duration
}

type liveService struct {
	gateway      *Gateway
	participants repository.ParticipantRepository
	redis        *redis.Client
	nats         *nats.Conn
	logger       zerolog.Logger

	eventChannel   string
	natsSubject    string
	presencePrefix string
	cachePrefix    string
	presenceTTL    time.Duration
	lastMessageTTL time.Duration
	keepAlive      time.Duration
	nodeID         string
}

// NewLiveService creates the realtime delivery service.
func NewLiveService(gateway *Gateway, participants repository.ParticipantRepository, redisClient *redis.Client, natsConn *nats.Conn, cfg LiveConfig, logger zerolog.Logger) LiveService {
	eventChannel := ""
	natsSubject := ""
	presencePrefix := ""
	cachePrefix := ""
	if cfg.ChannelBase != "" {
		eventChannel = cfg.ChannelBase + ":chat:events"
		natsSubject = strings.ReplaceAll(cfg.ChannelBase, ":", ".") + ".chat.events"
		presencePrefix = cfg.ChannelBase + ":chat:online"
		cachePrefix = cfg.ChannelBase + ":chat:last"
	}

	presenceTTL := cfg.PresenceTTL
	if presenceTTL <= 0 {
		presenceTTL = 5 * time.Minute
	}
	lastMessageTTL := cfg.LastMessageTTL
	if lastMessageTTL <= 0 {
		lastMessageTTL = 30 * time.Minute
	}
	keepAlive := cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}

	return &liveService{
		gateway:        gateway,
		participants:   participants,
		redis:          redisClient,
		nats:           natsConn,
		logger:         logger.With().Str("component", "live_service").Logger(),
		eventChannel:   eventChannel,
		natsSubject:    natsSubject,
		presencePrefix: presencePrefix,
		cachePrefix:    cachePrefix,
		presenceTTL:    presenceTTL,
		lastMessageTTL: lastMessageTTL,
		keepAlive:      keepAlive,
		nodeID:         uuid.NewString(),
	}
}

func (s *liveService) Start(ctx context.Context) {
	if s.redis != nil && s.eventChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *liveService) ServeConnection(conn *websocket.Conn, opts ConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	client := newGatewayClient(s.gateway, conn, opts.UserID, opts.UserName)
	s.gateway.Register(client)
	s.markOnline(baseCtx, opts.UserID)

	// Attach the connection to every room the user is an active member of so
	// delivery starts without an explicit subscribe round-trip.
	if roomIDs, err := s.participants.ListRoomIDsByUser(baseCtx, opts.UserID); err == nil {
		for _, roomID := range roomIDs {
			s.gateway.Subscribe(client, roomID)
		}
	} else {
		s.logger.Warn().Err(err).Str("user_id", opts.UserID).Msg("failed to preload room subscriptions")
	}

	go s.writer(client)
	s.reader(baseCtx, client)
}

// wsCommand is the inbound control frame clients may send over the socket.
type wsCommand struct {
	Type     string `json:"type"`
	RoomID   string `json:"room_id,omitempty"`
	IsTyping bool   `json:"is_typing,omitempty"`
}

func (s *liveService) reader(ctx context.Context, client *GatewayClient) {
	defer s.closeClient(ctx, client)

	for {
		var cmd wsCommand
		if err := client.conn.ReadJSON(&cmd); err != nil {
			s.logger.Debug().Err(err).Msg("read loop ended")
			return
		}

		switch cmd.Type {
		case "subscribe":
			s.handleSubscribe(ctx, client, cmd.RoomID)
		case "unsubscribe":
			if ref, err := ResolveRoomID(cmd.RoomID); err == nil {
				s.gateway.Unsubscribe(client, ref.RoomID)
			}
		case "typing":
			if err := s.Typing(ctx, client.userID, client.userName, cmd.RoomID, cmd.IsTyping); err != nil {
				s.logger.Debug().Err(err).Str("user_id", client.userID).Msg("typing rejected")
			}
		case "heartbeat", "ping":
			s.markOnline(ctx, client.userID)
		default:
			s.logger.Debug().Str("type", cmd.Type).Msg("unknown ws command")
		}
	}
}

func (s *liveService) handleSubscribe(ctx context.Context, client *GatewayClient, rawRoomID string) {
	ref, err := ResolveRoomID(rawRoomID)
	if err != nil {
		return
	}

	member, err := s.participants.IsActiveMember(ctx, ref.RoomID, client.userID)
	if err != nil || !member {
		s.logger.Debug().Str("user_id", client.userID).Str("room_id", ref.RoomID).Msg("subscribe rejected")
		return
	}

	s.gateway.Subscribe(client, ref.RoomID)

	if last := s.fetchLastMessage(ctx, ref.RoomID); last != nil {
		client.enqueue(dto.Event{Type: dto.EventTypeMessage, RoomID: ref.RoomID, Data: last})
	}
}

func (s *liveService) writer(client *GatewayClient) {
	for {
		select {
		case event, ok := <-client.send:
			if !ok {
				return
			}
			if err := client.conn.WriteJSON(event); err != nil {
				s.logger.Debug().Err(err).Msg("write loop terminated")
				return
			}
		case <-time.After(s.keepAlive):
			if err := client.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				s.logger.Debug().Err(err).Msg("ping failed")
				return
			}
		case <-client.closed:
			return
		}
	}
}

func (s *liveService) closeClient(ctx context.Context, client *GatewayClient) {
	client.once.Do(func() {
		close(client.closed)
		last := s.gateway.Unregister(client)
		if last {
			s.markOffline(ctx, client.userID)
		}
		_ = client.conn.Close()
	})
}

// Publish fans the event out to local clients and relays it to peer nodes.
func (s *liveService) Publish(ctx context.Context, event dto.Event) {
	event.Source = s.nodeID
	s.fanout(event)
	s.relay(ctx, event)
}

// PublishMessage caches the room's latest message and broadcasts it.
func (s *liveService) PublishMessage(ctx context.Context, message dto.MessageResponse) {
	s.cacheLastMessage(ctx, message)
	s.Publish(ctx, dto.Event{
		Type:   dto.EventTypeMessage,
		RoomID: message.RoomID,
		Data:   message,
	})
}

func (s *liveService) Typing(ctx context.Context, userID, userName, rawRoomID string, isTyping bool) error {
	ref, err := ResolveRoomID(rawRoomID)
	if err != nil {
		return err
	}

	member, err := s.participants.IsActiveMember(ctx, ref.RoomID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotParticipant
		}
		return err
	}
	if !member {
		return ErrNotParticipant
	}

	s.Publish(ctx, dto.Event{
		Type:    dto.EventTypeTyping,
		RoomID:  ref.RoomID,
		Exclude: userID,
		Data: dto.TypingPayload{
			RoomID:   ref.RoomID,
			UserID:   userID,
			UserName: userName,
			IsTyping: isTyping,
		},
	})

	return nil
}

func (s *liveService) OnlineStatus(ctx context.Context, userIDs []string) (dto.OnlineStatusResponse, error) {
	response := dto.OnlineStatusResponse{Online: make(map[string]bool, len(userIDs))}

	for _, userID := range userIDs {
		if s.gateway.IsUserConnected(userID) {
			response.Online[userID] = true
			continue
		}

		online := false
		if s.redis != nil && s.presencePrefix != "" {
			count, err := s.redis.Exists(ctx, s.presenceKey(userID)).Result()
			if err != nil {
				return dto.OnlineStatusResponse{}, err
			}
			online = count > 0
		}
		response.Online[userID] = online
	}

	return response, nil
}

func (s *liveService) Heartbeat(ctx context.Context, userID string) error {
	if s.redis == nil || s.presencePrefix == "" {
		return nil
	}
	return s.redis.Set(ctx, s.presenceKey(userID), "1", s.presenceTTL).Err()
}

func (s *liveService) presenceKey(userID string) string {
	return fmt.Sprintf("%s:%s", s.presencePrefix, userID)
}

func (s *liveService) markOnline(ctx context.Context, userID string) {
	if err := s.Heartbeat(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to set presence")
	}
}

func (s *liveService) markOffline(ctx context.Context, userID string) {
	if s.redis == nil || s.presencePrefix == "" {
		return
	}
	if err := s.redis.Del(ctx, s.presenceKey(userID)).Err(); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to clear presence")
	}
}

func (s *liveService) cacheLastMessage(ctx context.Context, message dto.MessageResponse) {
	if s.redis == nil || s.cachePrefix == "" {
		return
	}

	payload, err := json.Marshal(message)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal message for cache")
		return
	}

	key := fmt.Sprintf("%s:%s", s.cachePrefix, message.RoomID)
	if err := s.redis.Set(ctx, key, payload, s.lastMessageTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache last message")
	}
}

func (s *liveService) fetchLastMessage(ctx context.Context, roomID string) *dto.MessageResponse {
	if s.redis == nil || s.cachePrefix == "" {
		return nil
	}

	key := fmt.Sprintf("%s:%s", s.cachePrefix, roomID)
	result, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return nil
	}

	var message dto.MessageResponse
	if err := json.Unmarshal([]byte(result), &message); err != nil {
		s.logger.Warn().Err(err).Msg("failed to unmarshal cached message")
		return nil
	}

	return &message
}

// fanout delivers an event to local clients based on its addressing: explicit
// targets first, then room subscribers, then everyone.
func (s *liveService) fanout(event dto.Event) {
	switch {
	case len(event.Targets) > 0:
		for _, userID := range event.Targets {
			s.gateway.SendToUser(userID, event)
		}
	case event.RoomID != "":
		s.gateway.BroadcastToRoom(event.RoomID, event)
	default:
		s.gateway.BroadcastToAll(event)
	}
}

func (s *liveService) relay(ctx context.Context, event dto.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal event for relay")
		return
	}

	if s.redis != nil && s.eventChannel != "" {
		if err := s.redis.Publish(ctx, s.eventChannel, payload).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish event to redis")
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish event to nats")
		}
	}
}

func (s *liveService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.eventChannel)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("redis event subscription closed")
			return
		}
		s.handleRelayed([]byte(msg.Payload))
	}
}

func (s *liveService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "haven-chat", func(msg *nats.Msg) {
		s.handleRelayed(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats event subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain nats subscription")
		}
	}()
}

// handleRelayed fans out events published by peer nodes, skipping our own.
func (s *liveService) handleRelayed(data []byte) {
	var event dto.Event
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid relayed event")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	s.fanout(event)
}
