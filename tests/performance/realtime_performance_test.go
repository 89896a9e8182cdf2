package performance_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/primehaven/haven-chat-api/internal/dto"
	"github.com/primehaven/haven-chat-api/internal/handler"
	"github.com/primehaven/haven-chat-api/internal/middleware"
	"github.com/primehaven/haven-chat-api/internal/service"
)

func TestChatWebsocketHandshakeP95Under250ms(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.CorrelationID())

	liveHandler := handler.NewLiveHandler(&stubLiveService{}, zerolog.Nop())

	chatGroup := app.Group("/api/v1/chat", func(c *fiber.Ctx) error {
		c.Locals("user_id", "perf-user")
		c.Locals("user_name", "Perf User")
		return c.Next()
	})
	liveHandler.Register(chatGroup)

	baseURL, shutdown := startFiberServer(t, app)
	defer shutdown()

	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/chat/ws"
	clients := 500
	durations := make([]time.Duration, 0, clients)

	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}

	for i := 0; i < clients; i++ {
		start := time.Now()
		conn, resp, err := dialer.Dial(url, http.Header{"X-Correlation-ID": {"perf-" + strconv.Itoa(i)}})
		if err != nil {
			t.Fatalf("websocket dial failed: %v", err)
		}
		if resp != nil {
			_ = resp.Body.Close()
		}

		_, _, _ = conn.ReadMessage()
		_ = conn.Close()

		durations = append(durations, time.Since(start))
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	p95 := percentile(durations, 0.95)

	if p95 > 250*time.Millisecond {
		t.Fatalf("expected websocket P95 <= 250ms, got %s", p95)
	}
}

func TestOnlineStatusP95Under200ms(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.CorrelationID())

	liveHandler := handler.NewLiveHandler(&stubLiveService{}, zerolog.Nop())

	chatGroup := app.Group("/api/v1/chat", func(c *fiber.Ctx) error {
		c.Locals("user_id", "perf-user")
		return c.Next()
	})
	liveHandler.Register(chatGroup)

	baseURL, shutdown := startFiberServer(t, app)
	defer shutdown()

	client := &http.Client{Timeout: 5 * time.Second}
	clients := 200
	durations := make([]time.Duration, 0, clients)

	for i := 0; i < clients; i++ {
		start := time.Now()
		resp, err := client.Get(baseURL + "/api/v1/chat/online-status?user_ids=alice,bob")
		if err != nil {
			t.Fatalf("online status request failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d for client %d", resp.StatusCode, i)
		}

		var payload struct {
			Data dto.OnlineStatusResponse `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode online status: %v", err)
		}
		resp.Body.Close()

		if !payload.Data.Online["alice"] {
			t.Fatalf("expected alice to be online")
		}

		durations = append(durations, time.Since(start))
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	p95 := percentile(durations, 0.95)

	if p95 > 200*time.Millisecond {
		t.Fatalf("expected online status P95 <= 200ms, got %s", p95)
	}
}

func percentile(values []time.Duration, pct float64) time.Duration {
	if len(values) == 0 {
		return 0
	}
	index := int(math.Ceil(pct*float64(len(values)))) - 1
	if index < 0 {
		index = 0
	}
	if index >= len(values) {
		index = len(values) - 1
	}
	return values[index]
}

func startFiberServer(t *testing.T, app *fiber.App) (string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	shutdown := func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}

	return "http://" + listener.Addr().String(), shutdown
}

type stubLiveService struct{}

func (s *stubLiveService) ServeConnection(conn *fiberws.Conn, _ service.ConnectionOptions) {
	_ = conn.WriteJSON(dto.Event{Type: dto.EventTypeUserJoined, Data: "welcome"})
	_ = conn.Close()
}

func (s *stubLiveService) Publish(context.Context, dto.Event) {}

func (s *stubLiveService) PublishMessage(context.Context, dto.MessageResponse) {}

func (s *stubLiveService) Typing(context.Context, string, string, string, bool) error { return nil }

func (s *stubLiveService) OnlineStatus(_ context.Context, userIDs []string) (dto.OnlineStatusResponse, error) {
	online := make(map[string]bool, len(userIDs))
	for _, userID := range userIDs {
		online[userID] = true
	}
	return dto.OnlineStatusResponse{Online: online}, nil
}

func (s *stubLiveService) Heartbeat(context.Context, string) error { return nil }

func (s *stubLiveService) Start(context.Context) {}
