package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hearthlab/hearth-core/internal/device"
	"github.com/hearthlab/hearth-core/internal/infrastructure/config"
	"github.com/hearthlab/hearth-core/internal/infrastructure/logging"
)

func testHub() *Hub {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	return NewHub(config.WebSocketConfig{SendBuffer: 16}, nil, log)
}

// hubClient creates a registered client without a real connection. The
// buffer size controls how many messages it can absorb before the hub
// considers it failed.
func hubClient(h *Hub, buffer int) *WSClient {
	c := &WSClient{hub: h, send: make(chan []byte, buffer)}
	h.Register(c)
	return c
}

func TestHubSubscribeIdempotent(t *testing.T) {
	h := testHub()
	c := hubClient(h, 4)

	h.Subscribe(c, "device:d1")
	h.Subscribe(c, "device:d1")

	if got := h.TopicSubscriberCount("device:d1"); got != 1 {
		t.Errorf("subscriber count = %d, want 1", got)
	}

	h.BroadcastToTopic("device:d1", map[string]string{"type": "device_update"})
	if got := len(c.send); got != 1 {
		t.Errorf("client received %d messages, want exactly 1", got)
	}
}

func TestHubUnsubscribeNonMemberNoOp(t *testing.T) {
	h := testHub()
	c := hubClient(h, 4)

	h.Unsubscribe(c, "device:d1")

	h.Subscribe(c, "device:d1")
	other := hubClient(h, 4)
	h.Unsubscribe(other, "device:d1")
	if got := h.TopicSubscriberCount("device:d1"); got != 1 {
		t.Errorf("subscriber count = %d, want 1", got)
	}
}

func TestHubUnregisterRemovesAllInterests(t *testing.T) {
	h := testHub()
	c := hubClient(h, 4)
	h.Subscribe(c, "device:d1")
	h.Subscribe(c, "sensor:d1")

	h.Unregister(c)

	if got := h.ClientCount(); got != 0 {
		t.Errorf("client count = %d, want 0", got)
	}
	if h.TopicSubscriberCount("device:d1") != 0 || h.TopicSubscriberCount("sensor:d1") != 0 {
		t.Error("expected all interest sets cleared")
	}

	// Idempotent: a second unregister must not panic on a closed channel.
	h.Unregister(c)
}

func TestHubBroadcastFaultIsolation(t *testing.T) {
	h := testHub()
	failing := hubClient(h, 0) // zero buffer: every send fails
	healthy := hubClient(h, 4)
	h.Subscribe(failing, "device:d1")
	h.Subscribe(healthy, "device:d1")
	h.Subscribe(failing, "sensor:d1")

	h.BroadcastToTopic("device:d1", map[string]string{"type": "device_update"})

	if got := len(healthy.send); got != 1 {
		t.Errorf("healthy client received %d messages, want 1", got)
	}
	if got := h.ClientCount(); got != 1 {
		t.Errorf("client count = %d, want failing client removed", got)
	}
	// The failed client is gone from every interest set it belonged to.
	if h.TopicSubscriberCount("sensor:d1") != 0 {
		t.Error("expected failing client removed from all interest sets")
	}
}

func TestHubBroadcastToUnknownTopicNoOp(t *testing.T) {
	h := testHub()
	c := hubClient(h, 4)

	h.BroadcastToTopic("device:unknown", map[string]string{"type": "device_update"})
	if got := len(c.send); got != 0 {
		t.Errorf("client received %d messages, want 0", got)
	}
}

func TestHubBroadcastAll(t *testing.T) {
	h := testHub()
	a := hubClient(h, 4)
	b := hubClient(h, 4)

	h.Broadcast(map[string]string{"type": "announcement"})
	if len(a.send) != 1 || len(b.send) != 1 {
		t.Errorf("received (%d, %d) messages, want (1, 1)", len(a.send), len(b.send))
	}
}

func TestHubRunTeardown(t *testing.T) {
	h := testHub()
	c := hubClient(h, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	if h.ClientCount() != 0 {
		t.Error("expected all clients disconnected")
	}
	if _, open := <-c.send; open {
		t.Error("expected client send channel closed")
	}
}

// dialWS connects a real WebSocket client to the server under test.
func dialWS(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	//nolint:errcheck // Test deadline only
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("websocket read failed: %v", err)
	}
	return msg
}

func TestKeepaliveTimings(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.WebSocketConfig
		wantPing time.Duration
		wantPong time.Duration
	}{
		{"configured", config.WebSocketConfig{PingInterval: 15, PongTimeout: 5}, 15 * time.Second, 5 * time.Second},
		{"zero value", config.WebSocketConfig{}, defaultPingInterval, defaultPongTimeout},
		{"negative", config.WebSocketConfig{PingInterval: -1, PongTimeout: -1}, defaultPingInterval, defaultPongTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ping, pong := keepaliveTimings(tt.cfg)
			if ping != tt.wantPing || pong != tt.wantPong {
				t.Errorf("keepaliveTimings() = %v, %v, want %v, %v", ping, pong, tt.wantPing, tt.wantPong)
			}
		})
	}
}

func TestWebSocketZeroConfig(t *testing.T) {
	repo := device.NewSQLiteRepository(setupTestDB(t))
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.ServerConfig{Host: "127.0.0.1"},
		Logger: log,
		Repo:   repo,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	srv.Hub()

	// The connection must survive both pumps starting with unset timings.
	conn := dialWS(t, srv)
	if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if reply := readWS(t, conn); reply["type"] != "pong" {
		t.Errorf("reply = %v, want pong", reply)
	}
}

func TestWebSocketSubscribeFlow(t *testing.T) {
	srv, _, _ := testServer(t)
	conn := dialWS(t, srv)

	if err := conn.WriteJSON(map[string]string{"type": "subscribe", "topic": "device:esp32-1"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	reply := readWS(t, conn)
	if reply["type"] != "subscribed" || reply["topic"] != "device:esp32-1" {
		t.Fatalf("reply = %v, want subscribed ack", reply)
	}

	// A broadcast on the subscribed topic reaches the client.
	srv.Hub().BroadcastToTopic("device:esp32-1", map[string]any{
		"type":      "device_update",
		"device_id": "esp32-1",
		"status":    "online",
	})
	update := readWS(t, conn)
	if update["type"] != "device_update" || update["device_id"] != "esp32-1" {
		t.Errorf("update = %v, want device_update", update)
	}

	if err := conn.WriteJSON(map[string]string{"type": "unsubscribe", "topic": "device:esp32-1"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	reply = readWS(t, conn)
	if reply["type"] != "unsubscribed" {
		t.Errorf("reply = %v, want unsubscribed ack", reply)
	}
}

func TestWebSocketPing(t *testing.T) {
	srv, _, _ := testServer(t)
	conn := dialWS(t, srv)

	if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if reply := readWS(t, conn); reply["type"] != "pong" {
		t.Errorf("reply = %v, want pong", reply)
	}
}

func TestWebSocketCommand(t *testing.T) {
	srv, repo, publisher := testServer(t)
	seedDevice(t, repo, "esp32-1", "Living Room")
	conn := dialWS(t, srv)

	err := conn.WriteJSON(map[string]any{
		"type":      "command",
		"device_id": "esp32-1",
		"command":   "set_state",
		"payload":   map[string]any{"on": true},
	})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	reply := readWS(t, conn)
	if reply["type"] != "command_sent" || reply["device_id"] != "esp32-1" {
		t.Fatalf("reply = %v, want command_sent", reply)
	}
	if got := publisher.sent(); len(got) != 1 || got[0] != "esp32-1/set_state" {
		t.Errorf("published = %v", got)
	}
}

func TestWebSocketErrors(t *testing.T) {
	srv, _, _ := testServer(t)
	conn := dialWS(t, srv)

	cases := []struct {
		name string
		send any
	}{
		{"unknown type", map[string]string{"type": "bogus"}},
		{"subscribe without topic", map[string]string{"type": "subscribe"}},
		{"command without device", map[string]string{"type": "command", "command": "x"}},
	}
	for _, tc := range cases {
		if err := conn.WriteJSON(tc.send); err != nil {
			t.Fatalf("%s: write failed: %v", tc.name, err)
		}
		if reply := readWS(t, conn); reply["type"] != "error" {
			t.Errorf("%s: reply = %v, want error", tc.name, reply)
		}
	}

	// Raw garbage also yields a protocol error, not a dropped connection.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not-json")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if reply := readWS(t, conn); reply["type"] != "error" {
		t.Errorf("garbage reply = %v, want error", reply)
	}
}
