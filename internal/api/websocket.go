package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hearthlab/hearth-core/internal/infrastructure/config"
	"github.com/hearthlab/hearth-core/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe    = "subscribe"
	WSTypeUnsubscribe  = "unsubscribe"
	WSTypeSubscribed   = "subscribed"
	WSTypeUnsubscribed = "unsubscribed"
	WSTypePing         = "ping"
	WSTypePong         = "pong"
	WSTypeCommand      = "command"
	WSTypeCommandSent  = "command_sent"
	WSTypeError        = "error"

	// defaultSendBuffer is the per-client outbound buffer size when the
	// config leaves it unset.
	defaultSendBuffer = 256

	// Keepalive timings used when the config leaves them unset. A zero
	// ping interval would panic time.NewTicker.
	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 10 * time.Second
)

// keepaliveTimings resolves the ping interval and pong wait from config,
// falling back to defaults where unset.
func keepaliveTimings(cfg config.WebSocketConfig) (pingInterval, pongWait time.Duration) {
	pingInterval = time.Duration(cfg.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	pongWait = time.Duration(cfg.PongTimeout) * time.Second
	if pongWait <= 0 {
		pongWait = defaultPongTimeout
	}
	return pingInterval, pongWait
}

// WSMessage is a client-to-server WebSocket message.
type WSMessage struct {
	Type     string `json:"type"`
	Topic    string `json:"topic,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
	Command  string `json:"command,omitempty"`
	Payload  any    `json:"payload,omitempty"`
}

// CommandPublisher sends device commands to the broker. Implemented by the
// bridge.
type CommandPublisher interface {
	PublishCommand(deviceID, command string, payload any, commandID string) error
}

// Hub is the fan-out manager: it owns the subscriber registry and the
// topic-interest index, and it is the only writer of both. A failed send
// unregisters that subscriber without disturbing delivery to the rest.
type Hub struct {
	cfg       config.WebSocketConfig
	logger    *logging.Logger
	publisher CommandPublisher

	mu        sync.RWMutex
	clients   map[*WSClient]struct{}
	interests map[string]map[*WSClient]struct{}
}

// WSClient is one connected WebSocket subscriber.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a hub. publisher may be nil; command messages then return
// an error to the sender.
func NewHub(cfg config.WebSocketConfig, publisher CommandPublisher, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:       cfg,
		logger:    logger,
		publisher: publisher,
		clients:   make(map[*WSClient]struct{}),
		interests: make(map[string]map[*WSClient]struct{}),
	}
}

// SetPublisher wires the command publisher after construction. The hub and
// the bridge reference each other, so one side is attached late.
func (h *Hub) SetPublisher(publisher CommandPublisher) {
	h.mu.Lock()
	h.publisher = publisher
	h.mu.Unlock()
}

// commandPublisher returns the current publisher, if any.
func (h *Hub) commandPublisher() CommandPublisher {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.publisher
}

// Run blocks until the context is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the active set. No data is sent implicitly.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
}

// Unregister removes a client from the active set and from every topic
// interest set it belonged to. Idempotent; only the call that actually
// removes the client closes its send channel.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	for topic, members := range h.interests {
		delete(members, client)
		if len(members) == 0 {
			delete(h.interests, topic)
		}
	}
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// Subscribe adds a client to a topic's interest set. Re-subscribing is a
// no-op; unknown clients are ignored.
func (h *Hub) Subscribe(client *WSClient, topic string) {
	if topic == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	members, ok := h.interests[topic]
	if !ok {
		members = make(map[*WSClient]struct{})
		h.interests[topic] = members
	}
	members[client] = struct{}{}
}

// Unsubscribe removes a client from a topic's interest set. A no-op for
// non-members.
func (h *Hub) Unsubscribe(client *WSClient, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.interests[topic]
	if !ok {
		return
	}
	delete(members, client)
	if len(members) == 0 {
		delete(h.interests, topic)
	}
}

// Broadcast delivers a message to every active client.
func (h *Hub) Broadcast(message any) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	h.deliver(clients, data)
}

// BroadcastToTopic delivers a message to every client interested in topic.
// A topic with no subscribers is a no-op.
func (h *Hub) BroadcastToTopic(topic string, message any) {
	h.mu.RLock()
	members := h.interests[topic]
	clients := make([]*WSClient, 0, len(members))
	for client := range members {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err, "topic", topic)
		return
	}

	h.deliver(clients, data)
}

// deliver sends to each client individually. A client that cannot accept
// the message is unregistered; the loop always reaches the remaining
// clients.
func (h *Hub) deliver(clients []*WSClient, data []byte) {
	for _, client := range clients {
		if !client.trySend(data) {
			h.logger.Warn("dropping unresponsive websocket client")
			h.Unregister(client)
		}
	}
}

// ClientCount returns the number of active clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TopicSubscriberCount returns the size of a topic's interest set.
func (h *Hub) TopicSubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.interests[topic])
}

// closeAll disconnects every client and clears the interest index so write
// pumps can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
	h.interests = make(map[string]map[*WSClient]struct{})
}

// handleWebSocket upgrades the HTTP connection and registers the client.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	sendBuffer := s.wsCfg.SendBuffer
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}

	client := &WSClient{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump reads client messages until the connection drops, then
// unregisters the client.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval, pongWait := keepaliveTimings(cfg)
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Any client message resets the read deadline (keeps connection
		// alive even if the browser doesn't answer protocol-level pings).
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

// writePump writes queued messages and protocol pings to the connection.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval, pongWait := keepaliveTimings(cfg)
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches one inbound client message.
func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		if msg.Topic == "" {
			c.sendError("missing topic")
			return
		}
		c.hub.Subscribe(c, msg.Topic)
		c.sendJSON(map[string]any{"type": WSTypeSubscribed, "topic": msg.Topic})
	case WSTypeUnsubscribe:
		if msg.Topic == "" {
			c.sendError("missing topic")
			return
		}
		c.hub.Unsubscribe(c, msg.Topic)
		c.sendJSON(map[string]any{"type": WSTypeUnsubscribed, "topic": msg.Topic})
	case WSTypePing:
		c.sendJSON(map[string]any{"type": WSTypePong})
	case WSTypeCommand:
		c.handleCommand(msg)
	default:
		c.sendError("unknown message type: " + msg.Type)
	}
}

// handleCommand relays a device command to the broker.
func (c *WSClient) handleCommand(msg WSMessage) {
	if msg.DeviceID == "" || msg.Command == "" {
		c.sendError("missing device_id or command")
		return
	}
	publisher := c.hub.commandPublisher()
	if publisher == nil {
		c.sendError("commands unavailable")
		return
	}

	if err := publisher.PublishCommand(msg.DeviceID, msg.Command, msg.Payload, ""); err != nil {
		c.hub.logger.Warn("websocket command publish failed", "device_id", msg.DeviceID, "error", err)
		c.sendError("command delivery failed")
		return
	}

	c.sendJSON(map[string]any{
		"type":      WSTypeCommandSent,
		"device_id": msg.DeviceID,
		"command":   msg.Command,
	})
}

// trySend attempts a non-blocking send to the client's buffer. Returns
// false when the buffer is full or the channel was already closed.
func (c *WSClient) trySend(data []byte) (sent bool) {
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// sendJSON serialises and queues a message for the client. Failures to
// queue are handled by the hub's next delivery attempt.
func (c *WSClient) sendJSON(message any) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(message string) {
	c.sendJSON(map[string]any{"type": WSTypeError, "message": message})
}
