package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"vigil/internal/shared/observability"
)

const clientSendBuffer = 16

// Client is one connected subscription. Membership in the hub is the
// only state it carries; a client that wants a result must be connected
// at broadcast time, there is no replay buffer.
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

// enqueue hands a marshaled frame to the writer goroutine. A full
// buffer means the client is too slow; the frame is dropped and the
// client evicted rather than blocking the broadcaster. The mutex keeps
// the non-blocking send mutually exclusive with channel close.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	select {
	case c.send <- data:
		c.mu.Unlock()
		return true
	default:
		c.mu.Unlock()
		observability.BroadcastDropsTotal.Inc()
		slog.Warn("dropping slow subscriber", "client", c.ID)
		c.hub.Unregister(c)
		return false
	}
}

// Send marshals and enqueues one payload for this client only.
func (c *Client) Send(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal client payload", "error", err)
		return
	}
	c.enqueue(data)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Debug("subscriber write failed", "client", c.ID, "error", err)
			c.hub.Unregister(c)
			return
		}
	}
}

// Hub is the publish/subscribe fan-out of analysis results.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	closed  bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// Register adopts an upgraded connection as a subscription and starts
// its writer goroutine.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	client := &Client{
		ID:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}
	client.hub = h

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	h.clients[client.ID] = client
	count := len(h.clients)
	h.mu.Unlock()

	observability.ConnectedClients.Set(float64(count))
	go client.writePump()
	slog.Info("subscriber connected", "client", client.ID)
	return client
}

// Unregister removes a subscription and releases its writer. Safe to
// call multiple times for the same client.
func (h *Hub) Unregister(client *Client) {
	if client == nil {
		return
	}
	client.once.Do(func() {
		h.mu.Lock()
		delete(h.clients, client.ID)
		count := len(h.clients)
		h.mu.Unlock()

		client.mu.Lock()
		client.closed = true
		client.mu.Unlock()
		close(client.send)

		observability.ConnectedClients.Set(float64(count))
		slog.Info("subscriber disconnected", "client", client.ID)
	})
}

// Broadcast delivers a payload to every currently-connected
// subscription. Delivery to a closed or slow subscription is dropped
// silently; it is logged, never retried.
func (h *Hub) Broadcast(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal broadcast payload", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.enqueue(data)
	}
	observability.BroadcastsTotal.Inc()
}

// ClientCount returns the number of connected subscriptions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close evicts every subscription and rejects new registrations.
// Idempotent.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		h.Unregister(client)
	}
}
