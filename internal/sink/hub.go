package sink

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ironsheep/screenwatch/internal/change"
)

const hubWriteTimeout = 5 * time.Second

// Hub broadcasts events and display updates to websocket clients. It
// implements Notifier, Display and http.Handler.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

type hubClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewHub creates a hub with no clients.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*hubClient]struct{}),
	}
}

// ServeHTTP upgrades the request and keeps the client registered until the
// connection closes. Incoming messages are discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("sink: websocket upgrade failed", "error", err)
		return
	}
	c := &hubClient{conn: conn}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("sink: websocket client connected", "remote", r.RemoteAddr)

	defer h.drop(c)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Notify(_ context.Context, ev change.Event) error {
	h.broadcast(envelope{Type: "event", Data: ev})
	return nil
}

func (h *Hub) Show(_ context.Context, region, formatted string) error {
	h.broadcast(envelope{Type: "display", Data: displayPayload{Region: region, Text: formatted}})
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	clients := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.drop(c)
	}
	return nil
}

func (h *Hub) broadcast(msg envelope) {
	h.mu.Lock()
	clients := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.mu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
		err := c.conn.WriteJSON(msg)
		c.mu.Unlock()
		if err != nil {
			h.logger.Debug("sink: websocket write failed", "error", err)
			h.drop(c)
		}
	}
}

func (h *Hub) drop(c *hubClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}
