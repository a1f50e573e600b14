// Package ws pushes job lifecycle events to connected dashboard clients.
package ws

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"orchestrator/internal/infra"
	"orchestrator/internal/queue"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboard origins are enforced by the CORS middleware upstream.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans queue events out to websocket subscribers. Slow or gone clients
// are dropped rather than allowed to block the queue.
type Hub struct {
	logger infra.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan queue.Event
}

// NewHub constructs an empty hub.
func NewHub(logger infra.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*websocket.Conn]chan queue.Event),
	}
}

// Notify implements queue.Notifier. It never blocks: events for clients
// with a full buffer are dropped.
func (h *Hub) Notify(event queue.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

// ClientCount reports the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams events until the client
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("ws: upgrade failed")
		return
	}

	events := make(chan queue.Event, 32)
	h.mu.Lock()
	h.clients[conn] = events
	h.mu.Unlock()
	h.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("ws: client connected")

	go h.writeLoop(conn, events)
	h.readLoop(conn)
}

func (h *Hub) writeLoop(conn *websocket.Conn, events chan queue.Event) {
	for event := range events {
		if err := conn.WriteJSON(event); err != nil {
			h.drop(conn)
			return
		}
	}
}

// readLoop discards inbound frames; the stream is one-way. It returns when
// the peer closes, which tears the client down.
func (h *Hub) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.drop(conn)
			return
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(ch)
	}
	h.mu.Unlock()
	_ = conn.Close()
}

var _ queue.Notifier = (*Hub)(nil)
