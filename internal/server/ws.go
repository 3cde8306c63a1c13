package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/hueassay/internal/sampler"
	"github.com/ayusman/hueassay/internal/session"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Event is one message on the progress websocket.
type Event struct {
	Type     string            `json:"type"`
	Progress *sampler.Progress `json:"progress,omitempty"`
	Outcome  *session.Outcome  `json:"outcome,omitempty"`
}

// ProgressHub broadcasts analysis progress and completion to websocket clients.
type ProgressHub struct {
	logger  *zap.Logger
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
	closed  bool
}

// NewProgressHub creates an empty hub.
func NewProgressHub(logger *zap.Logger) *ProgressHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHub{
		logger:  logger,
		clients: make(map[*websocket.Conn]bool),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *ProgressHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// PublishProgress is a session progress callback.
func (h *ProgressHub) PublishProgress(p sampler.Progress) {
	h.broadcast(Event{Type: "progress", Progress: &p})
}

// PublishFinish is a session finish callback.
func (h *ProgressHub) PublishFinish(o session.Outcome) {
	h.broadcast(Event{Type: "finish", Outcome: &o})
}

// Clients returns the number of connected clients.
func (h *ProgressHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *ProgressHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

// broadcast sends the event to all connected clients. Writes happen under the
// hub lock so each connection has a single writer.
func (h *ProgressHub) broadcast(e Event) {
	msg, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("encoding progress event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug("dropping progress client", zap.Error(err))
			conn.Close()
			delete(h.clients, conn)
		}
	}
}
