package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"swathtrack/pkg/field"
	"swathtrack/pkg/filter"
	"swathtrack/pkg/model"
	"swathtrack/pkg/tracker"
)

// sendBuffer is the per-client queue depth. A peer that falls this far
// behind gets disconnected instead of stalling the fix pipeline.
const (
	sendBuffer         = 16
	streamWriteTimeout = 10 * time.Second
)

// StreamHandler pushes tracking snapshots to websocket clients after each
// recorded point. It implements tracker.Observer, so the rendering layer is
// a plain subscriber of the core rather than something the core knows about.
type StreamHandler struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan StreamMessage
}

// StreamMessage is the websocket payload envelope.
type StreamMessage struct {
	Type     string                 `json:"type"` // "path", "crossing", "session_closed"
	Snapshot *tracker.Snapshot      `json:"snapshot,omitempty"`
	Crossing *field.PendingCrossing `json:"crossing,omitempty"`
	Session  *model.Session         `json:"session,omitempty"`
}

// NewStreamHandler creates the websocket broadcaster.
func NewStreamHandler() *StreamHandler {
	return &StreamHandler{
		upgrader: websocket.Upgrader{
			// The UI is served from a different origin in development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// HandleStream upgrades the connection and registers the client.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Stream: upgrade failed", "error", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan StreamMessage, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	slog.Info("Stream: client connected", "remote", conn.RemoteAddr())

	go h.writePump(c)

	// Drain reads so we notice the peer going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(c)
				return
			}
		}
	}()
}

// writePump serializes all writes to one connection. It is the only place
// that touches the conn for writing, and it exits when the send queue is
// closed or a write fails.
func (h *StreamHandler) writePump(c *wsClient) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *StreamHandler) drop(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// broadcast queues the message for every client without ever blocking; it
// runs on the tracker's fix path and must return promptly. A client whose
// queue is full is dropped.
func (h *StreamHandler) broadcast(msg StreamMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slog.Warn("Stream: dropping slow client")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// OnFixEvaluated implements tracker.Observer.
func (h *StreamHandler) OnFixEvaluated(filter.Result) {}

// OnPathUpdated implements tracker.Observer.
func (h *StreamHandler) OnPathUpdated(snap tracker.Snapshot) {
	h.broadcast(StreamMessage{Type: "path", Snapshot: &snap})
}

// OnCrossingDetected implements tracker.Observer.
func (h *StreamHandler) OnCrossingDetected(pending field.PendingCrossing) {
	h.broadcast(StreamMessage{Type: "crossing", Crossing: &pending})
}

// OnSessionClosed implements tracker.Observer.
func (h *StreamHandler) OnSessionClosed(sess *model.Session) {
	h.broadcast(StreamMessage{Type: "session_closed", Session: sess})
}

// Close disconnects all clients.
func (h *StreamHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
