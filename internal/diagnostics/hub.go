// Package diagnostics exposes a debug-only view of the runtime's wire
// traffic: a WebSocket feed of frame-level events and a JSON stats
// snapshot, both gated behind Config.Debug.
package diagnostics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Event is one observable occurrence in the wire protocol, pushed to every
// connected debug client. ID is a fresh random UUID per event; it is not
// written to the runtime's logs.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // frame_sent, frame_received, rpc_dispatched, attach, checkpoint
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Hub fans Events out to every connected WebSocket client and answers
// /debug/stats with a point-in-time snapshot.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan Event
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	upgrader   websocket.Upgrader

	statsMu sync.Mutex
	counts  map[string]int64
}

// NewHub constructs an idle Hub; call Run in its own goroutine to start
// fanning events out.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		counts: make(map[string]int64),
	}
}

// Run drives the hub's event loop until stop is closed.
func (h *Hub) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Debug("diagnostics: client connected", "total", len(h.clients))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mu.Unlock()
			slog.Debug("diagnostics: client disconnected", "total", len(h.clients))

		case event := <-h.broadcast:
			h.statsMu.Lock()
			h.counts[event.Type]++
			h.statsMu.Unlock()

			h.mu.RLock()
			for client := range h.clients {
				if err := client.WriteJSON(event); err != nil {
					slog.Debug("diagnostics: write to client failed", "err", err)
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish emits an event to every connected client; non-blocking once the
// hub's event loop is running. Safe to call before Run starts as long as the
// broadcast channel has spare capacity.
func (h *Hub) Publish(eventType string, data map[string]interface{}) {
	select {
	case h.broadcast <- Event{ID: uuid.NewString(), Type: eventType, Timestamp: time.Now(), Data: data}:
	default:
		slog.Warn("diagnostics: event dropped, broadcast channel full", "type", eventType)
	}
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("diagnostics: websocket upgrade failed", "err", err)
		return
	}
	h.register <- conn
	go func() {
		defer func() { h.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) handleStats(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	clients := len(h.clients)
	h.mu.RUnlock()

	h.statsMu.Lock()
	counts := make(map[string]int64, len(h.counts))
	for k, v := range h.counts {
		counts[k] = v
	}
	h.statsMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"connected_clients": clients,
		"event_counts":      counts,
	})
}

// Router returns the debug HTTP surface: /debug/events (WebSocket) and
// /debug/stats (JSON).
func (h *Hub) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/debug/events", h.handleWebSocket)
	r.HandleFunc("/debug/stats", h.handleStats)
	return r
}
