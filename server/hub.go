package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var _ core.EventSink = (*Hub)(nil)

// Hub broadcasts run events to websocket clients. A client may restrict
// itself to one run with the run_id query parameter.
type Hub struct {
	clients   map[*websocket.Conn]string // conn -> run id filter
	broadcast chan core.Event
	logger    logging.Logger
	mu        sync.Mutex
}

// NewHub creates a hub. Call Run to start delivery.
func NewHub(logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Hub{
		clients:   make(map[*websocket.Conn]string),
		broadcast: make(chan core.Event, 256),
		logger:    logging.With(logger, "component", "hub"),
	}
}

// Run delivers queued events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}

			h.mu.Lock()
			for client, runID := range h.clients {
				if runID != "" && runID != event.RunID {
					continue
				}
				if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
					_ = client.Close()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish implements core.EventSink. Events are dropped when the queue is
// full so a slow client never stalls a run.
func (h *Hub) Publish(event core.Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("hub.broadcast.full", "run_id", event.RunID, "type", string(event.Type))
	}
}

// Register adds a client receiving events of runID, or of every run when
// runID is empty.
func (h *Hub) Register(conn *websocket.Conn, runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = runID
}

// Unregister removes a client.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		_ = client.Close()
		delete(h.clients, client)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("server.websocket.upgrade", "error", err.Error())
		return
	}

	s.hub.Register(conn, r.URL.Query().Get("run_id"))
	defer func() {
		s.hub.Unregister(conn)
		_ = conn.Close()
	}()

	// Client messages are ignored; reading detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
