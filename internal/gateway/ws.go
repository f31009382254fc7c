package gateway

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event types pushed to WebSocket subscribers.
const (
	EventSaved   = "saved"
	EventDeleted = "deleted"
	EventUpdated = "updated"
)

// Event is one store change, as seen on the /ws feed.
type Event struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	ID        string    `json:"id"`
	Modality  string    `json:"modality,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans store events out to connected WebSocket clients. A slow client
// gets dropped rather than stalling the rest.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan Event
}

func newHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]chan Event)}
}

func (h *Hub) add(conn *websocket.Conn) chan Event {
	ch := make(chan Event, 16)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(ch)
	}
	h.mu.Unlock()
	conn.Close()
}

func (h *Hub) broadcast(ev Event) {
	ev.Timestamp = time.Now().UTC()

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- ev:
		default:
			// Buffer full: the client is not keeping up.
			log.Printf("Dropping slow WebSocket client %s", conn.RemoteAddr())
			delete(h.clients, conn)
			close(ch)
			conn.Close()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		delete(h.clients, conn)
		close(ch)
		conn.Close()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebSocket handles GET /ws, streaming store events to the client
// until it disconnects or the gateway shuts down.
func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	ch := g.events.add(conn)
	log.Printf("WebSocket client connected: %s", conn.RemoteAddr())

	// Reader goroutine: we never expect client messages, but reading is
	// what surfaces the close frame.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				g.events.remove(conn)
				return
			}
		}
	}()

	ctx := g.ctx
	if ctx == nil {
		ctx = r.Context()
	}

	for {
		select {
		case <-ctx.Done():
			g.events.remove(conn)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				g.events.remove(conn)
				return
			}
		}
	}
}
