package monitor

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Hub fans backtest progress events out to websocket subscribers. Slow
// clients are dropped rather than allowed to stall the run.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan interface{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]chan interface{})}
}

// Broadcast queues an event to every subscriber.
func (h *Hub) Broadcast(ev interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- ev:
		default:
			// Backpressured client: disconnect it.
			close(ch)
			delete(h.clients, conn)
			conn.Close()
			log.Warn().Str("remote", conn.RemoteAddr().String()).Msg("dropped slow progress subscriber")
		}
	}
}

// add registers a connection and starts its write pump.
func (h *Hub) add(conn *websocket.Conn) {
	ch := make(chan interface{}, 64)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	go func() {
		for ev := range ch {
			if err := conn.WriteJSON(ev); err != nil {
				h.remove(conn)
				return
			}
		}
	}()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
	conn.Close()
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
