package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"fieldops-backend/internal/store"
)

// Client is a single connected SSE client: a channel the hub writes
// serialized events into.
type Client chan []byte

// Hub fans committed change events out to every connected client so their
// local mirrors stay consistent with the backend without polling.
type Hub struct {
	mu         sync.Mutex
	clients    map[Client]bool
	broadcast  chan []byte
	register   chan Client
	unregister chan Client
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan Client),
		unregister: make(chan Client),
	}
}

// Run starts the hub's processing loop. Run it in its own goroutine.
func (h *Hub) Run() {
	log.Println("Realtime hub started")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client <- message:
				default:
					// Slow client; drop the message rather than block the hub.
					log.Println("Warning: realtime client channel full, skipping message")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register adds a new client to the hub.
func (h *Hub) Register(client Client) {
	h.register <- client
}

// Unregister removes a client from the hub and closes its channel.
func (h *Hub) Unregister(client Client) {
	h.unregister <- client
}

// Publish implements store.Sink: it serializes a change event and broadcasts
// it to every connected client.
func (h *Hub) Publish(ev store.ChangeEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Error marshalling change event: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Println("Warning: realtime broadcast channel full, message dropped")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
