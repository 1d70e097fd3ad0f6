package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// FloorRoom receives the events of every table.
var FloorRoom = uuid.Nil

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// tableEvent is an internal struct for routing events to a table's room
type tableEvent struct {
	TableID uuid.UUID
	Event   Event
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by room (table ID, or FloorRoom)
	rooms map[uuid.UUID]map[*Client]bool

	// Inbound messages from clients (register/unregister)
	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *tableEvent

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *tableEvent, 256),
	}
}

// Run starts the hub's main loop
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.room] == nil {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			// Marshal event to JSON once
			message, err := json.Marshal(event.Event)
			if err != nil {
				continue
			}

			h.mu.Lock()
			h.deliver(event.TableID, message)
			if event.TableID != FloorRoom {
				h.deliver(FloorRoom, message)
			}
			h.mu.Unlock()
		}
	}
}

// deliver sends to every client of one room. Caller holds h.mu.
func (h *Hub) deliver(room uuid.UUID, message []byte) {
	for client := range h.rooms[room] {
		select {
		case client.send <- message:
		default:
			// Client's send buffer is full, close and unregister
			h.remove(client)
		}
	}
}

// remove drops a client and closes its send channel. Caller holds h.mu.
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.room]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	// Clean up empty rooms
	if len(clients) == 0 {
		delete(h.rooms, client.room)
	}
}

// BroadcastToTable sends an event to the clients watching the table and to the floor room
func (h *Hub) BroadcastToTable(tableID uuid.UUID, event Event) {
	h.broadcast <- &tableEvent{
		TableID: tableID,
		Event:   event,
	}
}
