// Package events pushes live site activity to connected browsers over
// WebSocket: newly published posts, fresh comments, like milestones.
// Public events fan out to every connection; targeted events go only
// to the sessions of one user.
package events

import (
	"sync"

	"github.com/google/uuid"
)

// Event is a single message pushed to clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`

	// userID routes targeted events. Nil means broadcast to everyone.
	userID *uuid.UUID
}

const (
	TypeBlogPublished  = "blog_published"
	TypeCommentCreated = "comment_created"
	TypeBlogLiked      = "blog_liked"
)

// ConnectionCounter observes connection churn, typically the metrics
// registry's WebSocket gauge.
type ConnectionCounter interface {
	IncWSConnections()
	DecWSConnections()
}

// Hub maintains the set of active clients and fans events out to them.
type Hub struct {
	clients map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Event

	counter ConnectionCounter

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Event),
	}
}

// SetConnectionCounter attaches a gauge for open connections. Call it
// before Run.
func (h *Hub) SetConnectionCounter(counter ConnectionCounter) {
	h.counter = counter
}

// Run is the hub's main loop. Call it in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*Client]bool)
			}
			h.clients[client.userID][client] = true
			h.mu.Unlock()
			if h.counter != nil {
				h.counter.IncWSConnections()
			}

		case client := <-h.unregister:
			removed := false
			h.mu.Lock()
			if clients, ok := h.clients[client.userID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					removed = true
					if len(clients) == 0 {
						delete(h.clients, client.userID)
					}
				}
			}
			h.mu.Unlock()
			if removed && h.counter != nil {
				h.counter.DecWSConnections()
			}

		case event := <-h.broadcast:
			h.mu.Lock()
			if event.userID != nil {
				h.deliver(h.clients[*event.userID], event)
			} else {
				for _, clients := range h.clients {
					h.deliver(clients, event)
				}
			}
			h.mu.Unlock()
		}
	}
}

// deliver sends to each client in the set, dropping clients whose send
// buffer is full. Callers must hold the write lock.
func (h *Hub) deliver(clients map[*Client]bool, event *Event) {
	for client := range clients {
		select {
		case client.send <- event:
		default:
			close(client.send)
			delete(clients, client)
			if h.counter != nil {
				h.counter.DecWSConnections()
			}
		}
	}
}

// Publish fans an event out to every connected client. Safe on a nil
// hub so callers can run with live events disabled.
func (h *Hub) Publish(eventType string, data any) {
	if h == nil {
		return
	}
	h.broadcast <- &Event{Type: eventType, Data: data}
}

// Notify sends an event to all sessions of a single user.
func (h *Hub) Notify(userID uuid.UUID, eventType string, data any) {
	if h == nil {
		return
	}
	h.broadcast <- &Event{Type: eventType, Data: data, userID: &userID}
}

// ClientCount returns the number of connections held by one user.
func (h *Hub) ClientCount(userID uuid.UUID) int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// TotalClients returns the total number of open connections.
func (h *Hub) TotalClients() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, clients := range h.clients {
		count += len(clients)
	}
	return count
}
