package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Entities and actions carried by sync events.
const (
	EntityEntry      = "entry"
	EntityCompletion = "completion"
	EntityUser       = "user"

	ActionCreated   = "created"
	ActionUpdated   = "updated"
	ActionDeleted   = "deleted"
	ActionCompleted = "completed"
	ActionReverted  = "reverted"
)

// Event is a real-time sync notification broadcast to all connected clients.
// Clients use it as an invalidation signal and refetch occurrences.
type Event struct {
	Type         string     `json:"type"`
	Entity       string     `json:"entity"`
	Action       string     `json:"action"`
	ID           int64      `json:"id,omitempty"`
	OccurrenceAt *time.Time `json:"occurrence_at,omitempty"`
}

// NewEvent creates an Event with the Type field derived from entity and action.
func NewEvent(entity, action string, id int64) Event {
	return Event{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
	}
}

// CompletionEvent builds an event for one occurrence of an entry.
func CompletionEvent(action string, entryID int64, occurrenceAt time.Time) Event {
	e := NewEvent(EntityCompletion, action, entryID)
	e.OccurrenceAt = &occurrenceAt
	return e
}

// Hub maintains the set of active WebSocket clients and broadcasts events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("dashboard connected", "user", c.username, "clients", count)
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	removed := false
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		removed = true
	}
	count := len(h.clients)
	h.mu.Unlock()
	if removed {
		h.logger.Debug("dashboard disconnected", "user", c.username, "clients", count)
	}
}

// Broadcast sends an event to all connected clients.
func (h *Hub) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full — drop message to avoid blocking
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
