package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Message is a live-update notification pushed to a family's connected
// clients after a successful mutation. Subscribers re-fetch the affected
// entity; the message itself carries only identifiers.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     int64          `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub maintains active WebSocket clients grouped by family. A family is
// identified by the parent's profile id; children join their parent's group.
type Hub struct {
	mu       sync.RWMutex
	families map[int64]map[*Client]struct{}
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		families: make(map[int64]map[*Client]struct{}),
		logger:   logger,
	}
}

// Register adds a client to its family's group.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	group, ok := h.families[c.familyID]
	if !ok {
		group = make(map[*Client]struct{})
		h.families[c.familyID] = group
	}
	group[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if group, ok := h.families[c.familyID]; ok {
		if _, ok := group[c]; ok {
			delete(group, c)
			close(c.send)
		}
		if len(group) == 0 {
			delete(h.families, c.familyID)
		}
	}
	h.mu.Unlock()
}

// Broadcast sends a message to every client in the given family.
func (h *Hub) Broadcast(familyID int64, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.families[familyID] {
		select {
		case c.send <- data:
		default:
			// Slow client, drop the message instead of blocking
		}
	}
}

// BroadcastAll sends a message to every connected client regardless of
// family.
func (h *Hub) BroadcastAll(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, group := range h.families {
		for c := range group {
			select {
			case c.send <- data:
			default:
			}
		}
	}
}

// ClientCount returns the number of clients connected for a family.
func (h *Hub) ClientCount(familyID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.families[familyID])
}
