package ws

import (
	"context"
	"encoding/json"
	"sync"

	"rewards_app/internal/feed"
	"rewards_app/internal/logger"
)

// Hub fans committed-write events out to the websocket clients of the user
// they belong to. The presentation layer holds one socket per signed-in user
// and repaints balances/history from these pushes.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]struct{})}
}

// Run consumes the feed bus until ctx is done.
func (h *Hub) Run(ctx context.Context, bus feed.Bus) {
	events, cancel := bus.Subscribe(ctx)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.broadcast(ev)
		}
	}
}

func (h *Hub) broadcast(ev feed.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Warn("ws: dropping event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[ev.UserID] {
		select {
		case c.send <- payload:
		default:
			// slow client, skip this event
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
}
