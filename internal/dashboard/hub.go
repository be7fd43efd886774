package dashboard

import (
	"encoding/json"
	"sync"
)

const clientBuffer = 64

// Hub fans events out to SSE subscribers. Each subscriber has a bounded
// queue; a subscriber that falls behind loses events rather than stalling
// the run that produced them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// Client is one SSE subscription. Only the handler goroutine that owns it
// writes to the connection.
type Client struct {
	events chan []byte
	// RunID restricts the subscription to one run when set.
	RunID string
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

// Subscribe registers a client for events of runID, or of every run when
// runID is empty.
func (h *Hub) Subscribe(runID string) *Client {
	c := &Client{events: make(chan []byte, clientBuffer), RunID: runID}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// Unsubscribe removes c and closes its queue.
func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.events)
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues event for every matching subscriber.
func (h *Hub) Broadcast(event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.RunID != "" && c.RunID != event.RunID {
			continue
		}
		select {
		case c.events <- data:
		default:
		}
	}
}

// Events returns the client's queue. It is closed on Unsubscribe.
func (c *Client) Events() <-chan []byte { return c.events }
