package server

import (
	"sync"

	"github.com/GriffinCanCode/vadrec/internal/metrics"
	"github.com/GriffinCanCode/vadrec/internal/session"
)

// Hub fans session events out to connected clients. Notify never blocks: a
// client whose buffer is full misses the event.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	metrics *metrics.Metrics
}

type client struct {
	send chan any
}

// NewHub creates an empty hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{clients: make(map[*client]struct{}), metrics: m}
}

// Notify implements session.Observer.
func (h *Hub) Notify(e session.Event) {
	h.broadcast(e)
}

func (h *Hub) broadcast(msg any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.metrics.RecordEventDropped()
		}
	}
}

func (h *Hub) register() *client {
	c := &client{send: make(chan any, ClientBufferSize)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetWSClients(n)
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetWSClients(n)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
