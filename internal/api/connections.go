package api

import (
	"sync"

	"github.com/khanhnv2901/sparrow-cli/internal/monitor"
)

// ConnectionHub is a monitor.Sink that fans connection events out to SSE
// subscribers. Events for a subscriber whose buffer is full are dropped.
type ConnectionHub struct {
	mu          sync.Mutex
	subscribers map[chan monitor.ConnectionEvent]struct{}
	dropped     int
}

func NewConnectionHub() *ConnectionHub {
	return &ConnectionHub{subscribers: make(map[chan monitor.ConnectionEvent]struct{})}
}

// HandleEvent implements monitor.Sink.
func (h *ConnectionHub) HandleEvent(ev monitor.ConnectionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			h.dropped++
		}
	}
}

func (h *ConnectionHub) Subscribe() (chan monitor.ConnectionEvent, func()) {
	ch := make(chan monitor.ConnectionEvent, 64)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
}

// Dropped counts events not delivered to slow subscribers.
func (h *ConnectionHub) Dropped() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}
