package feed

import (
	"context"
	"log/slog"
	"sync"
)

// Hub fans entries out to in-process subscribers such as websocket clients.
type Hub struct {
	log       *slog.Logger
	mu        sync.RWMutex
	listeners map[chan Entry]struct{}
	buffer    int
}

func NewHub(buffer int, log *slog.Logger) *Hub {
	return &Hub{log: log, listeners: map[chan Entry]struct{}{}, buffer: buffer}
}

// Publish never blocks. Subscribers that are not keeping up miss entries.
func (h *Hub) Publish(_ context.Context, e Entry) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.listeners {
		select {
		case ch <- e:
		default:
			h.log.Debug("live subscriber too slow, entry dropped")
		}
	}
	return nil
}

func (h *Hub) Subscribe() chan Entry {
	ch := make(chan Entry, h.buffer)
	h.mu.Lock()
	h.listeners[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.listeners[ch]; ok {
		delete(h.listeners, ch)
		close(ch)
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
