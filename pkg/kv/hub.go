package kv

import (
	"context"
	"sync"
)

// Hub is the in-process Notifier. Listeners run synchronously on the
// publishing goroutine, mirroring the single-threaded event model the slots
// were designed around.
type Hub struct {
	mu        sync.Mutex
	nextID    int
	listeners map[string]map[int]func(string)
}

// NewHub returns an empty notifier hub.
func NewHub() *Hub {
	return &Hub{listeners: make(map[string]map[int]func(string))}
}

func (h *Hub) Publish(_ context.Context, name, payload string) error {
	h.mu.Lock()
	fns := make([]func(string), 0, len(h.listeners[name]))
	for _, fn := range h.listeners[name] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(payload)
	}
	return nil
}

func (h *Hub) Subscribe(name string, fn func(payload string)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.listeners[name] == nil {
		h.listeners[name] = make(map[int]func(string))
	}
	id := h.nextID
	h.nextID++
	h.listeners[name][id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners[name], id)
	}
}
