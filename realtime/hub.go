package realtime

import (
	"sync"

	"taskboard/todo"
)

// Hub manages realtime subscriptions and broadcasts record change
// events to every watcher of a collection.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan todo.Event]struct{}
	closed      bool
}

// NewHub creates a new subscription hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan todo.Event]struct{}),
	}
}

// Subscribe registers a watcher on a named collection.
// Returns the event channel and an unsubscribe function.
func (h *Hub) Subscribe(collection string) (<-chan todo.Event, func()) {
	ch := make(chan todo.Event, 16)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	subs, ok := h.subscribers[collection]
	if !ok {
		subs = make(map[chan todo.Event]struct{})
		h.subscribers[collection] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		// Only close if the channel is still subscribed
		if subs, ok := h.subscribers[collection]; ok {
			if _, exists := subs[ch]; exists {
				delete(subs, ch)
				close(ch)
			}
		}
	}

	return ch, unsubscribe
}

// Notify broadcasts an event to all subscribers of a collection.
// Subscribers with a full channel are skipped rather than blocked on.
func (h *Hub) Notify(collection string, event todo.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[collection] {
		select {
		case ch <- event:
		default:
			// Channel full, skip this subscriber
		}
	}
}

// SubscriberCount returns the number of active watchers of a collection.
func (h *Hub) SubscriberCount(collection string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[collection])
}

// Shutdown closes all subscriber channels.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, subs := range h.subscribers {
		for ch := range subs {
			close(ch)
		}
	}
	h.subscribers = make(map[string]map[chan todo.Event]struct{})
}
