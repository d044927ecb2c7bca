// Package hub implements the central notification hub: user-facing status
// events fan out from the core to every subscriber.
package hub

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/brianly1003/janus/internal/domain/events"
	"github.com/brianly1003/janus/internal/domain/ports"
)

// Hub dispatches events to all registered subscribers. Publishing never
// blocks the caller: events queue on a bounded channel and a failing
// subscriber is dropped.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]ports.Subscriber
	running     bool

	broadcast chan events.Event
	done      chan struct{}
}

// New creates a new Hub.
func New() *Hub {
	return &Hub{
		subscribers: make(map[string]ports.Subscriber),
		broadcast:   make(chan events.Event, 256),
		done:        make(chan struct{}),
	}
}

// Start begins the hub's dispatch loop.
func (h *Hub) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return nil
	}
	h.running = true
	go h.run()
	log.Debug().Msg("notification hub started")
	return nil
}

// Stop gracefully stops the hub and closes all subscribers.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = false
	subs := h.subscribers
	h.subscribers = make(map[string]ports.Subscriber)
	h.mu.Unlock()

	close(h.done)
	for _, sub := range subs {
		_ = sub.Close()
	}
	log.Debug().Msg("notification hub stopped")
	return nil
}

// Publish sends an event to all subscribers. Never blocks; if the dispatch
// queue is full the event is dropped with a warning.
func (h *Hub) Publish(event events.Event) {
	select {
	case h.broadcast <- event:
	case <-h.done:
	default:
		log.Warn().
			Str("event_type", string(event.Type())).
			Msg("event dropped: broadcast queue full")
	}
}

// Subscribe adds a subscriber.
func (h *Hub) Subscribe(sub ports.Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[sub.ID()] = sub
	log.Debug().Str("subscriber_id", sub.ID()).Msg("subscriber registered")
}

// Unsubscribe removes and closes a subscriber by ID.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	delete(h.subscribers, id)
	h.mu.Unlock()
	if ok {
		_ = sub.Close()
		log.Debug().Str("subscriber_id", id).Msg("subscriber unregistered")
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// IsRunning returns true if the hub is running.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) deliver(event events.Event) {
	h.mu.RLock()
	var failed []string
	for id, sub := range h.subscribers {
		if err := sub.Send(event); err != nil {
			log.Warn().
				Str("subscriber_id", id).
				Err(err).
				Msg("failed to send event to subscriber")
			failed = append(failed, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range failed {
		h.Unsubscribe(id)
	}
}
