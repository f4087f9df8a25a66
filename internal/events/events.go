// Package events provides the in-process pub/sub bus that links mutations
// to the dashboard refresh and metrics. Handlers run synchronously inside
// the mutating call; there is no cross-goroutine delivery.
package events

import (
	"sync"
	"time"
)

// Event types published by the domain services.
const (
	BookingCreated     = "booking.created"
	BookingUpdated     = "booking.updated"
	BookingDeleted     = "booking.deleted"
	TableStatusChanged = "table.status_changed"
	FloorPlanChanged   = "floorplan.changed"
	DatasetReplaced    = "dataset.replaced"
)

// Event is a lightweight domain event. Payload values are the record ids
// involved in the mutation.
type Event struct {
	Type      string
	TableID   string
	BookingID string
	CreatedAt time.Time
}

// Handler reacts to an event.
type Handler func(event Event)

// Bus provides in-process pub/sub for events.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for every listed event type.
func (b *Bus) SubscribeAll(handler Handler, eventTypes ...string) {
	for _, et := range eventTypes {
		b.Subscribe(et, handler)
	}
}

// Publish notifies subscribers of the event type.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		handler(event)
	}
}
