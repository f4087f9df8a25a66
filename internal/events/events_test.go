package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(BookingCreated, func(e Event) { got = append(got, e) })

	bus.Publish(Event{Type: BookingCreated, BookingID: "B1", TableID: "T1"})
	bus.Publish(Event{Type: BookingDeleted, BookingID: "B1"})

	assert.Len(t, got, 1)
	assert.Equal(t, "B1", got[0].BookingID)
	assert.Equal(t, "T1", got[0].TableID)
	assert.False(t, got[0].CreatedAt.IsZero(), "publish stamps the event")
}

func TestBusSubscribeAll(t *testing.T) {
	bus := NewBus()

	count := 0
	bus.SubscribeAll(func(Event) { count++ }, BookingCreated, BookingUpdated, FloorPlanChanged)

	bus.Publish(Event{Type: BookingCreated})
	bus.Publish(Event{Type: BookingUpdated})
	bus.Publish(Event{Type: FloorPlanChanged})
	bus.Publish(Event{Type: TableStatusChanged})

	assert.Equal(t, 3, count)
}

func TestBusMultipleHandlers(t *testing.T) {
	bus := NewBus()

	first, second := false, false
	bus.Subscribe(TableStatusChanged, func(Event) { first = true })
	bus.Subscribe(TableStatusChanged, func(Event) { second = true })

	bus.Publish(Event{Type: TableStatusChanged})
	assert.True(t, first)
	assert.True(t, second)
}
