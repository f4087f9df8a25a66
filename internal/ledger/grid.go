package ledger

import (
	"context"

	"tablemgr/internal/models"
	"tablemgr/internal/storage"
)

// GridSlot is one table/hour cell of the day grid.
type GridSlot struct {
	Hour      int    `json:"hour"`
	Occupied  bool   `json:"occupied"`
	BookingID string `json:"bookingId,omitempty"`
	GuestName string `json:"guestName,omitempty"`
	PartySize int    `json:"partySize,omitempty"`
}

// GridRow is the hour series for one table.
type GridRow struct {
	TableID  string     `json:"tableId"`
	Capacity int        `json:"capacity"`
	Slots    []GridSlot `json:"slots"`
}

// DayGrid is the table x hour occupancy projection the calendar view
// renders for a single date.
type DayGrid struct {
	Date      string    `json:"date"`
	StartHour int       `json:"startHour"`
	EndHour   int       `json:"endHour"`
	Rows      []GridRow `json:"rows"`
}

// DayGrid projects the bookings for a date onto a table x hour matrix
// spanning the restaurant's opening hours, endpoints inclusive. A slot is
// occupied when a booking on that table and date satisfies
// startHour <= hour < startHour + ceil(duration/60); the duration rounds
// up to whole hours for display only.
func (l *Ledger) DayGrid(ctx context.Context, date string) (*DayGrid, error) {
	info := models.DefaultRestaurantInfo()
	if _, err := l.store.Load(ctx, storage.KeyRestaurantInfo, &info); err != nil {
		return nil, err
	}

	tables, err := l.registry.All(ctx)
	if err != nil {
		return nil, err
	}
	bookings, err := l.bookings(ctx)
	if err != nil {
		return nil, err
	}

	grid := &DayGrid{
		Date:      date,
		StartHour: info.OpenHour(),
		EndHour:   info.CloseHour(),
	}

	for _, table := range tables {
		row := GridRow{TableID: table.ID, Capacity: table.Capacity}
		for hour := grid.StartHour; hour <= grid.EndHour; hour++ {
			slot := GridSlot{Hour: hour}
			for i := range bookings {
				b := &bookings[i]
				if b.TableID != table.ID || b.Date != date {
					continue
				}
				if coversHour(b, hour) {
					slot.Occupied = true
					slot.BookingID = b.ID
					slot.GuestName = b.GuestName
					slot.PartySize = b.PartySize
					break
				}
			}
			row.Slots = append(row.Slots, slot)
		}
		grid.Rows = append(grid.Rows, row)
	}
	return grid, nil
}

func coversHour(b *models.Booking, hour int) bool {
	startHour := b.StartMinutes() / 60
	duration := b.Duration
	if duration <= 0 {
		duration = 90
	}
	endHour := startHour + (duration+59)/60
	return hour >= startHour && hour < endHour
}
