// Package ledger owns the list of reservations and keeps the linked table
// statuses consistent with it: creating a booking reserves its table,
// moving a booking releases the old table and reserves the new one, and
// deleting a booking frees the table iff the status still points at it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tablemgr/internal/events"
	"tablemgr/internal/floorplan"
	"tablemgr/internal/metrics"
	"tablemgr/internal/models"
	"tablemgr/internal/storage"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
)

// Ledger manages bookings for one restaurant namespace.
type Ledger struct {
	store           storage.Store
	registry        *floorplan.Registry
	bus             *events.Bus
	logger          *zerolog.Logger
	defaultDuration int
	now             func() time.Time
}

// NewLedger constructs a ledger. defaultDuration (minutes) fills bookings
// that arrive without one and is used for walk-in seating.
func NewLedger(store storage.Store, registry *floorplan.Registry, bus *events.Bus, defaultDuration int, logger *zerolog.Logger) *Ledger {
	if defaultDuration <= 0 {
		defaultDuration = 90
	}
	return &Ledger{
		store:           store,
		registry:        registry,
		bus:             bus,
		logger:          logger,
		defaultDuration: defaultDuration,
		now:             time.Now,
	}
}

// SetClock overrides the time source; used by tests.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

// All returns every booking, in stored order.
func (l *Ledger) All(ctx context.Context) ([]models.Booking, error) {
	return l.bookings(ctx)
}

// Get returns a single booking, or (nil, nil) when it does not exist.
func (l *Ledger) Get(ctx context.Context, id string) (*models.Booking, error) {
	bookings, err := l.bookings(ctx)
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		if bookings[i].ID == id {
			return &bookings[i], nil
		}
	}
	return nil, nil
}

// Create records a new confirmed booking and marks the target table
// reserved with the new booking id. Ids are timestamp-based; a rapid
// double-submit can collide, which is accepted for this dataset size.
func (l *Ledger) Create(ctx context.Context, req models.BookingRequest) (*models.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	booking := l.fromRequest(req)
	booking.ID = fmt.Sprintf("B%d", l.now().UnixMilli())
	booking.Status = models.BookingConfirmed

	bookings, err := l.bookings(ctx)
	if err != nil {
		return nil, err
	}
	bookings = append(bookings, booking)
	if err := l.store.Save(ctx, storage.KeyBookings, bookings); err != nil {
		return nil, err
	}

	if err := l.reserveTable(ctx, booking.TableID, booking.ID); err != nil {
		return nil, err
	}

	l.logger.Info().Str("booking", booking.ID).Str("table", booking.TableID).
		Str("date", booking.Date).Str("time", booking.Time).Msg("booking created")
	metrics.IncBookingCreated("reservation")
	l.bus.Publish(events.Event{Type: events.BookingCreated, BookingID: booking.ID, TableID: booking.TableID})
	return &booking, nil
}

// Update edits an existing booking. When the table changes, the previous
// table's status resets to available and the new table becomes reserved
// with this booking's id; both status writes happen before the booking
// list is persisted so the records cannot diverge on a storage failure
// after the move.
func (l *Ledger) Update(ctx context.Context, id string, req models.BookingRequest) (*models.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	bookings, err := l.bookings(ctx)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i := range bookings {
		if bookings[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrBookingNotFound
	}

	previousTableID := bookings[idx].TableID
	updated := l.fromRequest(req)
	updated.ID = id
	updated.Status = bookings[idx].Status

	if previousTableID != updated.TableID {
		// The old table is freed unconditionally on a move; only delete
		// checks whether the status still points at this booking.
		if err := l.registry.SetStatus(ctx, models.TableStatus{
			TableID: previousTableID,
			Status:  models.StateAvailable,
		}); err != nil {
			return nil, err
		}
		if err := l.reserveTable(ctx, updated.TableID, id); err != nil {
			return nil, err
		}
	}

	bookings[idx] = updated
	if err := l.store.Save(ctx, storage.KeyBookings, bookings); err != nil {
		return nil, err
	}

	l.logger.Info().Str("booking", id).Str("table", updated.TableID).Msg("booking updated")
	l.bus.Publish(events.Event{Type: events.BookingUpdated, BookingID: id, TableID: updated.TableID})
	return &updated, nil
}

// Delete removes a booking. The linked table status is reset to available
// only when it still references this booking; a table rebooked in the
// meantime is left alone.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	bookings, err := l.bookings(ctx)
	if err != nil {
		return err
	}

	tableID := ""
	kept := bookings[:0]
	found := false
	for _, b := range bookings {
		if b.ID == id {
			found = true
			tableID = b.TableID
			continue
		}
		kept = append(kept, b)
	}
	if !found {
		return ErrBookingNotFound
	}
	if err := l.store.Save(ctx, storage.KeyBookings, kept); err != nil {
		return err
	}

	if err := l.releaseTable(ctx, tableID, id); err != nil {
		return err
	}

	l.logger.Info().Str("booking", id).Msg("booking deleted")
	metrics.IncBookingDeleted()
	l.bus.Publish(events.Event{Type: events.BookingDeleted, BookingID: id, TableID: tableID})
	return nil
}

// SeatWalkIn creates a retroactive booking at the current date and time
// and marks the table occupied with the new booking id.
func (l *Ledger) SeatWalkIn(ctx context.Context, req models.WalkInRequest) (*models.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := l.now()
	booking := models.Booking{
		ID:              fmt.Sprintf("B%d", now.UnixMilli()),
		GuestName:       req.GuestName,
		Phone:           req.Phone,
		Date:            now.Format("2006-01-02"),
		Time:            now.Format("15:04"),
		PartySize:       req.PartySize,
		Duration:        l.defaultDuration,
		TableID:         req.TableID,
		SpecialRequests: "Walk-in guest",
		Status:          models.BookingConfirmed,
	}

	bookings, err := l.bookings(ctx)
	if err != nil {
		return nil, err
	}
	bookings = append(bookings, booking)
	if err := l.store.Save(ctx, storage.KeyBookings, bookings); err != nil {
		return nil, err
	}

	if err := l.registry.SetStatus(ctx, models.TableStatus{
		TableID:       req.TableID,
		Status:        models.StateOccupied,
		ReservationID: booking.ID,
	}); err != nil {
		return nil, err
	}

	l.logger.Info().Str("booking", booking.ID).Str("table", req.TableID).Msg("walk-in seated")
	metrics.IncBookingCreated("walk_in")
	metrics.IncStatusChanged(string(models.StateOccupied))
	l.bus.Publish(events.Event{Type: events.BookingCreated, BookingID: booking.ID, TableID: req.TableID})
	return &booking, nil
}

// ListForDate returns all bookings for a date, sorted by time.
func (l *Ledger) ListForDate(ctx context.Context, date string) ([]models.Booking, error) {
	return l.ListFiltered(ctx, date, "", models.BucketAny)
}

// ListFiltered returns bookings matching the date (empty matches all), a
// case-insensitive guest-name search and a party-size bucket, sorted by
// (date, time). Both fields are zero-padded ISO strings, so a plain
// lexicographic compare orders correctly.
func (l *Ledger) ListFiltered(ctx context.Context, date, search string, bucket models.PartySizeBucket) ([]models.Booking, error) {
	bookings, err := l.bookings(ctx)
	if err != nil {
		return nil, err
	}

	search = strings.ToLower(search)
	filtered := make([]models.Booking, 0, len(bookings))
	for _, b := range bookings {
		if date != "" && b.Date != date {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(b.GuestName), search) {
			continue
		}
		if !bucket.Matches(b.PartySize) {
			continue
		}
		filtered = append(filtered, b)
	}

	sortByDateTime(filtered)
	return filtered, nil
}

// Upcoming returns bookings strictly after now, soonest first, truncated
// to limit.
func (l *Ledger) Upcoming(ctx context.Context, limit int) ([]models.Booking, error) {
	bookings, err := l.bookings(ctx)
	if err != nil {
		return nil, err
	}

	now := l.now()
	upcoming := make([]models.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.IsUpcoming(now) {
			upcoming = append(upcoming, b)
		}
	}

	sortByDateTime(upcoming)
	if limit > 0 && len(upcoming) > limit {
		upcoming = upcoming[:limit]
	}
	return upcoming, nil
}

func (l *Ledger) fromRequest(req models.BookingRequest) models.Booking {
	duration := req.Duration
	if duration <= 0 {
		duration = l.defaultDuration
	}
	return models.Booking{
		GuestName:       req.GuestName,
		Phone:           req.Phone,
		Email:           req.Email,
		Date:            req.Date,
		Time:            req.Time,
		PartySize:       req.PartySize,
		Duration:        duration,
		TableID:         req.TableID,
		SpecialRequests: req.SpecialRequests,
	}
}

// reserveTable marks a table reserved for a booking.
func (l *Ledger) reserveTable(ctx context.Context, tableID, bookingID string) error {
	if err := l.registry.SetStatus(ctx, models.TableStatus{
		TableID:       tableID,
		Status:        models.StateReserved,
		ReservationID: bookingID,
	}); err != nil {
		return err
	}
	metrics.IncStatusChanged(string(models.StateReserved))
	return nil
}

// releaseTable resets a table to available iff its status still references
// the given booking.
func (l *Ledger) releaseTable(ctx context.Context, tableID, bookingID string) error {
	status, err := l.registry.Status(ctx, tableID)
	if err != nil {
		return err
	}
	if status == nil || status.ReservationID != bookingID {
		return nil
	}
	if err := l.registry.SetStatus(ctx, models.TableStatus{
		TableID: tableID,
		Status:  models.StateAvailable,
	}); err != nil {
		return err
	}
	metrics.IncStatusChanged(string(models.StateAvailable))
	return nil
}

func (l *Ledger) bookings(ctx context.Context) ([]models.Booking, error) {
	var bookings []models.Booking
	if _, err := l.store.Load(ctx, storage.KeyBookings, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func sortByDateTime(bookings []models.Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		if bookings[i].Date != bookings[j].Date {
			return bookings[i].Date < bookings[j].Date
		}
		return bookings[i].Time < bookings[j].Time
	})
}
