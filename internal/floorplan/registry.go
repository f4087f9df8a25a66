// Package floorplan owns the set of tables and their live statuses. Every
// mutation is persisted through the key-value store before returning, and
// deleting a table cascades to its status record so no orphaned status can
// reference a nonexistent table.
package floorplan

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"tablemgr/internal/events"
	"tablemgr/internal/models"
	"tablemgr/internal/storage"
)

var (
	ErrTableNotFound = errors.New("table not found")
)

// Registry manages tables and table statuses for one restaurant namespace.
type Registry struct {
	store           storage.Store
	bus             *events.Bus
	logger          *zerolog.Logger
	strictConflicts bool
}

// NewRegistry constructs a registry over the given store. When
// strictConflicts is set, availability uses true interval-overlap checking
// instead of the legacy date-only comparison.
func NewRegistry(store storage.Store, bus *events.Bus, strictConflicts bool, logger *zerolog.Logger) *Registry {
	return &Registry{store: store, bus: bus, logger: logger, strictConflicts: strictConflicts}
}

// All returns every table, in stored order.
func (r *Registry) All(ctx context.Context) ([]models.Table, error) {
	return r.tables(ctx)
}

// Get returns a single table, or (nil, nil) when it does not exist.
func (r *Registry) Get(ctx context.Context, id string) (*models.Table, error) {
	tables, err := r.tables(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tables {
		if tables[i].ID == id {
			return &tables[i], nil
		}
	}
	return nil, nil
}

// Create places a new table on the floor plan. The id is the next
// sequential numeric id (max existing numeric suffix + 1, or 1 when the
// plan is empty); width and height come from the shape. A fresh status
// record is created as available.
func (r *Registry) Create(ctx context.Context, req models.CreateTableRequest) (*models.Table, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tables, err := r.tables(ctx)
	if err != nil {
		return nil, err
	}

	width, height := req.Shape.DefaultSize()
	table := models.Table{
		ID:       fmt.Sprintf("T%d", nextTableID(tables)),
		Shape:    req.Shape,
		Capacity: 4,
		X:        req.X - width/2,
		Y:        req.Y - height/2,
		Width:    width,
		Height:   height,
		Section:  req.Section,
	}
	tables = append(tables, table)
	if err := r.store.Save(ctx, storage.KeyTables, tables); err != nil {
		return nil, err
	}

	statuses, err := r.statuses(ctx)
	if err != nil {
		return nil, err
	}
	statuses = append(statuses, models.TableStatus{TableID: table.ID, Status: models.StateAvailable})
	if err := r.store.Save(ctx, storage.KeyTableStatuses, statuses); err != nil {
		return nil, err
	}

	r.logger.Info().Str("table", table.ID).Str("shape", string(table.Shape)).Msg("table created")
	r.bus.Publish(events.Event{Type: events.FloorPlanChanged, TableID: table.ID})
	return &table, nil
}

// Update applies a partial update to a table.
func (r *Registry) Update(ctx context.Context, id string, req models.UpdateTableRequest) (*models.Table, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tables, err := r.tables(ctx)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range tables {
		if tables[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrTableNotFound
	}

	t := &tables[idx]
	if req.Capacity != nil {
		t.Capacity = *req.Capacity
	}
	if req.X != nil {
		t.X = *req.X
	}
	if req.Y != nil {
		t.Y = *req.Y
	}
	if req.Section != nil {
		t.Section = *req.Section
	}
	if req.IsVip != nil {
		t.IsVip = *req.IsVip
	}

	if err := r.store.Save(ctx, storage.KeyTables, tables); err != nil {
		return nil, err
	}
	r.bus.Publish(events.Event{Type: events.FloorPlanChanged, TableID: id})
	return t, nil
}

// Delete removes a table and its status record.
func (r *Registry) Delete(ctx context.Context, id string) error {
	tables, err := r.tables(ctx)
	if err != nil {
		return err
	}

	kept := tables[:0]
	found := false
	for _, t := range tables {
		if t.ID == id {
			found = true
			continue
		}
		kept = append(kept, t)
	}
	if !found {
		return ErrTableNotFound
	}
	if err := r.store.Save(ctx, storage.KeyTables, kept); err != nil {
		return err
	}

	statuses, err := r.statuses(ctx)
	if err != nil {
		return err
	}
	keptStatuses := statuses[:0]
	for _, s := range statuses {
		if s.TableID != id {
			keptStatuses = append(keptStatuses, s)
		}
	}
	if err := r.store.Save(ctx, storage.KeyTableStatuses, keptStatuses); err != nil {
		return err
	}

	r.logger.Info().Str("table", id).Msg("table deleted")
	r.bus.Publish(events.Event{Type: events.FloorPlanChanged, TableID: id})
	return nil
}

// Clear removes every table and status record.
func (r *Registry) Clear(ctx context.Context) error {
	if err := r.store.Save(ctx, storage.KeyTables, []models.Table{}); err != nil {
		return err
	}
	if err := r.store.Save(ctx, storage.KeyTableStatuses, []models.TableStatus{}); err != nil {
		return err
	}
	r.bus.Publish(events.Event{Type: events.FloorPlanChanged})
	return nil
}

// Status returns the status record for a table, or (nil, nil) when none
// exists yet.
func (r *Registry) Status(ctx context.Context, tableID string) (*models.TableStatus, error) {
	statuses, err := r.statuses(ctx)
	if err != nil {
		return nil, err
	}
	for i := range statuses {
		if statuses[i].TableID == tableID {
			return &statuses[i], nil
		}
	}
	return nil, nil
}

// AllStatuses returns every status record.
func (r *Registry) AllStatuses(ctx context.Context) ([]models.TableStatus, error) {
	return r.statuses(ctx)
}

// SetStatus upserts a table's status record and persists the set.
func (r *Registry) SetStatus(ctx context.Context, status models.TableStatus) error {
	statuses, err := r.statuses(ctx)
	if err != nil {
		return err
	}
	updated := false
	for i := range statuses {
		if statuses[i].TableID == status.TableID {
			statuses[i] = status
			updated = true
			break
		}
	}
	if !updated {
		statuses = append(statuses, status)
	}
	return r.store.Save(ctx, storage.KeyTableStatuses, statuses)
}

// FindAvailable filters tables that can seat the party at the requested
// date and time. Tables that are occupied or cleaning are always excluded.
// A reserved table is excluded when its linked booking's date matches the
// requested date; time-of-day is deliberately not compared in the default
// mode. With strict conflicts enabled the
// reservation only blocks when the requested [time, time+duration) window
// overlaps the booking's window on the same date. Results are sorted by
// capacity ascending so callers can prefer a tight fit.
func (r *Registry) FindAvailable(ctx context.Context, partySize int, date, timeStr string, duration int) ([]models.Table, error) {
	tables, err := r.tables(ctx)
	if err != nil {
		return nil, err
	}
	statuses, err := r.statuses(ctx)
	if err != nil {
		return nil, err
	}

	var bookings []models.Booking
	if _, err := r.store.Load(ctx, storage.KeyBookings, &bookings); err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Booking, len(bookings))
	for i := range bookings {
		byID[bookings[i].ID] = &bookings[i]
	}
	statusByTable := make(map[string]*models.TableStatus, len(statuses))
	for i := range statuses {
		statusByTable[statuses[i].TableID] = &statuses[i]
	}

	var available []models.Table
	for _, table := range tables {
		if table.Capacity < partySize {
			continue
		}

		status := statusByTable[table.ID]
		if status == nil || status.Status == models.StateOccupied || status.Status == models.StateCleaning {
			continue
		}

		if status.Status == models.StateReserved && status.ReservationID != "" {
			booking := byID[status.ReservationID]
			if booking != nil && r.reservationBlocks(booking, date, timeStr, duration) {
				continue
			}
		}

		available = append(available, table)
	}

	sort.SliceStable(available, func(i, j int) bool {
		return available[i].Capacity < available[j].Capacity
	})
	return available, nil
}

func (r *Registry) reservationBlocks(booking *models.Booking, date, timeStr string, duration int) bool {
	if !r.strictConflicts {
		// Date-only comparison: same-day bookings always conflict, even at
		// non-overlapping times.
		return booking.Date == date
	}
	if duration <= 0 {
		duration = booking.Duration
	}
	h, m, err := models.ParseClock(timeStr)
	if err != nil {
		return booking.Date == date
	}
	start := h*60 + m
	return booking.OverlapsSlot(date, start, start+duration)
}

func (r *Registry) tables(ctx context.Context) ([]models.Table, error) {
	var tables []models.Table
	if _, err := r.store.Load(ctx, storage.KeyTables, &tables); err != nil {
		return nil, err
	}
	return tables, nil
}

func (r *Registry) statuses(ctx context.Context) ([]models.TableStatus, error) {
	var statuses []models.TableStatus
	if _, err := r.store.Load(ctx, storage.KeyTableStatuses, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

func nextTableID(tables []models.Table) int {
	max := 0
	for i := range tables {
		if n := tables[i].NumericID(); n > max {
			max = n
		}
	}
	return max + 1
}
