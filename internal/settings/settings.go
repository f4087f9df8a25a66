// Package settings manages the restaurantInfo singleton, first-run
// seeding and dataset-level export, import and reset.
package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tablemgr/internal/events"
	"tablemgr/internal/models"
	"tablemgr/internal/storage"
)

// Service reads and writes the per-restaurant settings and owns the
// whole-dataset operations.
type Service struct {
	store    storage.Store
	bus      *events.Bus
	defaults models.RestaurantInfo
	logger   *zerolog.Logger
	now      func() time.Time
}

// NewService constructs the settings service. defaults seed the
// restaurantInfo record on first run.
func NewService(store storage.Store, bus *events.Bus, defaults models.RestaurantInfo, logger *zerolog.Logger) *Service {
	if defaults.ReservationDuration <= 0 {
		defaults.ReservationDuration = 90
	}
	return &Service{store: store, bus: bus, defaults: defaults, logger: logger, now: time.Now}
}

// SetClock overrides the time source; used by tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Info returns the restaurant info record, falling back to defaults when
// none has been saved yet.
func (s *Service) Info(ctx context.Context) (models.RestaurantInfo, error) {
	info := s.defaults
	if _, err := s.store.Load(ctx, storage.KeyRestaurantInfo, &info); err != nil {
		return s.defaults, err
	}
	return info, nil
}

// SaveInfo persists the restaurant info record, defaulting blank fields.
func (s *Service) SaveInfo(ctx context.Context, info models.RestaurantInfo) (models.RestaurantInfo, error) {
	if info.Name == "" {
		info.Name = s.defaults.Name
	}
	if info.OpeningTime == "" {
		info.OpeningTime = s.defaults.OpeningTime
	}
	if info.ClosingTime == "" {
		info.ClosingTime = s.defaults.ClosingTime
	}
	if info.ReservationDuration <= 0 {
		info.ReservationDuration = s.defaults.ReservationDuration
	}
	if err := s.store.Save(ctx, storage.KeyRestaurantInfo, info); err != nil {
		return info, err
	}
	s.logger.Info().Str("name", info.Name).Msg("restaurant info saved")
	return info, nil
}

// Seed writes the demo dataset when the namespace has never been
// initialized. Subsequent calls are no-ops.
func (s *Service) Seed(ctx context.Context) error {
	initialized, err := s.store.Has(ctx, storage.KeyInitialized)
	if err != nil {
		return err
	}
	if initialized {
		return nil
	}

	today := s.now().Format("2006-01-02")

	tables := []models.Table{
		{ID: "T1", Shape: models.ShapeRound, Capacity: 2, X: 50, Y: 50, Width: 60, Height: 60, Section: "main"},
		{ID: "T2", Shape: models.ShapeSquare, Capacity: 4, X: 150, Y: 50, Width: 80, Height: 80, Section: "main"},
		{ID: "T3", Shape: models.ShapeRectangle, Capacity: 6, X: 50, Y: 150, Width: 100, Height: 60, Section: "main", IsVip: true},
	}
	bookings := []models.Booking{
		{
			ID: "B1", GuestName: "John Doe", Phone: "555-1234", Email: "john@example.com",
			Date: today, Time: "18:00", PartySize: 2, Duration: 90, TableID: "T1",
			SpecialRequests: "Window seat preferred", Status: models.BookingConfirmed,
		},
		{
			ID: "B2", GuestName: "Jane Smith", Phone: "555-5678", Email: "jane@example.com",
			Date: today, Time: "19:30", PartySize: 4, Duration: 90, TableID: "T2",
			Status: models.BookingConfirmed,
		},
	}
	statuses := []models.TableStatus{
		{TableID: "T1", Status: models.StateReserved, ReservationID: "B1"},
		{TableID: "T2", Status: models.StateReserved, ReservationID: "B2"},
		{TableID: "T3", Status: models.StateAvailable},
	}

	if err := s.store.Save(ctx, storage.KeyRestaurantInfo, s.defaults); err != nil {
		return fmt.Errorf("seed restaurant info: %w", err)
	}
	if err := s.store.Save(ctx, storage.KeyTables, tables); err != nil {
		return fmt.Errorf("seed tables: %w", err)
	}
	if err := s.store.Save(ctx, storage.KeyBookings, bookings); err != nil {
		return fmt.Errorf("seed bookings: %w", err)
	}
	if err := s.store.Save(ctx, storage.KeyTableStatuses, statuses); err != nil {
		return fmt.Errorf("seed table statuses: %w", err)
	}
	if err := s.store.Save(ctx, storage.KeyInitialized, true); err != nil {
		return fmt.Errorf("seed init flag: %w", err)
	}

	s.logger.Info().Msg("namespace seeded with default dataset")
	return nil
}

// Export serializes the whole namespace as pretty-printed JSON.
func (s *Service) Export(ctx context.Context) ([]byte, error) {
	return storage.ExportAll(ctx, s.store)
}

// Import replaces the namespace with the given export blob. A parse
// failure leaves the existing dataset untouched.
func (s *Service) Import(ctx context.Context, blob []byte) error {
	if err := storage.ImportAll(ctx, s.store, blob); err != nil {
		return err
	}
	s.logger.Info().Msg("dataset imported")
	s.bus.Publish(events.Event{Type: events.DatasetReplaced})
	return nil
}

// Reset removes every key in the namespace.
func (s *Service) Reset(ctx context.Context) error {
	keys, err := s.store.ListKeys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.store.Remove(ctx, key); err != nil {
			return err
		}
	}
	s.logger.Info().Int("keys", len(keys)).Msg("dataset reset")
	s.bus.Publish(events.Event{Type: events.DatasetReplaced})
	return nil
}
