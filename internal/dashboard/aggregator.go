// Package dashboard derives the live summary statistics from the table
// registry, the status list and the booking ledger, and owns the per-table
// status state machine. Stats recompute after every mutation (via the
// event bus) and on a fixed wall-clock interval so time-based changes show
// up without user action.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tablemgr/internal/events"
	"tablemgr/internal/floorplan"
	"tablemgr/internal/ledger"
	"tablemgr/internal/metrics"
	"tablemgr/internal/models"
)

// avgDiningTimeMinutes is a placeholder; it is not derived from history.
const avgDiningTimeMinutes = 90

// refreshInterval is the wall-clock recomputation period.
const refreshInterval = 60 * time.Second

var (
	ErrInvalidTransition = errors.New("invalid status transition")
)

// transitions is the per-table state machine: neighbors in the service
// cycle are reachable both ways, and every state can jump straight to
// available (cancel) or occupied (walk-in seating). Re-entering the same
// state is allowed so a reservation id can be swapped in place.
var transitions = map[models.TableState][]models.TableState{
	models.StateAvailable: {models.StateAvailable, models.StateReserved, models.StateOccupied, models.StateCleaning},
	models.StateReserved:  {models.StateReserved, models.StateAvailable, models.StateOccupied},
	models.StateOccupied:  {models.StateOccupied, models.StateReserved, models.StateCleaning, models.StateAvailable},
	models.StateCleaning:  {models.StateCleaning, models.StateAvailable, models.StateOccupied},
}

// CanTransition checks if a status transition is allowed.
func CanTransition(from, to models.TableState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Stats is the dashboard summary panel.
type Stats struct {
	TotalCapacity int `json:"totalCapacity"`
	CurrentGuests int `json:"currentGuests"`
	OccupancyPct  int `json:"occupancyPct"`
	AvgDiningTime int `json:"avgDiningTime"`
}

// Aggregator recomputes derived dashboard views.
type Aggregator struct {
	registry *floorplan.Registry
	ledger   *ledger.Ledger
	bus      *events.Bus
	logger   *zerolog.Logger

	mu     sync.RWMutex
	cached Stats
}

// NewAggregator constructs the aggregator and subscribes it to every
// mutating event so stats stay current between ticks.
func NewAggregator(registry *floorplan.Registry, lg *ledger.Ledger, bus *events.Bus, logger *zerolog.Logger) *Aggregator {
	a := &Aggregator{registry: registry, ledger: lg, bus: bus, logger: logger}
	bus.SubscribeAll(func(events.Event) {
		if err := a.Refresh(context.Background()); err != nil {
			logger.Error().Err(err).Msg("dashboard refresh failed")
		}
	},
		events.BookingCreated, events.BookingUpdated, events.BookingDeleted,
		events.TableStatusChanged, events.FloorPlanChanged, events.DatasetReplaced,
	)
	return a
}

// Start runs the periodic refresh until the context is cancelled.
func (a *Aggregator) Start(ctx context.Context) {
	if err := a.Refresh(ctx); err != nil {
		a.logger.Error().Err(err).Msg("initial dashboard refresh failed")
	}

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Refresh(ctx); err != nil {
				a.logger.Error().Err(err).Msg("dashboard refresh failed")
			}
		}
	}
}

// Stats returns the last computed summary.
func (a *Aggregator) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cached
}

// Refresh recomputes the summary from persisted state. For each occupied
// table the linked booking's party size counts as seated guests; when the
// booking cannot be resolved the table's full capacity is the fallback
// estimate.
func (a *Aggregator) Refresh(ctx context.Context) error {
	tables, err := a.registry.All(ctx)
	if err != nil {
		return err
	}
	statuses, err := a.registry.AllStatuses(ctx)
	if err != nil {
		return err
	}
	bookings, err := a.ledger.All(ctx)
	if err != nil {
		return err
	}

	byTable := make(map[string]*models.Table, len(tables))
	totalCapacity := 0
	for i := range tables {
		byTable[tables[i].ID] = &tables[i]
		totalCapacity += tables[i].Capacity
	}
	byBooking := make(map[string]*models.Booking, len(bookings))
	for i := range bookings {
		byBooking[bookings[i].ID] = &bookings[i]
	}

	currentGuests := 0
	for _, status := range statuses {
		if status.Status != models.StateOccupied {
			continue
		}
		table := byTable[status.TableID]
		if table == nil {
			continue
		}
		if booking := byBooking[status.ReservationID]; booking != nil {
			currentGuests += booking.PartySize
		} else {
			currentGuests += table.Capacity
		}
	}

	pct := 0
	if totalCapacity > 0 {
		pct = int(math.Round(100 * float64(currentGuests) / float64(totalCapacity)))
	}

	stats := Stats{
		TotalCapacity: totalCapacity,
		CurrentGuests: currentGuests,
		OccupancyPct:  pct,
		AvgDiningTime: avgDiningTimeMinutes,
	}

	a.mu.Lock()
	a.cached = stats
	a.mu.Unlock()
	metrics.SetOccupancyPct(float64(pct))
	return nil
}

// ChangeStatus transitions a table's status. Leaving reserved for any
// other state clears the linked reservation id unless a new one is
// supplied in the same call; an explicit id always sets. A table with no
// status record yet gets one created on the fly.
func (a *Aggregator) ChangeStatus(ctx context.Context, tableID string, newState models.TableState, reservationID string) error {
	if !newState.Valid() {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidTransition, newState)
	}

	current, err := a.registry.Status(ctx, tableID)
	if err != nil {
		return err
	}

	status := models.TableStatus{TableID: tableID, Status: newState, ReservationID: reservationID}
	if current != nil {
		if !CanTransition(current.Status, newState) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, newState)
		}
		if reservationID == "" {
			// The link carries over, except when leaving reserved: that
			// clears it unless a new id arrives in the same call.
			if current.Status == models.StateReserved && newState != models.StateReserved {
				status.ReservationID = ""
			} else {
				status.ReservationID = current.ReservationID
			}
		}
	}

	if err := a.registry.SetStatus(ctx, status); err != nil {
		return err
	}

	a.logger.Info().Str("table", tableID).Str("status", string(newState)).Msg("table status changed")
	metrics.IncStatusChanged(string(newState))
	a.bus.Publish(events.Event{Type: events.TableStatusChanged, TableID: tableID, BookingID: status.ReservationID})
	return nil
}
