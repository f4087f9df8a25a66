package settings

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablemgr/internal/events"
	"tablemgr/internal/models"
	"tablemgr/internal/storage"
)

func newTestService(t *testing.T) (*Service, storage.Store) {
	t.Helper()
	store := storage.NewMemoryStore("tableMgr_")
	logger := zerolog.New(io.Discard)
	svc := NewService(store, events.NewBus(), models.DefaultRestaurantInfo(), &logger)
	svc.SetClock(func() time.Time {
		return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	})
	return svc, store
}

func TestInfoFallsBackToDefaults(t *testing.T) {
	svc, _ := newTestService(t)

	info, err := svc.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Restaurant Name", info.Name)
	assert.Equal(t, "10:00", info.OpeningTime)
	assert.Equal(t, "22:00", info.ClosingTime)
	assert.Equal(t, 90, info.ReservationDuration)
}

func TestSaveInfoDefaultsBlankFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	saved, err := svc.SaveInfo(ctx, models.RestaurantInfo{Name: "Chez Test"})
	require.NoError(t, err)
	assert.Equal(t, "Chez Test", saved.Name)
	assert.Equal(t, "10:00", saved.OpeningTime)
	assert.Equal(t, 90, saved.ReservationDuration)

	info, err := svc.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, info)
}

func TestSeed(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Seed(ctx))

	var tables []models.Table
	ok, err := store.Load(ctx, storage.KeyTables, &tables)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, tables, 3)
	assert.Equal(t, "T1", tables[0].ID)
	assert.Equal(t, models.ShapeRound, tables[0].Shape)
	assert.True(t, tables[2].IsVip)

	var bookings []models.Booking
	_, err = store.Load(ctx, storage.KeyBookings, &bookings)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	// Demo bookings land on the seeding day.
	assert.Equal(t, "2026-09-01", bookings[0].Date)
	assert.Equal(t, "18:00", bookings[0].Time)
	assert.Equal(t, "19:30", bookings[1].Time)

	var statuses []models.TableStatus
	_, err = store.Load(ctx, storage.KeyTableStatuses, &statuses)
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	assert.Equal(t, models.StateReserved, statuses[0].Status)
	assert.Equal(t, "B1", statuses[0].ReservationID)

	t.Run("Idempotent", func(t *testing.T) {
		// Wipe the tables but keep the init flag; a second seed must not
		// restore them.
		require.NoError(t, store.Save(ctx, storage.KeyTables, []models.Table{}))
		require.NoError(t, svc.Seed(ctx))

		var tables []models.Table
		_, err := store.Load(ctx, storage.KeyTables, &tables)
		require.NoError(t, err)
		assert.Empty(t, tables)
	})
}

func TestImportBadBlobLeavesDataset(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Seed(ctx))

	err := svc.Import(ctx, []byte("not json at all"))
	assert.ErrorIs(t, err, storage.ErrBadImport)

	ok, err := store.Has(ctx, storage.KeyTables)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExportImportRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Seed(ctx))
	blob, err := svc.Export(ctx)
	require.NoError(t, err)

	other, otherStore := newTestService(t)
	require.NoError(t, other.Import(ctx, blob))

	var tables []models.Table
	ok, err := otherStore.Load(ctx, storage.KeyTables, &tables)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, tables, 3)

	// The init flag travels with the export, so the target will not
	// re-seed either.
	ok, err = otherStore.Has(ctx, storage.KeyInitialized)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReset(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Seed(ctx))
	require.NoError(t, svc.Reset(ctx))

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	// With the init flag gone, the next seed runs again.
	require.NoError(t, svc.Seed(ctx))
	ok, err := store.Has(ctx, storage.KeyTables)
	require.NoError(t, err)
	assert.True(t, ok)
}
