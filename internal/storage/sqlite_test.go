package storage

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T, prefix string) *SQLiteStore {
	t.Helper()
	logger := zerolog.New(io.Discard)
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), prefix, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreCRUD(t *testing.T) {
	store := newTestSQLiteStore(t, "tableMgr_")
	ctx := context.Background()

	t.Run("LoadMissing", func(t *testing.T) {
		var out string
		ok, err := store.Load(ctx, "nope", &out)
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		type record struct {
			Name string `json:"name"`
			N    int    `json:"n"`
		}
		require.NoError(t, store.Save(ctx, "rec", record{Name: "x", N: 7}))

		var out record
		ok, err := store.Load(ctx, "rec", &out)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, record{Name: "x", N: 7}, out)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "v", 1))
		require.NoError(t, store.Save(ctx, "v", 2))

		var out int
		_, err := store.Load(ctx, "v", &out)
		require.NoError(t, err)
		assert.Equal(t, 2, out)
	})

	t.Run("HasAndRemove", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "gone", "soon"))

		ok, err := store.Has(ctx, "gone")
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, store.Remove(ctx, "gone"))
		ok, err = store.Has(ctx, "gone")
		require.NoError(t, err)
		assert.False(t, ok)

		// Removing a missing key is a no-op.
		assert.NoError(t, store.Remove(ctx, "gone"))
	})
}

func TestSQLiteStoreNamespaceIsolation(t *testing.T) {
	store := newTestSQLiteStore(t, "tableMgr_rest1_")
	other := store.WithPrefix("tableMgr_rest2_")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "tables", []string{"T1"}))
	require.NoError(t, other.Save(ctx, "tables", []string{"T9"}))
	require.NoError(t, other.Save(ctx, "bookings", []string{}))

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tables"}, keys)

	otherKeys, err := other.ListKeys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tables", "bookings"}, otherKeys)

	var tables []string
	_, err = store.Load(ctx, "tables", &tables)
	require.NoError(t, err)
	assert.Equal(t, []string{"T1"}, tables)
}

func TestSQLiteStoreListKeysUnderscorePrefix(t *testing.T) {
	// "_" is a LIKE wildcard; the prefix "tableMgr_" must not match keys
	// under "tableMgrX".
	store := newTestSQLiteStore(t, "tableMgr_")
	stray := store.WithPrefix("tableMgrX")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a", 1))
	require.NoError(t, stray.Save(ctx, "b", 2))

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, keys)
}

func TestSQLiteStorePing(t *testing.T) {
	store := newTestSQLiteStore(t, "")
	assert.NoError(t, store.Ping(context.Background()))
}
