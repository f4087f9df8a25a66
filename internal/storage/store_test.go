package storage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := NewMemoryStore("tableMgr_")

	require.NoError(t, src.Save(ctx, "restaurantInfo", map[string]any{"name": "Chez Test"}))
	require.NoError(t, src.Save(ctx, "tables", []map[string]any{{"id": "T1"}}))
	require.NoError(t, src.Save(ctx, "appInitialized", true))

	blob, err := ExportAll(ctx, src)
	require.NoError(t, err)

	// Keys in the export are unprefixed.
	var exported map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(blob, &exported))
	assert.Contains(t, exported, "restaurantInfo")
	assert.Contains(t, exported, "tables")
	assert.NotContains(t, exported, "tableMgr_tables")

	dst := NewMemoryStore("tableMgr_")
	require.NoError(t, dst.Save(ctx, "stale", "old"))
	require.NoError(t, ImportAll(ctx, dst, blob))

	keys, err := dst.ListKeys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"restaurantInfo", "tables", "appInitialized"}, keys)

	var info map[string]any
	ok, err := dst.Load(ctx, "restaurantInfo", &info)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Chez Test", info["name"])
}

func TestImportAllRejectsBadBlob(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("")
	require.NoError(t, store.Save(ctx, "keep", "me"))

	err := ImportAll(ctx, store, []byte("{not json"))
	assert.ErrorIs(t, err, ErrBadImport)

	// A failed parse must not clear the existing dataset.
	ok, err := store.Has(ctx, "keep")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestImportAllPreservesRawValues(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("")

	blob := []byte(`{"tables": [{"id": "T1", "capacity": 4}]}`)
	require.NoError(t, ImportAll(ctx, store, blob))

	var tables []struct {
		ID       string `json:"id"`
		Capacity int    `json:"capacity"`
	}
	ok, err := store.Load(ctx, "tables", &tables)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, tables, 1)
	assert.Equal(t, "T1", tables[0].ID)
	assert.Equal(t, 4, tables[0].Capacity)
}
