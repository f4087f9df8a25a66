// Package storage provides the namespaced key-value store the whole
// data model persists through. Values are JSON-serialized; every key is
// prefixed with a per-restaurant namespace so independent datasets can
// share one backend.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Logical keys persisted by the application.
const (
	KeyRestaurantInfo = "restaurantInfo"
	KeyTables         = "tables"
	KeyBookings       = "bookings"
	KeyTableStatuses  = "tableStatuses"
	KeyInitialized    = "appInitialized"
)

var (
	// ErrBadImport is returned when an import blob fails to parse. The
	// existing dataset is left untouched in that case.
	ErrBadImport = errors.New("import blob is not valid JSON")
)

// Store is the namespaced key-value store contract. Load reports whether
// the key existed; a missing key is not an error.
type Store interface {
	Save(ctx context.Context, key string, value any) error
	Load(ctx context.Context, key string, into any) (bool, error)
	Has(ctx context.Context, key string) (bool, error)
	Remove(ctx context.Context, key string) error
	ListKeys(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// ExportAll serializes every key in the namespace as a pretty-printed
// JSON object keyed by the unprefixed key names.
func ExportAll(ctx context.Context, s Store) ([]byte, error) {
	keys, err := s.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	sort.Strings(keys)

	out := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		var raw json.RawMessage
		ok, err := s.Load(ctx, key, &raw)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", key, err)
		}
		if ok {
			out[key] = raw
		}
	}
	return json.MarshalIndent(out, "", "  ")
}

// ImportAll replaces the namespace contents with the given export blob.
// The blob is parsed before anything is cleared, so a malformed import
// fails without mutating state. A write failure partway through leaves a
// mixed dataset; callers treat the import as best-effort after the clear.
func ImportAll(ctx context.Context, s Store, blob []byte) error {
	var data map[string]json.RawMessage
	if err := json.Unmarshal(blob, &data); err != nil {
		return fmt.Errorf("%w: %v", ErrBadImport, err)
	}

	keys, err := s.ListKeys(ctx)
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}
	for _, key := range keys {
		if err := s.Remove(ctx, key); err != nil {
			return fmt.Errorf("clear %s: %w", key, err)
		}
	}

	for key, raw := range data {
		if err := s.Save(ctx, key, raw); err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
	}
	return nil
}

// marshalValue encodes a value for storage, passing through raw JSON
// untouched so import does not double-encode.
func marshalValue(value any) ([]byte, error) {
	switch v := value.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(value)
	}
}
