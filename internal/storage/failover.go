package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// FailoverStore reads and writes through a primary store and falls back to
// a secondary when the primary errors. After a failure the primary is
// considered down and skipped until the recovery window elapses, at which
// point the next call probes it again.
type FailoverStore struct {
	primary  Store
	fallback Store
	logger   *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
	window    time.Duration
}

// NewFailoverStore composes a primary and fallback store. The recovery
// probe window defaults to one minute.
func NewFailoverStore(primary, fallback Store, logger *zerolog.Logger) *FailoverStore {
	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		window:   time.Minute,
	}
}

// usePrimary reports whether the next call should hit the primary.
func (f *FailoverStore) usePrimary() bool {
	if !f.isDown.Load() {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if time.Since(f.lastCheck) > f.window {
		f.lastCheck = time.Now()
		return true
	}
	return false
}

func (f *FailoverStore) markDown(err error) {
	if f.isDown.CompareAndSwap(false, true) {
		f.logger.Warn().Err(err).Msg("primary store down, using fallback")
	}
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
}

func (f *FailoverStore) markUp() {
	if f.isDown.CompareAndSwap(true, false) {
		f.logger.Info().Msg("primary store recovered")
	}
}

// Save writes to the active store. Writes that land on the fallback are
// not replayed to the primary; recovery reconciliation is out of scope.
func (f *FailoverStore) Save(ctx context.Context, key string, value any) error {
	if f.usePrimary() {
		if err := f.primary.Save(ctx, key, value); err == nil {
			f.markUp()
			return nil
		} else {
			f.markDown(err)
		}
	}
	return f.fallback.Save(ctx, key, value)
}

// Load reads from the active store.
func (f *FailoverStore) Load(ctx context.Context, key string, into any) (bool, error) {
	if f.usePrimary() {
		ok, err := f.primary.Load(ctx, key, into)
		if err == nil {
			f.markUp()
			return ok, nil
		}
		f.markDown(err)
	}
	return f.fallback.Load(ctx, key, into)
}

// Has checks the active store.
func (f *FailoverStore) Has(ctx context.Context, key string) (bool, error) {
	if f.usePrimary() {
		ok, err := f.primary.Has(ctx, key)
		if err == nil {
			f.markUp()
			return ok, nil
		}
		f.markDown(err)
	}
	return f.fallback.Has(ctx, key)
}

// Remove deletes from the active store.
func (f *FailoverStore) Remove(ctx context.Context, key string) error {
	if f.usePrimary() {
		if err := f.primary.Remove(ctx, key); err == nil {
			f.markUp()
			return nil
		} else {
			f.markDown(err)
		}
	}
	return f.fallback.Remove(ctx, key)
}

// ListKeys lists from the active store.
func (f *FailoverStore) ListKeys(ctx context.Context) ([]string, error) {
	if f.usePrimary() {
		keys, err := f.primary.ListKeys(ctx)
		if err == nil {
			f.markUp()
			return keys, nil
		}
		f.markDown(err)
	}
	return f.fallback.ListKeys(ctx)
}

// Ping probes the primary, then the fallback.
func (f *FailoverStore) Ping(ctx context.Context) error {
	if err := f.primary.Ping(ctx); err == nil {
		return nil
	}
	return f.fallback.Ping(ctx)
}

// Close closes both stores.
func (f *FailoverStore) Close() error {
	err := f.primary.Close()
	if ferr := f.fallback.Close(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}
