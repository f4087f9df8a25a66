package storage

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
)

// memoryData is the map and its lock, shared by every prefix view.
type memoryData struct {
	mu   sync.RWMutex
	data map[string]string
}

// MemoryStore is a map-backed Store. It backs tests and can serve as a
// last-resort failover target when no durable backend is reachable.
type MemoryStore struct {
	shared *memoryData
	prefix string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(prefix string) *MemoryStore {
	return &MemoryStore{shared: &memoryData{data: make(map[string]string)}, prefix: prefix}
}

// WithPrefix returns a view of the same map under another namespace.
// Views share one lock, so they are safe to use concurrently.
func (s *MemoryStore) WithPrefix(prefix string) *MemoryStore {
	return &MemoryStore{shared: s.shared, prefix: prefix}
}

func (s *MemoryStore) Save(_ context.Context, key string, value any) error {
	data, err := marshalValue(value)
	if err != nil {
		return err
	}
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()
	s.shared.data[s.prefix+key] = string(data)
	return nil
}

func (s *MemoryStore) Load(_ context.Context, key string, into any) (bool, error) {
	s.shared.mu.RLock()
	raw, ok := s.shared.data[s.prefix+key]
	s.shared.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), into); err != nil {
		return false, err
	}
	return true, nil
}

func (s *MemoryStore) Has(_ context.Context, key string) (bool, error) {
	s.shared.mu.RLock()
	defer s.shared.mu.RUnlock()
	_, ok := s.shared.data[s.prefix+key]
	return ok, nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()
	delete(s.shared.data, s.prefix+key)
	return nil
}

func (s *MemoryStore) ListKeys(_ context.Context) ([]string, error) {
	s.shared.mu.RLock()
	defer s.shared.mu.RUnlock()
	var keys []string
	for key := range s.shared.data {
		if strings.HasPrefix(key, s.prefix) {
			keys = append(keys, strings.TrimPrefix(key, s.prefix))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
