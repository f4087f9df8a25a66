package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore implements Store on top of Redis for deployments that already
// run one. Keys carry the same restaurant namespace prefix as the sqlite
// backend, so the two are interchangeable behind the failover store.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zerolog.Logger
}

// NewRedisStore wraps an existing client with a namespace prefix.
func NewRedisStore(client *redis.Client, prefix string, logger *zerolog.Logger) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

// WithPrefix returns a view of the same client under another namespace.
func (s *RedisStore) WithPrefix(prefix string) *RedisStore {
	return &RedisStore{client: s.client, prefix: prefix, logger: s.logger}
}

// Save writes a JSON-serialized value under the namespaced key.
func (s *RedisStore) Save(ctx context.Context, key string, value any) error {
	data, err := marshalValue(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.prefix+key, data, 0).Err(); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("error saving data")
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Load reads the value stored under the namespaced key into the target.
func (s *RedisStore) Load(ctx context.Context, key string, into any) (bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("error retrieving data")
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Has reports whether the namespaced key exists.
func (s *RedisStore) Has(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("has %s: %w", key, err)
	}
	return n > 0, nil
}

// Remove deletes the namespaced key.
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("error removing data")
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// ListKeys scans the namespace and returns keys with the prefix stripped.
func (s *RedisStore) ListKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

// Ping verifies the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
