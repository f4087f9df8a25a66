package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// SQLiteStore persists namespaced key-value pairs in a single sqlite
// table: one durable row per logical key, JSON text values.
type SQLiteStore struct {
	db     *sql.DB
	prefix string
	logger *zerolog.Logger
}

// NewSQLiteStore opens (or creates) the database at path and prepares the
// kv table. The prefix namespaces every key written through this store.
func NewSQLiteStore(path, prefix string, logger *zerolog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, ":memory:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS kv_store (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}

	logger.Info().Str("path", path).Str("prefix", prefix).Msg("sqlite store initialized")
	return &SQLiteStore{db: db, prefix: prefix, logger: logger}, nil
}

// WithPrefix returns a view of the same database under another namespace.
func (s *SQLiteStore) WithPrefix(prefix string) *SQLiteStore {
	return &SQLiteStore{db: s.db, prefix: prefix, logger: s.logger}
}

// Save writes a JSON-serialized value under the namespaced key.
func (s *SQLiteStore) Save(ctx context.Context, key string, value any) error {
	data, err := marshalValue(value)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("error saving data")
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)`,
		s.prefix+key, string(data), time.Now(),
	)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("error saving data")
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Load reads the value stored under the namespaced key into the target.
// Returns false when the key does not exist.
func (s *SQLiteStore) Load(ctx context.Context, key string, into any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_store WHERE key = ?`, s.prefix+key,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("error retrieving data")
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), into); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Has reports whether the namespaced key exists.
func (s *SQLiteStore) Has(ctx context.Context, key string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM kv_store WHERE key = ?`, s.prefix+key,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("has %s: %w", key, err)
	}
	return count > 0, nil
}

// Remove deletes the namespaced key. Removing a missing key is a no-op.
func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_store WHERE key = ?`, s.prefix+key,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("error removing data")
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// ListKeys returns every key in this namespace with the prefix stripped.
func (s *SQLiteStore) ListKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv_store WHERE key LIKE ? ESCAPE '\' ORDER BY key`,
		escapeLike(s.prefix)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, strings.TrimPrefix(key, s.prefix))
	}
	return keys, rows.Err()
}

// Ping verifies the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// escapeLike neutralizes LIKE wildcards in the prefix. Prefixes are plain
// identifiers in practice, but "_" is common and is a LIKE wildcard.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
