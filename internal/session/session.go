// Package session tracks the session-scoped values that gate the active
// storage namespace: the login flag, the current user and the selected
// restaurant. Sessions live in memory only and end with the process.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one staff login. A restaurant must be selected before the
// namespaced dataset can be reached.
type Session struct {
	Token        string
	User         string
	RestaurantID string
	StartedAt    time.Time
	UpdatedAt    time.Time
	mu           sync.Mutex
}

// SelectRestaurant binds the session to a restaurant dataset.
func (s *Session) SelectRestaurant(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RestaurantID = id
	s.UpdatedAt = time.Now()
}

// Restaurant returns the selected restaurant id, empty when none.
func (s *Session) Restaurant() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.RestaurantID
}

// IsExpired checks if the session has expired.
func (s *Session) IsExpired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.UpdatedAt) > timeout
}

// Prefix returns the storage namespace for the session's restaurant.
// The base prefix applies when no restaurant is selected.
func (s *Session) Prefix(base string) string {
	id := s.Restaurant()
	if id == "" {
		return base
	}
	return strings.TrimSuffix(base, "_") + "_" + id + "_"
}

// Store manages login sessions keyed by opaque uuid tokens.
type Store struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	timeout  time.Duration
}

// NewStore creates a session store with the given idle timeout.
func NewStore(timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 12 * time.Hour
	}
	return &Store{
		sessions: make(map[string]*Session),
		timeout:  timeout,
	}
}

// Login creates a session for a user and returns it.
func (st *Store) Login(user string) *Session {
	now := time.Now()
	session := &Session{
		Token:     uuid.NewString(),
		User:      user,
		StartedAt: now,
		UpdatedAt: now,
	}

	st.mu.Lock()
	st.sessions[session.Token] = session
	st.mu.Unlock()
	return session
}

// Get returns the session for a token, nil when unknown or expired.
func (st *Store) Get(token string) *Session {
	st.mu.RLock()
	session := st.sessions[token]
	st.mu.RUnlock()

	if session == nil || session.IsExpired(st.timeout) {
		return nil
	}
	return session
}

// Logout removes a session.
func (st *Store) Logout(token string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, token)
}

// Cleanup removes expired sessions and returns how many were dropped.
func (st *Store) Cleanup() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for token, session := range st.sessions {
		if session.IsExpired(st.timeout) {
			delete(st.sessions, token)
			removed++
		}
	}
	return removed
}
