// Package session holds the authenticated identity and bearer
// credential. State survives restarts in a small local key/value table,
// mirroring the fixed keys the web client kept in browser storage.
package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	_ "github.com/mattn/go-sqlite3"

	"streamfm/core/stream"
	"streamfm/logger"
	"streamfm/model"
)

// Fixed storage keys, carried over from the web client.
const (
	keyCurrentUser = "currentUser"
	keyAccessToken = "access_token"
)

// Store is the identity store. One instance exists per process.
type Store struct {
	mu    sync.Mutex
	db    *sql.DB
	user  *model.User
	token string

	currentS *stream.Subject[*model.User]
}

// Open opens (or creates) the local storage database at path and
// rehydrates the persisted identity. ":memory:" is accepted for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping session store: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS local_storage (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create local_storage table: %w", err)
	}

	s := &Store{
		db:       db,
		currentS: stream.NewWithValue[*model.User](nil),
	}
	s.rehydrate()
	return s, nil
}

// rehydrate loads the persisted identity. Corrupted or sentinel values
// ("undefined", "null") are treated as absence, never parsed.
func (s *Store) rehydrate() {
	if raw, ok := s.read(keyCurrentUser); ok {
		var user model.User
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			logger.Warn("discarding corrupted stored user", logger.ErrorField(err))
		} else {
			s.user = &user
		}
	}
	if raw, ok := s.read(keyAccessToken); ok {
		s.token = raw
	}
	if s.user != nil {
		s.currentS.Publish(s.user)
	}
}

// read returns a stored value, reporting absence for missing keys and
// sentinel literals.
func (s *Store) read(key string) (string, bool) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM local_storage WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		logger.Warn("failed to read session store key",
			logger.String("key", key), logger.ErrorField(err))
		return "", false
	}
	if value == "" || value == "undefined" || value == "null" {
		return "", false
	}
	return value, true
}

func (s *Store) write(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO local_storage (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	return nil
}

func (s *Store) delete(key string) {
	if _, err := s.db.Exec(`DELETE FROM local_storage WHERE key = ?`, key); err != nil {
		logger.Warn("failed to delete session store key",
			logger.String("key", key), logger.ErrorField(err))
	}
}

// Current is the current-user stream; nil means logged out.
func (s *Store) Current() *stream.Subject[*model.User] { return s.currentS }

// SetCurrentUser persists and publishes the authenticated user.
func (s *Store) SetCurrentUser(user *model.User) error {
	encoded, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()

	if err := s.write(keyCurrentUser, string(encoded)); err != nil {
		return err
	}
	s.currentS.Publish(user)
	return nil
}

// SetToken persists the bearer credential.
func (s *Store) SetToken(token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return s.write(keyAccessToken, token)
}

// CurrentUser returns the current user snapshot, nil when logged out.
func (s *Store) CurrentUser() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Token returns the bearer credential; satisfies client.TokenSource.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// IsAuthenticated reports whether a user is present. When the stored
// credential parses as a JWT its expiry claim is honored; opaque tokens
// count as valid since the backend is the real authority.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	user, token := s.user, s.token
	s.mu.Unlock()

	if user == nil {
		return false
	}
	if token == "" {
		// The monolith deployment authenticates by stored user alone.
		return true
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return exp.After(time.Now())
}

// Logout clears the persisted identity and publishes the logged-out state.
func (s *Store) Logout() {
	s.mu.Lock()
	s.user = nil
	s.token = ""
	s.mu.Unlock()

	s.delete(keyCurrentUser)
	s.delete(keyAccessToken)
	s.currentS.Publish(nil)
}

// Close closes the backing database.
func (s *Store) Close() error {
	return s.db.Close()
}
