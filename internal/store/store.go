// Package store provides storage backends for ClosetIQ.
//
// Conversation state is persisted as a single JSON blob under a fixed key, so
// the backends expose plain get/set/remove semantics. SQLite and PostgreSQL
// implementations are provided alongside an in-memory store for tests.
package store

import (
	"log/slog"
	"sync"
)

// Store is the durable key-value persistence used by the conversation store.
type Store interface {
	// SaveBlob stores value under key, replacing any previous value.
	SaveBlob(key, value string) error

	// GetBlob retrieves the value stored under key. The second return value
	// reports whether a value was present.
	GetBlob(key string) (string, bool, error)

	// DeleteBlob removes the value stored under key, if any.
	DeleteBlob(key string) error

	// Close releases any resources held by the store.
	Close() error
}

// InMemoryStore is a simple in-memory Store used in tests and when no
// database DSN is configured.
type InMemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]string
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{blobs: make(map[string]string)}
}

func (s *InMemoryStore) SaveBlob(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = value
	return nil
}

func (s *InMemoryStore) GetBlob(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.blobs[key]
	return value, ok, nil
}

func (s *InMemoryStore) DeleteBlob(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}

// NewStore creates a Store based on the provided options. A Postgres DSN
// selects the PostgreSQL store, any other non-empty DSN selects SQLite, and
// no DSN at all falls back to the in-memory store.
func NewStore(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.DSN == "" {
		slog.Debug("store.NewStore: no DSN configured, using in-memory store")
		return NewInMemoryStore(), nil
	}

	if DetectDSNType(cfg.DSN) == "postgres" {
		slog.Debug("store.NewStore: detected Postgres DSN")
		return NewPostgresStore(opts...)
	}

	slog.Debug("store.NewStore: detected SQLite DSN", "db_path", cfg.DSN)
	return NewSQLiteStore(opts...)
}
