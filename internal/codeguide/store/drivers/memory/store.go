// Package memory is a map-backed local storage driver for tests and
// throwaway instances. Nothing survives a restart.
package memory

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/aussiebroadwan/codeguide/internal/codeguide/store"
)

var ErrClosed = errors.New("memory: store closed")

type Store struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool

	// txMu serialises transactions; only one overlay is open at a time.
	txMu sync.Mutex
}

func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Credentials() store.Credentials { return store.NewCredentials(s) }
func (s *Store) Sessions() store.Sessions       { return store.NewSessions(s) }

// KV exposes the raw local storage map.
func (s *Store) KV() store.KV { return s }

func (s *Store) ApplyMigrations() error { return nil }

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return ctx.Err()
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return slices.Clone(v), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = slices.Clone(value)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.data)
	return nil
}

func (s *Store) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

// Tx blocks until any other open transaction finishes.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}
	s.txMu.Lock()
	return newTx(s), nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
