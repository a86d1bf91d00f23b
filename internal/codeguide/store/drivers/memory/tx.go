package memory

import (
	"context"
	"database/sql"
	"slices"
	"sync"

	"github.com/aussiebroadwan/codeguide/internal/codeguide/store"
)

// txStore buffers writes in an overlay and applies them on Commit.
type txStore struct {
	base *Store

	mu      sync.Mutex
	writes  map[string][]byte
	deleted map[string]struct{}
	cleared bool

	done sync.Once
	err  error
}

func newTx(base *Store) *txStore {
	return &txStore{
		base:    base,
		writes:  make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

func (t *txStore) Get(ctx context.Context, key string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.writes[key]; ok {
		return slices.Clone(v), nil
	}
	if _, ok := t.deleted[key]; ok || t.cleared {
		return nil, store.ErrNotFound
	}
	return t.base.Get(ctx, key)
}

func (t *txStore) Set(_ context.Context, key string, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.deleted, key)
	t.writes[key] = slices.Clone(value)
	return nil
}

func (t *txStore) Delete(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.writes, key)
	t.deleted[key] = struct{}{}
	return nil
}

func (t *txStore) Clear(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.writes)
	clear(t.deleted)
	t.cleared = true
	return nil
}

func (t *txStore) Keys(ctx context.Context) ([]string, error) {
	var base []string
	t.mu.Lock()
	cleared := t.cleared
	t.mu.Unlock()
	if !cleared {
		var err error
		if base, err = t.base.Keys(ctx); err != nil {
			return nil, err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]string, 0, len(base)+len(t.writes))
	for _, k := range base {
		if _, gone := t.deleted[k]; !gone {
			keys = append(keys, k)
		}
	}
	for k := range t.writes {
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (t *txStore) Commit() error {
	committed := false
	t.done.Do(func() {
		defer t.base.txMu.Unlock()
		committed = true

		t.base.mu.Lock()
		defer t.base.mu.Unlock()
		if t.base.closed {
			t.err = ErrClosed
			return
		}
		if t.cleared {
			clear(t.base.data)
		}
		for k := range t.deleted {
			delete(t.base.data, k)
		}
		for k, v := range t.writes {
			t.base.data[k] = v
		}
	})
	if !committed {
		return sql.ErrTxDone
	}
	return t.err
}

// Rollback after Commit is a no-op returning sql.ErrTxDone, matching database/sql.
func (t *txStore) Rollback() error {
	rolledBack := false
	t.done.Do(func() {
		rolledBack = true
		t.base.txMu.Unlock()
	})
	if !rolledBack {
		return sql.ErrTxDone
	}
	return nil
}

func (t *txStore) Credentials() store.Credentials { return store.NewCredentials(t) }
func (t *txStore) Sessions() store.Sessions       { return store.NewSessions(t) }

func (t *txStore) ApplyMigrations() error         { return nil }
func (t *txStore) Close() error                   { return nil }
func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	return nil, store.ErrTxUnsupported
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return store.ErrTxUnsupported
}
