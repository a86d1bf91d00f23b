package postgres

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/codeguide/internal/codeguide/store"
)

type txStore struct {
	tx *sql.Tx
	kv *kvRepo
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{tx: tx, kv: &kvRepo{db: tx}}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // outer DB stays open

func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	return nil, store.ErrTxUnsupported
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return store.ErrTxUnsupported
}

func (t *txStore) Clear(ctx context.Context) error { return t.kv.Clear(ctx) }

func (t *txStore) Credentials() store.Credentials { return store.NewCredentials(t.kv) }
func (t *txStore) Sessions() store.Sessions       { return store.NewSessions(t.kv) }

func (t *txStore) ApplyMigrations() error { return nil } // apply before opening a tx
