// Package postgres stores local storage in a hosted Postgres (e.g. the
// Supabase database) so several gateway replicas share one credential store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aussiebroadwan/codeguide/internal/codeguide/store"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// txLockKey is the advisory lock every write transaction takes so the
// read-modify-write of the user list is serialised across replicas.
const txLockKey int64 = 0x636f6465677569 // "codegui"

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
	kv *kvRepo
}

// NewStore opens dsn with the pgx database/sql driver.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	return NewStoreFromDB(db), nil
}

// NewStoreFromDB wraps an already open handle.
func NewStoreFromDB(db *sql.DB) *Store {
	return &Store{db: db, kv: &kvRepo{db: db}}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// KV exposes the raw local storage table.
func (s *Store) KV() store.KV { return s.kv }

func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, txLockKey); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("postgres: advisory lock: %w", err)
	}
	return newTx(tx), nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Clear(ctx context.Context) error { return s.kv.Clear(ctx) }

func (s *Store) Credentials() store.Credentials { return store.NewCredentials(s.kv) }
func (s *Store) Sessions() store.Sessions       { return store.NewSessions(s.kv) }
