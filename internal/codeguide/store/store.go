package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/codeguide/internal/codeguide/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	ErrTxUnsupported = errors.New("store: nested transactions are not supported")
)

// Local storage keys. The layout matches what the browser front-end keeps so an
// export of one can be loaded into the other.
const (
	KeyUsers     = "codeguide.users"
	KeySession   = "codeguide.session"
	KeyAuthToken = "codeguide.auth_token"
)

// Store is the root data access interface implemented by each driver. Repos are
// handed out as methods so a Tx-scoped store exposes the same surface.
type Store interface {
	Credentials() Credentials
	Sessions() Sessions

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil.
	// Only the tx handed to fn may be used inside it.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Clear wipes every key in local storage.
	Clear(ctx context.Context) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional Store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Credentials interface {
	// ListCredentials returns records in registration order.
	ListCredentials(ctx context.Context) ([]domain.Credential, error)

	GetCredentialByID(ctx context.Context, id string) (domain.Credential, error)

	// GetCredentialByEmail matches case-insensitively.
	GetCredentialByEmail(ctx context.Context, email string) (domain.Credential, error)

	// GetCredentialByUsername matches case-insensitively.
	GetCredentialByUsername(ctx context.Context, username string) (domain.Credential, error)

	// CreateCredential appends c. Duplicate id, username or email gives ErrAlreadyExists.
	CreateCredential(ctx context.Context, c domain.Credential) error
}

type Sessions interface {
	// GetCurrentSession returns ErrNotFound when nobody is logged in.
	GetCurrentSession(ctx context.Context) (domain.Session, error)

	// PutSession replaces the current session and mirrors its token.
	PutSession(ctx context.Context, s domain.Session) error

	// GetAuthToken returns the mirrored token, or ErrNotFound.
	GetAuthToken(ctx context.Context) (string, error)

	// DeleteSession removes the session and its mirrored token. Absent is not an error.
	DeleteSession(ctx context.Context) error
}

// KV is the raw local storage a driver provides.
type KV interface {
	// Get returns ErrNotFound for a missing key.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Keys(ctx context.Context) ([]string, error)
}
