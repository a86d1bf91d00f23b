package service_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/codeguide/internal/codeguide/domain"
	"github.com/aussiebroadwan/codeguide/internal/codeguide/service"
	"github.com/aussiebroadwan/codeguide/internal/codeguide/store"
	"github.com/aussiebroadwan/codeguide/internal/codeguide/store/drivers/memory"
	"github.com/aussiebroadwan/codeguide/internal/codeguide/store/drivers/sqlite"
	"github.com/aussiebroadwan/codeguide/pkg/cryptox"
	"github.com/aussiebroadwan/codeguide/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func newClock() *clock { return &clock{t: time.Now().UTC()} }

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newCredentialService(t *testing.T, st store.Store, ttl time.Duration, c *clock) *service.CredentialService {
	t.Helper()
	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA("session", pemKey)
	require.NoError(t, err)

	svc := &service.CredentialService{
		Store:      st,
		Signer:     signer,
		Verifier:   jwtx.NewVerifierEdDSA(signer.KID(), signer.PublicKey(), "codeguide-test"),
		Issuer:     "codeguide-test",
		SessionTTL: ttl,
	}
	if c != nil {
		svc.Now = c.Now
	}
	return svc
}

func newSQLiteStore(t *testing.T) store.Store {
	t.Helper()
	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// Both local drivers must behave the same behind the service.
func drivers(t *testing.T) map[string]func(*testing.T) store.Store {
	return map[string]func(*testing.T) store.Store{
		"memory": func(*testing.T) store.Store { return memory.NewStore() },
		"sqlite": newSQLiteStore,
	}
}

func TestRegister(t *testing.T) {
	for name, open := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := newCredentialService(t, open(t), 0, nil)

			u, err := svc.Register(ctx, " alice ", "Alice@Example.com", "hunter2", "hunter2")
			require.NoError(t, err)
			require.NotEmpty(t, u.ID)
			require.Equal(t, "alice", u.Username)
			require.Equal(t, "alice@example.com", u.Email)

			creds, err := svc.Store.Credentials().ListCredentials(ctx)
			require.NoError(t, err)
			require.Len(t, creds, 1)
			require.NoError(t, cryptox.VerifyPassword("hunter2", creds[0].PasswordHash))
			require.Contains(t, creds[0].PasswordHash, creds[0].Salt, "salt is embedded in the PHC string")

			_, sessErr := svc.CurrentSession(ctx)
			require.ErrorIs(t, sessErr, service.ErrNoSession, "registering does not log in")
		})
	}
}

func TestRegisterRejects(t *testing.T) {
	ctx := context.Background()
	svc := newCredentialService(t, memory.NewStore(), 0, nil)
	_, err := svc.Register(ctx, "alice", "alice@example.com", "pw", "pw")
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		email    string
		password string
		confirm  string
		want     error
	}{
		{"empty username", "  ", "x@example.com", "pw", "pw", service.ErrInvalidRegistration},
		{"empty email", "bob", "", "pw", "pw", service.ErrInvalidRegistration},
		{"empty password", "bob", "bob@example.com", "", "", service.ErrInvalidRegistration},
		{"mismatch", "bob", "bob@example.com", "pw", "pw2", service.ErrPasswordMismatch},
		{"duplicate email", "bob", "ALICE@example.com", "pw", "pw", service.ErrDuplicateUser},
		{"duplicate username", "Alice", "other@example.com", "pw", "pw", service.ErrDuplicateUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.username, tt.email, tt.password, tt.confirm)
			require.ErrorIs(t, err, tt.want)
		})
	}

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1, "failed registrations create no record")
}

func TestLogin(t *testing.T) {
	for name, open := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := newCredentialService(t, open(t), 0, nil)
			registered, err := svc.Register(ctx, "alice", "alice@example.com", "hunter2", "hunter2")
			require.NoError(t, err)

			u, sess, err := svc.Login(ctx, "ALICE@example.com", "hunter2")
			require.NoError(t, err)
			require.Equal(t, registered, u)
			require.Equal(t, u.ID, sess.UserID)
			require.Nil(t, sess.ExpiresAt, "sessions never expire by default")

			current, err := svc.CurrentSession(ctx)
			require.NoError(t, err)
			require.Equal(t, sess.Token, current.Token)

			got, err := svc.ValidateToken(ctx, sess.Token)
			require.NoError(t, err)
			require.Equal(t, u.ID, got.UserID)

			cu, _, err := svc.CurrentUser(ctx)
			require.NoError(t, err)
			require.Equal(t, u, cu)
		})
	}
}

func TestLoginFailuresLeaveSessionUntouched(t *testing.T) {
	ctx := context.Background()
	svc := newCredentialService(t, memory.NewStore(), 0, nil)
	_, err := svc.Register(ctx, "alice", "alice@example.com", "hunter2", "hunter2")
	require.NoError(t, err)
	_, before, err := svc.Login(ctx, "alice@example.com", "hunter2")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "alice@example.com", "wrong")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "hunter2")
	require.ErrorIs(t, err, service.ErrUserNotFound)

	after, err := svc.CurrentSession(ctx)
	require.NoError(t, err)
	require.Equal(t, before.Token, after.Token)
}

func TestLoginReplacesSession(t *testing.T) {
	ctx := context.Background()
	svc := newCredentialService(t, memory.NewStore(), 0, nil)
	_, err := svc.Register(ctx, "alice", "alice@example.com", "a", "a")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "bob", "bob@example.com", "b", "b")
	require.NoError(t, err)

	_, first, err := svc.Login(ctx, "alice@example.com", "a")
	require.NoError(t, err)
	_, second, err := svc.Login(ctx, "bob@example.com", "b")
	require.NoError(t, err)

	_, err = svc.ValidateToken(ctx, first.Token)
	require.ErrorIs(t, err, service.ErrNoSession, "only the current session's token is accepted")

	got, err := svc.ValidateToken(ctx, second.Token)
	require.NoError(t, err)
	require.Equal(t, second.UserID, got.UserID)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	svc := newCredentialService(t, memory.NewStore(), 0, nil)
	require.NoError(t, svc.Logout(ctx), "logout without a session is fine")

	_, err := svc.Register(ctx, "alice", "alice@example.com", "a", "a")
	require.NoError(t, err)
	_, sess, err := svc.Login(ctx, "alice@example.com", "a")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx))
	_, err = svc.CurrentSession(ctx)
	require.ErrorIs(t, err, service.ErrNoSession)
	_, err = svc.ValidateToken(ctx, sess.Token)
	require.ErrorIs(t, err, service.ErrNoSession)
}

func TestSessionTTL(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	svc := newCredentialService(t, memory.NewStore(), time.Hour, c)
	_, err := svc.Register(ctx, "alice", "alice@example.com", "a", "a")
	require.NoError(t, err)
	_, sess, err := svc.Login(ctx, "alice@example.com", "a")
	require.NoError(t, err)
	require.NotNil(t, sess.ExpiresAt)

	c.Advance(30 * time.Minute)
	expired, err := svc.ExpireSession(ctx)
	require.NoError(t, err)
	require.False(t, expired)

	c.Advance(31 * time.Minute)
	_, err = svc.CurrentSession(ctx)
	require.ErrorIs(t, err, service.ErrNoSession)

	_, err = svc.Store.Sessions().GetCurrentSession(ctx)
	require.ErrorIs(t, err, store.ErrNotFound, "expired session is deleted")
}

func TestInfiniteSessionIgnoresClock(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	svc := newCredentialService(t, memory.NewStore(), 0, c)
	_, err := svc.Register(ctx, "alice", "alice@example.com", "a", "a")
	require.NoError(t, err)
	_, _, err = svc.Login(ctx, "alice@example.com", "a")
	require.NoError(t, err)

	c.Advance(10 * 365 * 24 * time.Hour)
	_, err = svc.CurrentSession(ctx)
	require.NoError(t, err)

	expired, err := svc.ExpireSession(ctx)
	require.NoError(t, err)
	require.False(t, expired)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := newCredentialService(t, memory.NewStore(), 0, nil)
	_, err := svc.ValidateToken(context.Background(), "not-a-token")
	require.ErrorIs(t, err, service.ErrNoSession)
}

func TestClearAllData(t *testing.T) {
	for name, open := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := newCredentialService(t, open(t), 0, nil)
			_, err := svc.Register(ctx, "alice", "alice@example.com", "a", "a")
			require.NoError(t, err)
			_, _, err = svc.Login(ctx, "alice@example.com", "a")
			require.NoError(t, err)

			require.NoError(t, svc.ClearAllData(ctx))

			_, err = svc.CurrentSession(ctx)
			require.ErrorIs(t, err, service.ErrNoSession)
			users, err := svc.ListUsers(ctx)
			require.NoError(t, err)
			require.Empty(t, users)
		})
	}
}

// interleavedStore runs hook once, right after the first read of the current
// session, whether that read happens inside a transaction or not.
type interleavedStore struct {
	*memory.Store
	once sync.Once
	hook func()
}

func (s *interleavedStore) Sessions() store.Sessions {
	return interleavedSessions{Sessions: s.Store.Sessions(), s: s}
}

func (s *interleavedStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		return fn(interleavedTx{storeTx: tx, s: s})
	})
}

// storeTx lets interleavedTx embed store.Tx without the field name shadowing
// the promoted Tx method.
type storeTx = store.Tx

type interleavedTx struct {
	storeTx
	s *interleavedStore
}

func (t interleavedTx) Sessions() store.Sessions {
	return interleavedSessions{Sessions: t.storeTx.Sessions(), s: t.s}
}

type interleavedSessions struct {
	store.Sessions
	s *interleavedStore
}

func (r interleavedSessions) GetCurrentSession(ctx context.Context) (domain.Session, error) {
	sess, err := r.Sessions.GetCurrentSession(ctx)
	if r.s.hook != nil {
		r.s.once.Do(r.s.hook)
	}
	return sess, err
}

func TestExpireSessionKeepsConcurrentLogin(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	st := &interleavedStore{Store: memory.NewStore()}
	svc := newCredentialService(t, st, time.Minute, c)

	_, err := svc.Register(ctx, "alice", "alice@example.com", "a", "a")
	require.NoError(t, err)
	_, _, err = svc.Login(ctx, "alice@example.com", "a")
	require.NoError(t, err)

	var fresh domain.Session
	loginDone := make(chan error, 1)

	c.Advance(2 * time.Minute)
	st.hook = func() {
		go func() {
			var err error
			_, fresh, err = svc.Login(ctx, "alice@example.com", "a")
			loginDone <- err
		}()
		// Give the login every chance to land before the sweep deletes.
		select {
		case err := <-loginDone:
			loginDone <- err
		case <-time.After(50 * time.Millisecond):
		}
	}

	expired, err := svc.ExpireSession(ctx)
	require.NoError(t, err)
	require.True(t, expired, "the session read by the sweep was past its TTL")
	require.NoError(t, <-loginDone)

	current, err := svc.CurrentSession(ctx)
	require.NoError(t, err, "the login that raced the sweep survives")
	require.Equal(t, fresh.Token, current.Token)
}

func TestLoginRejectsSaltThatDisagreesWithHash(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	svc := newCredentialService(t, st, 0, nil)
	_, err := svc.Register(ctx, "alice", "alice@example.com", "pw", "pw")
	require.NoError(t, err)

	creds, err := st.Credentials().ListCredentials(ctx)
	require.NoError(t, err)
	creds[0].Salt = "c29tZXRoaW5nZWxzZQ"
	raw, err := json.Marshal(creds)
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, store.KeyUsers, raw))

	_, _, err = svc.Login(ctx, "alice@example.com", "pw")
	require.ErrorIs(t, err, cryptox.ErrInvalidHash)
	_, err = svc.CurrentSession(ctx)
	require.ErrorIs(t, err, service.ErrNoSession)
}
