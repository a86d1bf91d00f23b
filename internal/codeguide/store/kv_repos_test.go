package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/codeguide/internal/codeguide/domain"
	"github.com/aussiebroadwan/codeguide/internal/codeguide/store"
	"github.com/aussiebroadwan/codeguide/internal/codeguide/store/drivers/memory"
	"github.com/stretchr/testify/require"
)

func cred(id, username, email string) domain.Credential {
	return domain.Credential{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: "$argon2id$...",
		Salt:         "c2FsdA",
		CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestCredentials(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewStore()
	repo := store.NewCredentials(kv)

	all, err := repo.ListCredentials(ctx)
	require.NoError(t, err)
	require.NotNil(t, all)
	require.Empty(t, all)

	require.NoError(t, repo.CreateCredential(ctx, cred("01A", "alice", "alice@example.com")))
	require.NoError(t, repo.CreateCredential(ctx, cred("01B", "bob", "bob@example.com")))

	tests := []struct {
		name string
		c    domain.Credential
	}{
		{"duplicate id", cred("01A", "carol", "carol@example.com")},
		{"duplicate email any case", cred("01C", "carol", "ALICE@example.com")},
		{"duplicate username any case", cred("01C", "Bob", "carol@example.com")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, repo.CreateCredential(ctx, tt.c), store.ErrAlreadyExists)
		})
	}

	all, err = repo.ListCredentials(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "01A", all[0].ID, "registration order is kept")

	got, err := repo.GetCredentialByUsername(ctx, "ALICE")
	require.NoError(t, err)
	require.Equal(t, "01A", got.ID)

	got, err = repo.GetCredentialByID(ctx, "01B")
	require.NoError(t, err)
	require.Equal(t, "bob@example.com", got.Email)

	_, err = repo.GetCredentialByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, kv.Clear(ctx))
	all, err = repo.ListCredentials(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestCredentialsLayout(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewStore()
	require.NoError(t, store.NewCredentials(kv).CreateCredential(ctx, cred("01A", "alice", "alice@example.com")))

	raw, err := kv.Get(ctx, store.KeyUsers)
	require.NoError(t, err)
	require.JSONEq(t, `[{
		"id":"01A","username":"alice","email":"alice@example.com",
		"password_hash":"$argon2id$...","salt":"c2FsdA",
		"created_at":"2026-01-02T03:04:05Z"
	}]`, string(raw))
}

func TestCorruptUserListIsAnError(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewStore()
	require.NoError(t, kv.Set(ctx, store.KeyUsers, []byte("not json")))

	_, err := store.NewCredentials(kv).ListCredentials(ctx)
	require.ErrorContains(t, err, store.KeyUsers)
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewStore()
	repo := store.NewSessions(kv)

	_, err := repo.GetCurrentSession(ctx)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, repo.DeleteSession(ctx), "deleting an absent session is fine")

	first := domain.Session{UserID: "01A", Token: "t1", IssuedAt: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, repo.PutSession(ctx, first))

	second := domain.Session{UserID: "01B", Token: "t2", IssuedAt: first.IssuedAt.Add(time.Minute)}
	require.NoError(t, repo.PutSession(ctx, second))

	got, err := repo.GetCurrentSession(ctx)
	require.NoError(t, err)
	require.Equal(t, second, got)

	tok, err := repo.GetAuthToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "t2", tok)

	require.NoError(t, repo.DeleteSession(ctx))
	_, err = repo.GetCurrentSession(ctx)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = repo.GetAuthToken(ctx)
	require.ErrorIs(t, err, store.ErrNotFound)
}
