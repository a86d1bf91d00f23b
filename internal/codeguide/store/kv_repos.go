package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/codeguide/internal/codeguide/domain"
)

// NewCredentials returns a Credentials repo that keeps every record as one
// JSON array under KeyUsers.
func NewCredentials(kv KV) Credentials { return &credentialsRepo{kv: kv} }

// NewSessions returns a Sessions repo over KeySession and KeyAuthToken.
func NewSessions(kv KV) Sessions { return &sessionsRepo{kv: kv} }

type credentialsRepo struct{ kv KV }

func (r *credentialsRepo) load(ctx context.Context) ([]domain.Credential, error) {
	raw, err := r.kv.Get(ctx, KeyUsers)
	if errors.Is(err, ErrNotFound) {
		return []domain.Credential{}, nil
	}
	if err != nil {
		return nil, err
	}

	var out []domain.Credential
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", KeyUsers, err)
	}
	if out == nil {
		out = []domain.Credential{}
	}
	return out, nil
}

func (r *credentialsRepo) ListCredentials(ctx context.Context) ([]domain.Credential, error) {
	return r.load(ctx)
}

func (r *credentialsRepo) find(ctx context.Context, match func(domain.Credential) bool) (domain.Credential, error) {
	all, err := r.load(ctx)
	if err != nil {
		return domain.Credential{}, err
	}
	for _, c := range all {
		if match(c) {
			return c, nil
		}
	}
	return domain.Credential{}, ErrNotFound
}

func (r *credentialsRepo) GetCredentialByID(ctx context.Context, id string) (domain.Credential, error) {
	return r.find(ctx, func(c domain.Credential) bool { return c.ID == id })
}

func (r *credentialsRepo) GetCredentialByEmail(ctx context.Context, email string) (domain.Credential, error) {
	return r.find(ctx, func(c domain.Credential) bool { return strings.EqualFold(c.Email, email) })
}

func (r *credentialsRepo) GetCredentialByUsername(ctx context.Context, username string) (domain.Credential, error) {
	return r.find(ctx, func(c domain.Credential) bool { return strings.EqualFold(c.Username, username) })
}

func (r *credentialsRepo) CreateCredential(ctx context.Context, c domain.Credential) error {
	all, err := r.load(ctx)
	if err != nil {
		return err
	}
	for _, existing := range all {
		if existing.ID == c.ID ||
			strings.EqualFold(existing.Email, c.Email) ||
			strings.EqualFold(existing.Username, c.Username) {
			return ErrAlreadyExists
		}
	}

	raw, err := json.Marshal(append(all, c))
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", KeyUsers, err)
	}
	return r.kv.Set(ctx, KeyUsers, raw)
}

type sessionsRepo struct{ kv KV }

func (r *sessionsRepo) GetCurrentSession(ctx context.Context) (domain.Session, error) {
	raw, err := r.kv.Get(ctx, KeySession)
	if err != nil {
		return domain.Session{}, err
	}

	var s domain.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.Session{}, fmt.Errorf("store: decode %s: %w", KeySession, err)
	}
	return s, nil
}

func (r *sessionsRepo) PutSession(ctx context.Context, s domain.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", KeySession, err)
	}
	if err := r.kv.Set(ctx, KeySession, raw); err != nil {
		return err
	}
	return r.kv.Set(ctx, KeyAuthToken, []byte(s.Token))
}

func (r *sessionsRepo) GetAuthToken(ctx context.Context) (string, error) {
	raw, err := r.kv.Get(ctx, KeyAuthToken)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (r *sessionsRepo) DeleteSession(ctx context.Context) error {
	if err := r.kv.Delete(ctx, KeySession); err != nil {
		return err
	}
	return r.kv.Delete(ctx, KeyAuthToken)
}
