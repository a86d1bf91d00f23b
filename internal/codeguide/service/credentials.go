package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/codeguide/internal/codeguide/domain"
	"github.com/aussiebroadwan/codeguide/internal/codeguide/store"
	"github.com/aussiebroadwan/codeguide/pkg/cryptox"
	"github.com/aussiebroadwan/codeguide/pkg/idx"
	"github.com/aussiebroadwan/codeguide/pkg/jwtx"
	"github.com/aussiebroadwan/codeguide/pkg/slogx"
)

var (
	ErrInvalidRegistration = errors.New("username, email and password are required")
	ErrPasswordMismatch    = errors.New("passwords do not match")
	ErrDuplicateUser       = errors.New("user already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrNoSession           = errors.New("no active session")
)

// CredentialService is the local credential store: registration, login and
// the single current session, all kept in local storage.
type CredentialService struct {
	Store    store.Store
	Signer   jwtx.Signer
	Verifier jwtx.Verifier
	Issuer   string

	// SessionTTL of zero means sessions never expire on their own.
	SessionTTL time.Duration

	// Now defaults to time.Now.
	Now func() time.Time

	registerMu sync.Mutex
}

func (s *CredentialService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a Credential and returns its public view. No session is
// created; the caller logs in separately.
func (s *CredentialService) Register(ctx context.Context, username, email, password, confirmPassword string) (domain.User, error) {
	username = strings.TrimSpace(username)
	email = normaliseEmail(email)
	if username == "" || email == "" || password == "" {
		return domain.User{}, ErrInvalidRegistration
	}
	if password != confirmPassword {
		return domain.User{}, ErrPasswordMismatch
	}

	salt, err := cryptox.NewSalt()
	if err != nil {
		return domain.User{}, err
	}

	cred := domain.Credential{
		ID:           idx.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: cryptox.HashPasswordWithSalt(password, salt),
		Salt:         cryptox.EncodeSalt(salt),
		CreatedAt:    s.now(),
	}

	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		repo := tx.Credentials()
		if _, err := repo.GetCredentialByEmail(ctx, email); err == nil {
			return ErrDuplicateUser
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if _, err := repo.GetCredentialByUsername(ctx, username); err == nil {
			return ErrDuplicateUser
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		if err := repo.CreateCredential(ctx, cred); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrDuplicateUser
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user registered",
		slog.String("user_id", cred.ID),
		slog.String("username", cred.Username),
	)
	return cred.User(), nil
}

// Login verifies email and password and replaces the current session.
// A failed attempt leaves any existing session untouched.
func (s *CredentialService) Login(ctx context.Context, email, password string) (domain.User, domain.Session, error) {
	l := slogx.FromContext(ctx)

	cred, err := s.Store.Credentials().GetCredentialByEmail(ctx, normaliseEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, domain.Session{}, ErrUserNotFound
		}
		return domain.User{}, domain.Session{}, err
	}

	if err := cryptox.VerifyPasswordWithSalt(password, cred.Salt, cred.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Info("login rejected", slog.String("user_id", cred.ID))
			return domain.User{}, domain.Session{}, ErrInvalidCredentials
		}
		return domain.User{}, domain.Session{}, fmt.Errorf("verify password for %s: %w", cred.ID, err)
	}

	now := s.now()
	claims := jwtx.NewSessionClaims(cred.ID, cred.Username, cred.Email, s.Issuer, s.SessionTTL, now)
	token, err := s.Signer.Sign(claims)
	if err != nil {
		return domain.User{}, domain.Session{}, fmt.Errorf("sign session token: %w", err)
	}

	sess := domain.Session{UserID: cred.ID, Token: token, IssuedAt: now}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.UTC()
		sess.ExpiresAt = &exp
	}

	if err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Sessions().PutSession(ctx, sess)
	}); err != nil {
		return domain.User{}, domain.Session{}, err
	}

	l.Info("user logged in", slog.String("user_id", cred.ID))
	return cred.User(), sess, nil
}

// Logout removes the current session. Logging out twice is fine.
func (s *CredentialService) Logout(ctx context.Context) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Sessions().DeleteSession(ctx)
	})
}

// CurrentSession returns the stored session, or ErrNoSession. With a
// positive SessionTTL an expired session is removed on the way.
func (s *CredentialService) CurrentSession(ctx context.Context) (domain.Session, error) {
	sess, err := s.loadSession(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	if s.SessionTTL <= 0 || !s.sessionExpired(sess) {
		return sess, nil
	}

	expired, err := s.ExpireSession(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	if expired {
		slogx.FromContext(ctx).Info("session expired", slog.String("user_id", sess.UserID))
		return domain.Session{}, ErrNoSession
	}
	// A login replaced the session before the sweep got the lock.
	return s.loadSession(ctx)
}

func (s *CredentialService) loadSession(ctx context.Context) (domain.Session, error) {
	sess, err := s.Store.Sessions().GetCurrentSession(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, ErrNoSession
		}
		return domain.Session{}, err
	}
	return sess, nil
}

func (s *CredentialService) sessionExpired(sess domain.Session) bool {
	now := s.now()
	if sess.Expired(now) {
		return true
	}
	return !now.Before(sess.IssuedAt.Add(s.SessionTTL))
}

// CurrentUser returns the logged in user together with the session.
func (s *CredentialService) CurrentUser(ctx context.Context) (domain.User, domain.Session, error) {
	sess, err := s.CurrentSession(ctx)
	if err != nil {
		return domain.User{}, domain.Session{}, err
	}

	cred, err := s.Store.Credentials().GetCredentialByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Session outlived its user (e.g. the user list was edited by hand).
			return domain.User{}, domain.Session{}, ErrNoSession
		}
		return domain.User{}, domain.Session{}, err
	}
	return cred.User(), sess, nil
}

// ValidateToken guards routes: token must verify and match the mirrored
// auth token of the current session.
func (s *CredentialService) ValidateToken(ctx context.Context, token string) (domain.Session, error) {
	claims, err := s.Verifier.Verify(token)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %w", ErrNoSession, err)
	}

	mirrored, err := s.Store.Sessions().GetAuthToken(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, ErrNoSession
		}
		return domain.Session{}, err
	}
	if subtle.ConstantTimeCompare([]byte(mirrored), []byte(token)) != 1 {
		return domain.Session{}, ErrNoSession
	}

	sess, err := s.CurrentSession(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	if sess.UserID != claims.Subject {
		return domain.Session{}, ErrNoSession
	}
	return sess, nil
}

// ListUsers returns every registered user without secret material.
func (s *CredentialService) ListUsers(ctx context.Context) ([]domain.User, error) {
	creds, err := s.Store.Credentials().ListCredentials(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(creds))
	for _, c := range creds {
		users = append(users, c.User())
	}
	return users, nil
}

// ClearAllData wipes the whole local store: users, session and token.
func (s *CredentialService) ClearAllData(ctx context.Context) error {
	if err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Clear(ctx)
	}); err != nil {
		return err
	}
	slogx.FromContext(ctx).Warn("local storage cleared")
	return nil
}

// ExpireSession removes the current session if it is past its TTL and
// reports whether it did. It does nothing when sessions never expire.
// The check and the delete share one transaction, so a session written by a
// concurrent Login is never the one removed.
func (s *CredentialService) ExpireSession(ctx context.Context) (bool, error) {
	if s.SessionTTL <= 0 {
		return false, nil
	}

	var expired bool
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		sess, err := tx.Sessions().GetCurrentSession(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !s.sessionExpired(sess) {
			return nil
		}

		expired = true
		return tx.Sessions().DeleteSession(ctx)
	})
	if err != nil {
		return false, err
	}
	return expired, nil
}
