package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// UserStore is the slice of the persistent store the auth service needs.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
	RecordLogin(ctx context.Context, userID string, at time.Time) error
}

// Service implements the external authentication interface: login,
// authenticate, logout, and bulk revocation. Authorization decisions live in
// pkg/rbac and are composed by the HTTP layer.
type Service struct {
	store    UserStore
	hasher   *Hasher
	sessions *SessionManager
}

// NewService creates the authentication service.
func NewService(store UserStore, hasher *Hasher, sessions *SessionManager) *Service {
	return &Service{
		store:    store,
		hasher:   hasher,
		sessions: sessions,
	}
}

// Login verifies the credentials and issues a session token.
//
// An unknown username and a wrong password return the identical
// ErrInvalidCredentials, and the unknown-username path still burns a full
// hash verification so the two are indistinguishable by timing.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.hasher.DummyVerify(ctx, password)
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("user lookup failed: %w", err)
	}

	ok, err := s.hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		if errors.Is(err, ErrInvalidHash) {
			// Corrupt stored hash: deny, do not leak which account broke.
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("password verification failed: %w", err)
	}
	if !ok {
		return "", ErrInvalidCredentials
	}

	if !user.IsActive {
		return "", ErrAccountInactive
	}

	token, err := s.sessions.Issue(ctx, user)
	if err != nil {
		return "", err
	}

	// Best effort: last-login bookkeeping must not fail the login.
	_ = s.store.RecordLogin(ctx, user.ID, time.Now().UTC())

	return token, nil
}

// Authenticate resolves a token to its session.
func (s *Service) Authenticate(ctx context.Context, token string) (*Session, error) {
	return s.sessions.Validate(ctx, token)
}

// Logout revokes the session for token; absent tokens are a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// RevokeSessions invalidates every outstanding session for the user.
func (s *Service) RevokeSessions(ctx context.Context, userID string) error {
	return s.sessions.RevokeAllForUser(ctx, userID)
}

// HashPassword derives a storable hash for a new credential. Used by the
// user provisioning path, which owns persisting the hash.
func (s *Service) HashPassword(ctx context.Context, password string) (string, error) {
	return s.hasher.Hash(ctx, password)
}

// ChangePassword verifies the old password, stores a fresh hash, and revokes
// all of the user's sessions.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("user lookup failed: %w", err)
	}

	ok, err := s.hasher.Verify(ctx, oldPassword, user.PasswordHash)
	if err != nil && !errors.Is(err, ErrInvalidHash) {
		return fmt.Errorf("password verification failed: %w", err)
	}
	if err != nil || !ok {
		return ErrInvalidCredentials
	}

	encoded, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	if err := s.store.UpdatePasswordHash(ctx, userID, encoded); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	// Existing sessions must not outlive the credential that created them.
	return s.sessions.RevokeAllForUser(ctx, userID)
}
