package auth

import (
	"context"
	"fmt"
	"time"
)

// SessionCache is the slice of the cache adapter the session manager needs.
// A miss is (nil, nil) from Get; infrastructure faults come back as errors
// and are never treated as a miss.
type SessionCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
	GetInt(ctx context.Context, key string) (int64, error)
}

// SessionConfig controls session issuance and validation.
type SessionConfig struct {
	// TTL is the session lifetime. The cache entry expires after this
	// window and the session is gone.
	TTL time.Duration
	// Sliding, when set, extends the TTL on every successful validation.
	Sliding bool
}

// SessionManager issues, validates, and revokes opaque session tokens backed
// by cache entries. Sessions never touch the durable store, survive no cache
// restart, and need no cross-instance coordination.
//
// Bulk revocation uses a per-user generation counter rather than a token
// index: issuing snapshots the counter into the session record, and a bump
// makes every outstanding record stale on its next validation. O(1), no
// token enumeration.
type SessionManager struct {
	cache     SessionCache
	generator *TokenGenerator
	config    SessionConfig
}

// NewSessionManager creates a session manager over the given cache.
func NewSessionManager(cache SessionCache, config SessionConfig) *SessionManager {
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	return &SessionManager{
		cache:     cache,
		generator: NewTokenGenerator(),
		config:    config,
	}
}

func sessionKey(token string) string { return "session:" + token }

func generationKey(userID string) string { return "session_generation:" + userID }

// Issue creates a session for the user and returns its opaque token.
func (m *SessionManager) Issue(ctx context.Context, user *User) (string, error) {
	generation, err := m.cache.GetInt(ctx, generationKey(user.ID))
	if err != nil {
		return "", fmt.Errorf("failed to read session generation: %w", err)
	}

	token, err := m.generator.GenerateToken()
	if err != nil {
		return "", err
	}

	session := &Session{
		UserID:         user.ID,
		AccessLevel:    user.AccessLevel,
		OrganizationID: user.OrganizationID,
		IssuedAt:       time.Now().UTC(),
		Generation:     generation,
	}

	data, err := session.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to serialize session: %w", err)
	}

	if err := m.cache.Set(ctx, sessionKey(token), data, m.config.TTL); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	return token, nil
}

// Validate looks up the session for token. A missing, expired, or stale
// (generation-bumped) entry returns ErrSessionNotFound uniformly. A cache
// fault is returned as-is: validation fails closed, never silently treating
// infrastructure trouble as "no session" or as success.
func (m *SessionManager) Validate(ctx context.Context, token string) (*Session, error) {
	if err := m.generator.ValidateTokenFormat(token); err != nil {
		return nil, ErrSessionNotFound
	}

	data, err := m.cache.Get(ctx, sessionKey(token))
	if err != nil {
		return nil, fmt.Errorf("session lookup failed: %w", err)
	}
	if data == nil {
		return nil, ErrSessionNotFound
	}

	session, err := UnmarshalSession(data)
	if err != nil {
		// Corrupt record: drop it and report uniformly.
		_ = m.cache.Delete(ctx, sessionKey(token))
		return nil, ErrSessionNotFound
	}

	current, err := m.cache.GetInt(ctx, generationKey(session.UserID))
	if err != nil {
		return nil, fmt.Errorf("session generation lookup failed: %w", err)
	}
	if session.Generation != current {
		_ = m.cache.Delete(ctx, sessionKey(token))
		return nil, ErrSessionNotFound
	}

	if m.config.Sliding {
		// Best effort: a failed extension does not invalidate the session.
		_ = m.cache.Set(ctx, sessionKey(token), data, m.config.TTL)
	}

	return session, nil
}

// Revoke deletes the session for token. Revoking an absent token is not an
// error.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	if err := m.generator.ValidateTokenFormat(token); err != nil {
		return nil
	}
	if err := m.cache.Delete(ctx, sessionKey(token)); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// RevokeAllForUser invalidates every outstanding session for the user by
// bumping their generation counter. Used on password change and account
// deactivation. The bump is read-after-write visible to all subsequent
// validations.
func (m *SessionManager) RevokeAllForUser(ctx context.Context, userID string) error {
	if _, err := m.cache.Incr(ctx, generationKey(userID)); err != nil {
		return fmt.Errorf("failed to bump session generation: %w", err)
	}
	return nil
}
