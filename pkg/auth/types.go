package auth

import (
	"encoding/json"
	"errors"
	"time"
)

// Business-rule error taxonomy for authentication. These are terminal and
// never retried. ErrInvalidCredentials is returned identically for an
// unknown username and a wrong password, and session lookups report missing
// and expired tokens with the same shape, so callers cannot probe accounts
// or cache internals.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrSessionNotFound    = errors.New("session not found or expired")
	ErrSessionExpired     = ErrSessionNotFound

	// ErrNotFound indicates a requested entity does not exist. It lives
	// here with the domain types; the storage adapters return it.
	ErrNotFound = errors.New("not found")
)

// AccessLevel is the closed set of platform roles. Authorization dispatches
// on it with a total switch; there is no open-ended role hierarchy.
type AccessLevel string

const (
	// AccessLevelSystemAdmin has full access across all organizations.
	AccessLevelSystemAdmin AccessLevel = "system_admin"
	// AccessLevelOrgAdmin has full access within their own organization.
	AccessLevelOrgAdmin AccessLevel = "organization_admin"
	// AccessLevelUser may act only within studies they are granted.
	AccessLevelUser AccessLevel = "user"
)

// Valid reports whether l is a known access level.
func (l AccessLevel) Valid() bool {
	switch l {
	case AccessLevelSystemAdmin, AccessLevelOrgAdmin, AccessLevelUser:
		return true
	}
	return false
}

// Organization is the root of the tenancy hierarchy.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Study is a research study owned by exactly one organization. A study
// cannot exist without its organization.
type Study struct {
	ID             string    `json:"id"`
	StudyCode      string    `json:"study_code"`
	Name           string    `json:"name,omitempty"`
	Description    string    `json:"description,omitempty"`
	OrganizationID string    `json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// User represents a platform user account.
type User struct {
	ID             string      `json:"id"`
	Username       string      `json:"username"`
	FirstName      string      `json:"first_name,omitempty"`
	LastName       string      `json:"last_name,omitempty"`
	Email          string      `json:"email,omitempty"`
	PasswordHash   string      `json:"-"` // Never expose hash
	OrganizationID string      `json:"organization_id"`
	AccessLevel    AccessLevel `json:"access_level"`
	IsActive       bool        `json:"is_active"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	LastLoginAt    *time.Time  `json:"last_login_at,omitempty"`
}

// UserStudy grants a user permission to act within a specific study.
// The (user, study) pair is unique.
type UserStudy struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	StudyID   string    `json:"study_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session is the ephemeral, cache-resident proof of authentication bound to
// an opaque token. It snapshots the user's access level and organization at
// issue time; its lifetime is the cache entry's TTL window.
type Session struct {
	UserID         string      `json:"user_id"`
	AccessLevel    AccessLevel `json:"access_level"`
	OrganizationID string      `json:"organization_id"`
	IssuedAt       time.Time   `json:"issued_at"`
	Generation     int64       `json:"generation"`
}

// Marshal serializes the session for cache storage.
func (s *Session) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSession deserializes a cached session record.
func UnmarshalSession(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
