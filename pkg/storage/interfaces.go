package storage

import (
	"context"
	"time"

	"github.com/platinummonkey/cohort/pkg/auth"
)

// Store is the persistent store adapter for the tenancy graph.
// Implementations guarantee cascading deletes are atomic: a concurrent
// reader sees an organization subtree fully present or fully absent.
type Store interface {
	// Organizations
	CreateOrganization(ctx context.Context, org *auth.Organization) error
	GetOrganization(ctx context.Context, id string) (*auth.Organization, error)
	GetOrganizationByName(ctx context.Context, name string) (*auth.Organization, error)
	ListOrganizations(ctx context.Context) ([]*auth.Organization, error)
	UpdateOrganization(ctx context.Context, org *auth.Organization) error
	DeleteOrganization(ctx context.Context, id string) error

	// Studies
	CreateStudy(ctx context.Context, study *auth.Study) error
	GetStudy(ctx context.Context, id string) (*auth.Study, error)
	GetStudyByCode(ctx context.Context, code string) (*auth.Study, error)
	ListStudies(ctx context.Context, organizationID string) ([]*auth.Study, error)
	UpdateStudy(ctx context.Context, study *auth.Study) error
	DeleteStudy(ctx context.Context, id string) error

	// Users
	CreateUser(ctx context.Context, user *auth.User) error
	GetUser(ctx context.Context, id string) (*auth.User, error)
	GetUserByUsername(ctx context.Context, username string) (*auth.User, error)
	ListUsers(ctx context.Context, organizationID string) ([]*auth.User, error)
	UpdateUser(ctx context.Context, user *auth.User) error
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
	RecordLogin(ctx context.Context, userID string, at time.Time) error
	DeleteUser(ctx context.Context, id string) error

	// Study membership grants
	AddUserToStudy(ctx context.Context, userID, studyID string) (*auth.UserStudy, error)
	RemoveUserFromStudy(ctx context.Context, userID, studyID string) error
	HasStudyGrant(ctx context.Context, userID, studyID string) (bool, error)
	ListStudyGrants(ctx context.Context, userID string) ([]*auth.UserStudy, error)

	HealthCheck(ctx context.Context) error
	Close() error
}

// Cache is the ephemeral key-value adapter used for session records and
// per-user generation counters. Single-key operations are atomic; there are
// no ordering guarantees across keys.
type Cache interface {
	// Get returns the value for key, or (nil, nil) on a miss.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Incr atomically increments the integer at key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// GetInt returns the integer at key, or (0, nil) when the key is absent.
	GetInt(ctx context.Context, key string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Config for the storage backends
type Config struct {
	// PostgreSQL config
	PostgresURL      string
	PostgresMaxConns int
	PostgresMinConns int
	PostgresTimeout  time.Duration
	PostgresMaxIdle  time.Duration
	PostgresMaxLife  time.Duration

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int
	RedisPoolWait   time.Duration

	// Session cache config
	SessionTTL     time.Duration
	SessionSliding bool

	// Retry config for transient failures
	RetryAttempts int
	RetryBaseWait time.Duration
	RetryMaxWait  time.Duration
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		PostgresMaxIdle:  5 * time.Minute,
		PostgresMaxLife:  30 * time.Minute,
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		RedisPoolWait:    4 * time.Second,
		SessionTTL:       24 * time.Hour,
		SessionSliding:   false,
		RetryAttempts:    3,
		RetryBaseWait:    50 * time.Millisecond,
		RetryMaxWait:     1 * time.Second,
	}
}
