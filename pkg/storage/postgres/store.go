package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/cohort/pkg/storage"
)

// Store is the PostgreSQL persistent store adapter for the tenancy graph.
// All operations run under the caller's context deadline; transient
// infrastructure failures are retried with bounded backoff before they
// surface as storage.ErrStorageUnavailable.
type Store struct {
	db    *sql.DB
	retry storage.RetryPolicy
}

// NewStore creates a store over an existing connection pool.
func NewStore(db *sql.DB, cfg storage.Config) *Store {
	return &Store{
		db:    db,
		retry: storage.RetryPolicyFromConfig(cfg),
	}
}

// do runs op through error classification and the transient-retry policy.
// Business-rule failures (duplicate key, FK violation, not found) come back
// on the first attempt, unretried.
func (s *Store) do(ctx context.Context, op func(ctx context.Context) error) error {
	return s.retry.Do(ctx, func(ctx context.Context) error {
		return storage.ClassifySQLError(op(ctx))
	})
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrStorageUnavailable, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
