package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"

	"github.com/lib/pq"

	"github.com/platinummonkey/cohort/pkg/auth"
)

// Storage error taxonomy. Business-rule failures are terminal; transient
// failures may be retried at the adapter boundary before they surface.
var (
	// ErrNotFound indicates the requested entity does not exist. It is
	// auth.ErrNotFound, re-exported so adapter code reads naturally.
	ErrNotFound = auth.ErrNotFound

	// ErrDuplicateKey indicates a uniqueness constraint was violated
	// (organization name, username, study code, or (user, study) pair).
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrReferentialIntegrity indicates a foreign key constraint was
	// violated, e.g. creating a study under a missing organization.
	ErrReferentialIntegrity = errors.New("referential integrity violation")

	// ErrStorageUnavailable is a transient condition: pool exhaustion,
	// connection failure, or an operation deadline expiring.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrCacheUnavailable is a transient condition on the cache adapter.
	// Session validation treats it as a hard failure (fail closed).
	ErrCacheUnavailable = errors.New("cache unavailable")
)

// Postgres error codes, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// IsTransient reports whether err is a retryable infrastructure failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrCacheUnavailable)
}

// ClassifySQLError maps a database/sql or driver error onto the taxonomy.
// Unique and FK violations become their business conditions; connection and
// deadline failures become the transient ErrStorageUnavailable.
func ClassifySQLError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgUniqueViolation:
			return ErrDuplicateKey
		case pgForeignKeyViolation:
			return ErrReferentialIntegrity
		}
	}

	if isConnectionError(err) {
		return ErrStorageUnavailable
	}

	return err
}

// isConnectionError reports whether err looks like an infrastructure fault
// rather than a statement-level failure.
func isConnectionError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
