package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/cohort/pkg/auth"
)

const userColumns = `id, username, first_name, last_name, email, password_hash,
	organization_id, access_level, is_active, created_at, updated_at, last_login_at`

// CreateUser inserts a new user. A duplicate username surfaces
// storage.ErrDuplicateKey; a missing organization surfaces
// storage.ErrReferentialIntegrity.
func (s *Store) CreateUser(ctx context.Context, user *auth.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.AccessLevel == "" {
		user.AccessLevel = auth.AccessLevelUser
	}
	if !user.AccessLevel.Valid() {
		return fmt.Errorf("invalid access level %q", user.AccessLevel)
	}

	query := `
		INSERT INTO users (id, username, first_name, last_name, email, password_hash,
			organization_id, access_level, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	now := time.Now().UTC()
	err := s.do(ctx, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, query,
			user.ID, user.Username, nullString(user.FirstName), nullString(user.LastName),
			nullString(user.Email), user.PasswordHash, user.OrganizationID,
			string(user.AccessLevel), user.IsActive, now, now,
		).Scan(&user.CreatedAt, &user.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID, password hash included.
func (s *Store) GetUser(ctx context.Context, id string) (*auth.User, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

// GetUserByUsername retrieves a user by their unique username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*auth.User, error) {
	return s.getUser(ctx, `WHERE username = $1`, username)
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (*auth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ` + where

	var user auth.User
	err := s.do(ctx, func(ctx context.Context) error {
		return scanUser(s.db.QueryRowContext(ctx, query, arg), &user)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ListUsers returns the organization's users ordered by username.
func (s *Store) ListUsers(ctx context.Context, organizationID string) ([]*auth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE organization_id = $1 ORDER BY username`

	var users []*auth.User
	err := s.do(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, query, organizationID)
		if err != nil {
			return err
		}
		defer rows.Close()

		users = users[:0]
		for rows.Next() {
			var user auth.User
			if err := scanUser(rows, &user); err != nil {
				return err
			}
			users = append(users, &user)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateUser updates profile fields and the active flag, last writer wins.
// The password hash has its own dedicated update path.
func (s *Store) UpdateUser(ctx context.Context, user *auth.User) error {
	if !user.AccessLevel.Valid() {
		return fmt.Errorf("invalid access level %q", user.AccessLevel)
	}

	query := `
		UPDATE users
		SET username = $2, first_name = $3, last_name = $4, email = $5,
			access_level = $6, is_active = $7, updated_at = $8
		WHERE id = $1
		RETURNING updated_at
	`

	err := s.do(ctx, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, query,
			user.ID, user.Username, nullString(user.FirstName), nullString(user.LastName),
			nullString(user.Email), string(user.AccessLevel), user.IsActive, time.Now().UTC(),
		).Scan(&user.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// UpdatePasswordHash replaces the stored credential. Callers revoke the
// user's sessions afterwards.
func (s *Store) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`

	err := s.do(ctx, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, query, userID, passwordHash, time.Now().UTC())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return auth.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}
	return nil
}

// RecordLogin stamps the user's last login time.
func (s *Store) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE users SET last_login_at = $2 WHERE id = $1`

	err := s.do(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query, userID, at.UTC())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// DeleteUser removes the user and cascades their user_studies rows
// atomically.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "users", id, "user")
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner, user *auth.User) error {
	var firstName, lastName, email sql.NullString
	var accessLevel string
	var lastLogin sql.NullTime

	err := row.Scan(
		&user.ID, &user.Username, &firstName, &lastName, &email, &user.PasswordHash,
		&user.OrganizationID, &accessLevel, &user.IsActive,
		&user.CreatedAt, &user.UpdatedAt, &lastLogin,
	)
	if err != nil {
		return err
	}

	user.FirstName = firstName.String
	user.LastName = lastName.String
	user.Email = email.String
	user.AccessLevel = auth.AccessLevel(accessLevel)
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}
	return nil
}
