package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/cohort/pkg/auth"
)

// CreateOrganization inserts a new organization. A duplicate name surfaces
// storage.ErrDuplicateKey.
func (s *Store) CreateOrganization(ctx context.Context, org *auth.Organization) error {
	if org.ID == "" {
		org.ID = uuid.NewString()
	}

	query := `
		INSERT INTO organizations (id, name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	now := time.Now().UTC()
	err := s.do(ctx, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, query,
			org.ID, org.Name, org.IsActive, now, now,
		).Scan(&org.CreatedAt, &org.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

// GetOrganization retrieves an organization by ID.
func (s *Store) GetOrganization(ctx context.Context, id string) (*auth.Organization, error) {
	return s.getOrganization(ctx, `WHERE id = $1`, id)
}

// GetOrganizationByName retrieves an organization by its unique name.
func (s *Store) GetOrganizationByName(ctx context.Context, name string) (*auth.Organization, error) {
	return s.getOrganization(ctx, `WHERE name = $1`, name)
}

func (s *Store) getOrganization(ctx context.Context, where string, arg any) (*auth.Organization, error) {
	query := `
		SELECT id, name, is_active, created_at, updated_at
		FROM organizations ` + where

	var org auth.Organization
	err := s.do(ctx, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, query, arg).Scan(
			&org.ID, &org.Name, &org.IsActive, &org.CreatedAt, &org.UpdatedAt,
		)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

// ListOrganizations returns all organizations ordered by name.
func (s *Store) ListOrganizations(ctx context.Context) ([]*auth.Organization, error) {
	query := `
		SELECT id, name, is_active, created_at, updated_at
		FROM organizations
		ORDER BY name
	`

	var orgs []*auth.Organization
	err := s.do(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		orgs = orgs[:0]
		for rows.Next() {
			var org auth.Organization
			if err := rows.Scan(&org.ID, &org.Name, &org.IsActive, &org.CreatedAt, &org.UpdatedAt); err != nil {
				return err
			}
			orgs = append(orgs, &org)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return orgs, nil
}

// UpdateOrganization updates name and active flag, last writer wins.
func (s *Store) UpdateOrganization(ctx context.Context, org *auth.Organization) error {
	query := `
		UPDATE organizations
		SET name = $2, is_active = $3, updated_at = $4
		WHERE id = $1
		RETURNING updated_at
	`

	err := s.do(ctx, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, query,
			org.ID, org.Name, org.IsActive, time.Now().UTC(),
		).Scan(&org.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	return nil
}

// DeleteOrganization removes the organization and, through the schema's
// cascading foreign keys, every study, user, and user_studies row under it.
// The single statement commits or rolls back as a unit; concurrent readers
// never observe a half-deleted subtree.
func (s *Store) DeleteOrganization(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "organizations", id, "organization")
}

// deleteByID removes one row, reporting auth.ErrNotFound when nothing
// matched.
func (s *Store) deleteByID(ctx context.Context, table, id, label string) error {
	query := `DELETE FROM ` + table + ` WHERE id = $1`

	err := s.do(ctx, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, query, id)
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
		return fmt.Errorf("failed to delete %s: %w", label, err)
	}
	return nil
}
