package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the tenancy schema migrations. Cascading foreign
// keys carry the deletion semantics: removing an organization removes its
// studies and users, which removes their user_studies rows, all inside the
// single DELETE's transaction.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id VARCHAR(36) PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     2,
			Description: "Create studies table",
			SQL: `
				CREATE TABLE IF NOT EXISTS studies (
					id VARCHAR(36) PRIMARY KEY,
					study_code VARCHAR(255) NOT NULL UNIQUE,
					name VARCHAR(255),
					description TEXT,
					organization_id VARCHAR(36) NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_studies_organization_id ON studies(organization_id);
			`,
		},
		{
			Version:     3,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id VARCHAR(36) PRIMARY KEY,
					username VARCHAR(255) NOT NULL UNIQUE,
					first_name VARCHAR(255),
					last_name VARCHAR(255),
					email VARCHAR(255),
					password_hash TEXT NOT NULL,
					organization_id VARCHAR(36) NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					access_level VARCHAR(32) NOT NULL DEFAULT 'user',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					last_login_at TIMESTAMPTZ
				);

				CREATE INDEX IF NOT EXISTS idx_users_organization_id ON users(organization_id);
				CREATE INDEX IF NOT EXISTS idx_users_is_active ON users(is_active);
			`,
		},
		{
			Version:     4,
			Description: "Create user_studies table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_studies (
					id VARCHAR(36) PRIMARY KEY,
					user_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					study_id VARCHAR(36) NOT NULL REFERENCES studies(id) ON DELETE CASCADE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(user_id, study_id)
				);

				CREATE INDEX IF NOT EXISTS idx_user_studies_user_id ON user_studies(user_id);
				CREATE INDEX IF NOT EXISTS idx_user_studies_study_id ON user_studies(study_id);
			`,
		},
	}
}

// RunMigrations applies pending migrations in version order, tracking
// applied versions in schema_migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	for _, m := range GetMigrations() {
		var exists bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if exists {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
