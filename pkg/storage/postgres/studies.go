package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/cohort/pkg/auth"
)

// CreateStudy inserts a new study. A duplicate study code surfaces
// storage.ErrDuplicateKey; a missing organization surfaces
// storage.ErrReferentialIntegrity.
func (s *Store) CreateStudy(ctx context.Context, study *auth.Study) error {
	if study.ID == "" {
		study.ID = uuid.NewString()
	}

	query := `
		INSERT INTO studies (id, study_code, name, description, organization_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	now := time.Now().UTC()
	err := s.do(ctx, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, query,
			study.ID, study.StudyCode, nullString(study.Name), nullString(study.Description),
			study.OrganizationID, now, now,
		).Scan(&study.CreatedAt, &study.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to create study: %w", err)
	}
	return nil
}

// GetStudy retrieves a study by ID.
func (s *Store) GetStudy(ctx context.Context, id string) (*auth.Study, error) {
	return s.getStudy(ctx, `WHERE id = $1`, id)
}

// GetStudyByCode retrieves a study by its unique external code.
func (s *Store) GetStudyByCode(ctx context.Context, code string) (*auth.Study, error) {
	return s.getStudy(ctx, `WHERE study_code = $1`, code)
}

func (s *Store) getStudy(ctx context.Context, where string, arg any) (*auth.Study, error) {
	query := `
		SELECT id, study_code, name, description, organization_id, created_at, updated_at
		FROM studies ` + where

	var study auth.Study
	var name, description sql.NullString
	err := s.do(ctx, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, query, arg).Scan(
			&study.ID, &study.StudyCode, &name, &description,
			&study.OrganizationID, &study.CreatedAt, &study.UpdatedAt,
		)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get study: %w", err)
	}
	study.Name = name.String
	study.Description = description.String
	return &study, nil
}

// ListStudies returns the organization's studies ordered by study code.
func (s *Store) ListStudies(ctx context.Context, organizationID string) ([]*auth.Study, error) {
	query := `
		SELECT id, study_code, name, description, organization_id, created_at, updated_at
		FROM studies
		WHERE organization_id = $1
		ORDER BY study_code
	`

	var studies []*auth.Study
	err := s.do(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, query, organizationID)
		if err != nil {
			return err
		}
		defer rows.Close()

		studies = studies[:0]
		for rows.Next() {
			var study auth.Study
			var name, description sql.NullString
			if err := rows.Scan(
				&study.ID, &study.StudyCode, &name, &description,
				&study.OrganizationID, &study.CreatedAt, &study.UpdatedAt,
			); err != nil {
				return err
			}
			study.Name = name.String
			study.Description = description.String
			studies = append(studies, &study)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list studies: %w", err)
	}
	return studies, nil
}

// UpdateStudy updates the mutable study fields, last writer wins. The
// owning organization of a study does not change.
func (s *Store) UpdateStudy(ctx context.Context, study *auth.Study) error {
	query := `
		UPDATE studies
		SET study_code = $2, name = $3, description = $4, updated_at = $5
		WHERE id = $1
		RETURNING updated_at
	`

	err := s.do(ctx, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, query,
			study.ID, study.StudyCode, nullString(study.Name), nullString(study.Description),
			time.Now().UTC(),
		).Scan(&study.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to update study: %w", err)
	}
	return nil
}

// DeleteStudy removes the study and cascades its user_studies rows
// atomically.
func (s *Store) DeleteStudy(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "studies", id, "study")
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
