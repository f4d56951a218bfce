package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/cohort/pkg/auth"
	"github.com/platinummonkey/cohort/pkg/storage"
)

// AddUserToStudy records a study membership grant. The user and study must
// belong to the same organization; a cross-tenant grant is rejected before
// anything is written. A duplicate (user, study) pair surfaces
// storage.ErrDuplicateKey.
func (s *Store) AddUserToStudy(ctx context.Context, userID, studyID string) (*auth.UserStudy, error) {
	grant := &auth.UserStudy{
		ID:      uuid.NewString(),
		UserID:  userID,
		StudyID: studyID,
	}

	// Membership check and insert share one transaction so the tenancy
	// comparison cannot race a concurrent move or delete.
	query := `
		INSERT INTO user_studies (id, user_id, study_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	now := time.Now().UTC()
	err := s.do(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		var userOrg, studyOrg string
		err = tx.QueryRowContext(ctx, `SELECT organization_id FROM users WHERE id = $1`, userID).Scan(&userOrg)
		if err != nil {
			return err
		}
		err = tx.QueryRowContext(ctx, `SELECT organization_id FROM studies WHERE id = $1`, studyID).Scan(&studyOrg)
		if err != nil {
			return err
		}
		if userOrg != studyOrg {
			// Same shape as a missing study: the caller learns nothing
			// about another tenant's studies.
			return auth.ErrNotFound
		}

		if err := tx.QueryRowContext(ctx, query,
			grant.ID, grant.UserID, grant.StudyID, now, now,
		).Scan(&grant.CreatedAt, &grant.UpdatedAt); err != nil {
			return err
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add user to study: %w", err)
	}
	return grant, nil
}

// RemoveUserFromStudy deletes the grant; removing an absent grant reports
// auth.ErrNotFound.
func (s *Store) RemoveUserFromStudy(ctx context.Context, userID, studyID string) error {
	query := `DELETE FROM user_studies WHERE user_id = $1 AND study_id = $2`

	err := s.do(ctx, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, query, userID, studyID)
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
		return fmt.Errorf("failed to remove user from study: %w", err)
	}
	return nil
}

// HasStudyGrant reports whether a grant exists for (user, study).
func (s *Store) HasStudyGrant(ctx context.Context, userID, studyID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM user_studies WHERE user_id = $1 AND study_id = $2)`

	var exists bool
	err := s.do(ctx, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, query, userID, studyID).Scan(&exists)
	})
	if err != nil {
		return false, fmt.Errorf("failed to check study grant: %w", err)
	}
	return exists, nil
}

// ListStudyGrants returns the user's grants ordered by creation time.
func (s *Store) ListStudyGrants(ctx context.Context, userID string) ([]*auth.UserStudy, error) {
	query := `
		SELECT id, user_id, study_id, created_at, updated_at
		FROM user_studies
		WHERE user_id = $1
		ORDER BY created_at
	`

	var grants []*auth.UserStudy
	err := s.do(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, query, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		grants = grants[:0]
		for rows.Next() {
			var g auth.UserStudy
			if err := rows.Scan(&g.ID, &g.UserID, &g.StudyID, &g.CreatedAt, &g.UpdatedAt); err != nil {
				return err
			}
			grants = append(grants, &g)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list study grants: %w", err)
	}
	return grants, nil
}

var _ storage.Store = (*Store)(nil)
