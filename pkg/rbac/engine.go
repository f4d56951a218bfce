package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/cohort/pkg/auth"
)

// ErrAccessDenied is the uniform authorization failure. Handlers map it to
// 403 without detail; the denial reason is not exposed to the caller.
var ErrAccessDenied = errors.New("access denied")

// Capability names the operation being authorized. The role rules do not
// branch on it; it exists for logging and for handlers to declare intent.
type Capability string

const (
	CapabilityRead   Capability = "read"
	CapabilityWrite  Capability = "write"
	CapabilityManage Capability = "manage"
)

// Target identifies what a request wants to act on. Both fields are
// optional; which must be present depends on the session's access level.
type Target struct {
	OrganizationID string
	StudyID        string
}

// ScopeStore is the slice of the persistent store the engine queries to
// re-validate targets. The session only snapshots the user's own
// organization, so client-supplied target ids are never trusted without a
// store lookup.
type ScopeStore interface {
	GetStudy(ctx context.Context, id string) (*auth.Study, error)
	HasStudyGrant(ctx context.Context, userID, studyID string) (bool, error)
}

const (
	scopeCacheSize = 4096
	scopeCacheTTL  = 30 * time.Second
)

// Engine evaluates role and scope rules against a validated session.
//
// Scope lookups are memoized in small expirable LRUs so hot studies do not
// hammer the store; writes that change the tenancy graph must call the
// Invalidate methods. Entries also age out on their own, bounding staleness.
type Engine struct {
	store     ScopeStore
	studyOrgs *lru.LRU[string, string]
	grants    *lru.LRU[string, bool]
}

// NewEngine creates an authorization engine over the given store.
func NewEngine(store ScopeStore) *Engine {
	return &Engine{
		store:     store,
		studyOrgs: lru.NewLRU[string, string](scopeCacheSize, nil, scopeCacheTTL),
		grants:    lru.NewLRU[string, bool](scopeCacheSize, nil, scopeCacheTTL),
	}
}

// Authorize evaluates whether the session may exercise the capability
// against the target. Rules in precedence order:
//
//  1. system_admin: always authorized, regardless of targets.
//  2. organization_admin: the target organization must be the session's
//     own; a target study must belong to that organization.
//  3. user: a study grant must exist for (session user, target study) and
//     the study's organization must be the session's own. No target study
//     is itself a denial.
//
// Returns nil on success and ErrAccessDenied otherwise. Store failures
// during re-validation propagate as errors: authorization fails closed.
func (e *Engine) Authorize(ctx context.Context, session *auth.Session, capability Capability, target Target) error {
	if session == nil {
		return ErrAccessDenied
	}

	switch session.AccessLevel {
	case auth.AccessLevelSystemAdmin:
		return nil

	case auth.AccessLevelOrgAdmin:
		if target.OrganizationID == "" || target.OrganizationID != session.OrganizationID {
			return ErrAccessDenied
		}
		if target.StudyID == "" {
			return nil
		}
		return e.requireStudyInOrg(ctx, target.StudyID, session.OrganizationID)

	case auth.AccessLevelUser:
		if target.StudyID == "" {
			return ErrAccessDenied
		}
		if err := e.requireStudyInOrg(ctx, target.StudyID, session.OrganizationID); err != nil {
			return err
		}
		granted, err := e.hasGrant(ctx, session.UserID, target.StudyID)
		if err != nil {
			return err
		}
		if !granted {
			return ErrAccessDenied
		}
		return nil

	default:
		// Unknown access level snapshots deny outright.
		return ErrAccessDenied
	}
}

// requireStudyInOrg re-validates that the study exists and belongs to the
// organization. A forged grant against another tenant's study dies here.
func (e *Engine) requireStudyInOrg(ctx context.Context, studyID, organizationID string) error {
	orgID, err := e.studyOrg(ctx, studyID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return ErrAccessDenied
		}
		return fmt.Errorf("study scope lookup failed: %w", err)
	}
	if orgID != organizationID {
		return ErrAccessDenied
	}
	return nil
}

func (e *Engine) studyOrg(ctx context.Context, studyID string) (string, error) {
	if orgID, ok := e.studyOrgs.Get(studyID); ok {
		return orgID, nil
	}

	study, err := e.store.GetStudy(ctx, studyID)
	if err != nil {
		return "", err
	}

	e.studyOrgs.Add(studyID, study.OrganizationID)
	return study.OrganizationID, nil
}

func grantKey(userID, studyID string) string { return userID + "\x00" + studyID }

func (e *Engine) hasGrant(ctx context.Context, userID, studyID string) (bool, error) {
	if granted, ok := e.grants.Get(grantKey(userID, studyID)); ok {
		return granted, nil
	}

	granted, err := e.store.HasStudyGrant(ctx, userID, studyID)
	if err != nil {
		return false, fmt.Errorf("grant lookup failed: %w", err)
	}

	e.grants.Add(grantKey(userID, studyID), granted)
	return granted, nil
}

// InvalidateStudy drops cached scope state for a study. Call after the
// study is moved or deleted.
func (e *Engine) InvalidateStudy(studyID string) {
	e.studyOrgs.Remove(studyID)
}

// InvalidateGrant drops the cached grant decision for (user, study). Call
// after a grant is added or removed.
func (e *Engine) InvalidateGrant(userID, studyID string) {
	e.grants.Remove(grantKey(userID, studyID))
}

// InvalidateAll clears both scope caches. Used by tests and bulk mutations.
func (e *Engine) InvalidateAll() {
	e.studyOrgs.Purge()
	e.grants.Purge()
}
