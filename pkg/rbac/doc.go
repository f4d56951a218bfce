// Package rbac provides role-based authorization for the Cohort study platform.
//
// # Overview
//
// Authorization evaluates a validated session against a requested capability
// and target inside the Organization → Study tenancy hierarchy. The role set
// is closed (system_admin, organization_admin, user) and dispatch is a total
// switch; there is no role inheritance or open-ended role definition.
//
// # Rules
//
// Evaluated in precedence order:
//
//	system_admin        - always authorized, any target
//	organization_admin  - target org must equal the session's org; a target
//	                      study must belong to that org
//	user                - a UserStudy grant must exist for (user, study) and
//	                      the study must belong to the session's org
//
// # Target re-validation
//
// The session snapshots only the user's own organization. Target study and
// organization ids arrive from the client and are re-validated against the
// persistent store on every decision; results are memoized in small
// expirable LRUs invalidated by writes.
//
// # Usage
//
//	engine := rbac.NewEngine(store)
//	err := engine.Authorize(ctx, session, rbac.CapabilityWrite, rbac.Target{
//		OrganizationID: orgID,
//		StudyID:        studyID,
//	})
//	if errors.Is(err, rbac.ErrAccessDenied) {
//		// 403
//	}
//
// # Related Packages
//
//   - pkg/auth: session validation and domain types
//   - pkg/storage: persistent store adapter queried for scope checks
//   - pkg/middleware: HTTP authentication middleware
package rbac
