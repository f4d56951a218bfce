package api

import (
	"net/http"

	"github.com/platinummonkey/cohort/pkg/httputil"
	"github.com/platinummonkey/cohort/pkg/rbac"
)

// addGrant handles POST /api/v1/studies/{id}/grants. Admin-only. The
// store rejects cross-organization pairs, so a grant can only bind a
// user to a study inside their own organization.
func (s *Server) addGrant(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)
	studyID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req GrantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.UserID, "user_id") {
		return
	}

	if !isAdmin(session) {
		writeDomainError(w, rbac.ErrAccessDenied)
		return
	}
	if _, err := s.loadAuthorizedStudy(r, session, studyID, rbac.CapabilityManage); err != nil {
		writeDomainError(w, err)
		return
	}

	grant, err := s.store.AddUserToStudy(r.Context(), req.UserID, studyID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.engine.InvalidateGrant(req.UserID, studyID)
	httputil.WriteCreated(w, grant)
}

// removeGrant handles DELETE /api/v1/studies/{id}/grants/{user_id}.
// Removal is immediate: the next authorization for the pair misses the
// scope cache and sees the store.
func (s *Server) removeGrant(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)
	studyID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "user_id")
	if !ok {
		return
	}

	if !isAdmin(session) {
		writeDomainError(w, rbac.ErrAccessDenied)
		return
	}
	if _, err := s.loadAuthorizedStudy(r, session, studyID, rbac.CapabilityManage); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.store.RemoveUserFromStudy(r.Context(), userID, studyID); err != nil {
		writeDomainError(w, err)
		return
	}
	s.engine.InvalidateGrant(userID, studyID)
	httputil.WriteNoContent(w)
}

// listUserStudies handles GET /api/v1/users/{id}/studies. Users list
// their own grants; admins list grants for users in scope.
func (s *Server) listUserStudies(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)
	userID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if session == nil {
		writeDomainError(w, rbac.ErrAccessDenied)
		return
	}
	if session.UserID != userID {
		if err := s.authorizeUserAdmin(r, session, userID); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	grants, err := s.store.ListStudyGrants(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, grants)
}
