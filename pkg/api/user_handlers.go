package api

import (
	"net/http"

	"github.com/platinummonkey/cohort/pkg/auth"
	"github.com/platinummonkey/cohort/pkg/httputil"
	"github.com/platinummonkey/cohort/pkg/rbac"
)

// createUser handles POST /api/v1/users. Requires admin rights over the
// target organization. The password is hashed before it ever reaches the
// store; plaintext is never persisted.
func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)

	var req CreateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Username, "username") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Password, "password") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.OrganizationID, "organization_id") {
		return
	}

	level := auth.AccessLevel(req.AccessLevel)
	if req.AccessLevel == "" {
		level = auth.AccessLevelUser
	}
	if !level.Valid() {
		httputil.WriteBadRequest(w, "invalid access_level")
		return
	}
	// Only a system admin can mint another system admin.
	if level == auth.AccessLevelSystemAdmin && !isSystemAdmin(session) {
		writeDomainError(w, rbac.ErrAccessDenied)
		return
	}

	if err := s.engine.Authorize(r.Context(), session, rbac.CapabilityWrite, rbac.Target{OrganizationID: req.OrganizationID}); err != nil {
		writeDomainError(w, err)
		return
	}

	hash, err := s.service.HashPassword(r.Context(), req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	user := &auth.User{
		Username:       req.Username,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		PasswordHash:   hash,
		OrganizationID: req.OrganizationID,
		AccessLevel:    level,
		IsActive:       true,
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, user)
}

// listUsers handles GET /api/v1/users?organization_id=
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)

	orgID := httputil.ParseQueryString(r, "organization_id", session.OrganizationID)
	if err := s.engine.Authorize(r.Context(), session, rbac.CapabilityRead, rbac.Target{OrganizationID: orgID}); err != nil {
		writeDomainError(w, err)
		return
	}

	users, err := s.store.ListUsers(r.Context(), orgID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, users)
}

// getUser handles GET /api/v1/users/{id}. Self-read is always allowed.
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if session == nil {
		writeDomainError(w, rbac.ErrAccessDenied)
		return
	}
	if session.UserID != id {
		if err := s.authorizeUserAdmin(r, session, id); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// updateUser handles PUT /api/v1/users/{id}. Profile fields may be
// updated by the user themselves; access level and active flag changes
// require admin rights over the user's organization.
func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if session == nil {
		writeDomainError(w, rbac.ErrAccessDenied)
		return
	}

	var req UpdateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	self := session.UserID == id
	adminChange := req.AccessLevel != "" || req.IsActive != nil
	if !self || adminChange {
		if err := s.authorizeUserAdmin(r, session, id); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	if req.Email != "" {
		user.Email = req.Email
	}
	if req.AccessLevel != "" {
		level := auth.AccessLevel(req.AccessLevel)
		if !level.Valid() {
			httputil.WriteBadRequest(w, "invalid access_level")
			return
		}
		if level == auth.AccessLevelSystemAdmin && !isSystemAdmin(session) {
			writeDomainError(w, rbac.ErrAccessDenied)
			return
		}
		user.AccessLevel = level
	}

	deactivated := false
	if req.IsActive != nil {
		deactivated = user.IsActive && !*req.IsActive
		user.IsActive = *req.IsActive
	}

	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		writeDomainError(w, err)
		return
	}

	// Deactivation revokes all sessions so the account loses access
	// immediately rather than at token expiry.
	if deactivated {
		if err := s.service.RevokeSessions(r.Context(), user.ID); err != nil {
			s.logger.WithError(err).WithField("user_id", user.ID).Error("failed to revoke sessions for deactivated user")
		}
	}
	httputil.WriteSuccess(w, user)
}

// deleteUser handles DELETE /api/v1/users/{id}. Admin-only; the user's
// study grants cascade away and their sessions are revoked.
func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if session == nil {
		writeDomainError(w, rbac.ErrAccessDenied)
		return
	}
	if err := s.authorizeUserAdmin(r, session, id); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.service.RevokeSessions(r.Context(), id); err != nil {
		s.logger.WithError(err).WithField("user_id", id).Error("failed to revoke sessions for deleted user")
	}
	httputil.WriteNoContent(w)
}
