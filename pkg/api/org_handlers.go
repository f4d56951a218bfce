package api

import (
	"net/http"

	"github.com/platinummonkey/cohort/pkg/auth"
	"github.com/platinummonkey/cohort/pkg/httputil"
	"github.com/platinummonkey/cohort/pkg/rbac"
)

// createOrganization handles POST /api/v1/organizations. Only system
// admins create tenancy roots.
func (s *Server) createOrganization(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)
	if !isSystemAdmin(session) {
		writeDomainError(w, rbac.ErrAccessDenied)
		return
	}

	var req CreateOrganizationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	org := &auth.Organization{
		Name:     req.Name,
		IsActive: true,
	}
	if req.IsActive != nil {
		org.IsActive = *req.IsActive
	}

	if err := s.store.CreateOrganization(r.Context(), org); err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, org)
}

// listOrganizations handles GET /api/v1/organizations. System admins see
// every organization; everyone else sees only their own.
func (s *Server) listOrganizations(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)
	if session == nil {
		writeDomainError(w, rbac.ErrAccessDenied)
		return
	}

	if isSystemAdmin(session) {
		orgs, err := s.store.ListOrganizations(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		httputil.WriteSuccess(w, orgs)
		return
	}

	org, err := s.store.GetOrganization(r.Context(), session.OrganizationID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, []*auth.Organization{org})
}

// getOrganization handles GET /api/v1/organizations/{id}
func (s *Server) getOrganization(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	// Any member may read their own organization; everything else goes
	// through the engine.
	if session == nil || (session.OrganizationID != id && !isSystemAdmin(session)) {
		if err := s.engine.Authorize(r.Context(), session, rbac.CapabilityRead, rbac.Target{OrganizationID: id}); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	org, err := s.store.GetOrganization(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, org)
}

// updateOrganization handles PUT /api/v1/organizations/{id}. System
// admins update any organization; organization admins update their own.
func (s *Server) updateOrganization(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if !isAdmin(session) {
		writeDomainError(w, rbac.ErrAccessDenied)
		return
	}
	if err := s.engine.Authorize(r.Context(), session, rbac.CapabilityManage, rbac.Target{OrganizationID: id}); err != nil {
		writeDomainError(w, err)
		return
	}

	var req UpdateOrganizationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	org, err := s.store.GetOrganization(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if req.Name != "" {
		org.Name = req.Name
	}
	if req.IsActive != nil {
		org.IsActive = *req.IsActive
	}

	if err := s.store.UpdateOrganization(r.Context(), org); err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, org)
}

// deleteOrganization handles DELETE /api/v1/organizations/{id}. Only
// system admins delete organizations; the delete cascades through
// studies, users, and grants atomically.
func (s *Server) deleteOrganization(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if !isSystemAdmin(session) {
		writeDomainError(w, rbac.ErrAccessDenied)
		return
	}

	if err := s.store.DeleteOrganization(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	// Every cached scope decision under this organization is stale now.
	s.engine.InvalidateAll()
	httputil.WriteNoContent(w)
}
