package api

import (
	"net/http"

	"github.com/platinummonkey/cohort/pkg/auth"
	"github.com/platinummonkey/cohort/pkg/httputil"
	"github.com/platinummonkey/cohort/pkg/rbac"
)

// createStudy handles POST /api/v1/studies. Requires admin rights over
// the owning organization.
func (s *Server) createStudy(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)

	var req CreateStudyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.StudyCode, "study_code") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.OrganizationID, "organization_id") {
		return
	}

	if !isAdmin(session) {
		writeDomainError(w, rbac.ErrAccessDenied)
		return
	}
	if err := s.engine.Authorize(r.Context(), session, rbac.CapabilityWrite, rbac.Target{OrganizationID: req.OrganizationID}); err != nil {
		writeDomainError(w, err)
		return
	}

	study := &auth.Study{
		StudyCode:      req.StudyCode,
		Name:           req.Name,
		Description:    req.Description,
		OrganizationID: req.OrganizationID,
	}
	if err := s.store.CreateStudy(r.Context(), study); err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, study)
}

// listStudies handles GET /api/v1/studies?organization_id=. Admins list
// an organization's studies; plain users list the studies they hold
// grants for.
func (s *Server) listStudies(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)
	if session == nil {
		writeDomainError(w, rbac.ErrAccessDenied)
		return
	}

	if session.AccessLevel == auth.AccessLevelUser {
		grants, err := s.store.ListStudyGrants(r.Context(), session.UserID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		studies := make([]*auth.Study, 0, len(grants))
		for _, g := range grants {
			study, err := s.store.GetStudy(r.Context(), g.StudyID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			studies = append(studies, study)
		}
		httputil.WriteSuccess(w, studies)
		return
	}

	orgID := httputil.ParseQueryString(r, "organization_id", session.OrganizationID)
	if err := s.engine.Authorize(r.Context(), session, rbac.CapabilityRead, rbac.Target{OrganizationID: orgID}); err != nil {
		writeDomainError(w, err)
		return
	}

	studies, err := s.store.ListStudies(r.Context(), orgID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, studies)
}

// getStudy handles GET /api/v1/studies/{id}
func (s *Server) getStudy(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	study, err := s.loadAuthorizedStudy(r, session, id, rbac.CapabilityRead)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, study)
}

// updateStudy handles PUT /api/v1/studies/{id}. Granted users may write
// within a study; the owning organization never changes.
func (s *Server) updateStudy(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	study, err := s.loadAuthorizedStudy(r, session, id, rbac.CapabilityWrite)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req UpdateStudyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.StudyCode != "" {
		study.StudyCode = req.StudyCode
	}
	if req.Name != "" {
		study.Name = req.Name
	}
	if req.Description != "" {
		study.Description = req.Description
	}

	if err := s.store.UpdateStudy(r.Context(), study); err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, study)
}

// deleteStudy handles DELETE /api/v1/studies/{id}. Admin-only; grants
// under the study cascade away with it.
func (s *Server) deleteStudy(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if !isAdmin(session) {
		writeDomainError(w, rbac.ErrAccessDenied)
		return
	}
	if _, err := s.loadAuthorizedStudy(r, session, id, rbac.CapabilityManage); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.store.DeleteStudy(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	s.engine.InvalidateStudy(id)
	httputil.WriteNoContent(w)
}

// loadAuthorizedStudy fetches the study and authorizes the session
// against it. The study's organization comes from the store, never from
// the request, so a forged organization id cannot widen scope. A study
// outside the caller's scope reports as denied, not as found-elsewhere.
func (s *Server) loadAuthorizedStudy(r *http.Request, session *auth.Session, id string, capability rbac.Capability) (*auth.Study, error) {
	study, err := s.store.GetStudy(r.Context(), id)
	if err != nil {
		return nil, err
	}

	err = s.engine.Authorize(r.Context(), session, capability, rbac.Target{
		OrganizationID: study.OrganizationID,
		StudyID:        study.ID,
	})
	if err != nil {
		return nil, err
	}
	return study, nil
}
