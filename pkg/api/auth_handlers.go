package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/cohort/pkg/auth"
	"github.com/platinummonkey/cohort/pkg/httputil"
	"github.com/platinummonkey/cohort/pkg/rbac"
)

// login handles POST /api/v1/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Username, "username") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Password, "password") {
		return
	}

	token, err := s.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if s.metrics != nil {
			s.metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()
		}
		writeDomainError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	}
	httputil.WriteSuccess(w, LoginResponse{Token: token})
}

// logout handles POST /api/v1/logout. Revokes the presented token only;
// other sessions for the same user stay valid.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		httputil.WriteUnauthorized(w, "missing authorization header")
		return
	}

	if err := s.service.Logout(r.Context(), token); err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// me handles GET /api/v1/me
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)
	if session == nil {
		writeDomainError(w, rbac.ErrAccessDenied)
		return
	}

	user, err := s.store.GetUser(r.Context(), session.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// changePassword handles POST /api/v1/me/password. A successful change
// revokes every session for the user, including the one making the call.
func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)
	if session == nil {
		writeDomainError(w, rbac.ErrAccessDenied)
		return
	}

	var req ChangePasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.OldPassword, "old_password") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.NewPassword, "new_password") {
		return
	}

	if err := s.service.ChangePassword(r.Context(), session.UserID, req.OldPassword, req.NewPassword); err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// revokeUserSessions handles POST /api/v1/users/{id}/sessions/revoke.
// Users may revoke their own sessions; admins may revoke for users in
// scope.
func (s *Server) revokeUserSessions(w http.ResponseWriter, r *http.Request) {
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

	if err := s.service.RevokeSessions(r.Context(), userID); err != nil {
		writeDomainError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.SessionRevocationsTotal.WithLabelValues("all_for_user").Inc()
	}
	httputil.WriteNoContent(w)
}

// authorizeUserAdmin checks that the session may administer the target
// user's account. The target user's organization is loaded from the store
// so a cross-tenant user id is indistinguishable from a missing one.
func (s *Server) authorizeUserAdmin(r *http.Request, session *auth.Session, userID string) error {
	if !isAdmin(session) {
		return rbac.ErrAccessDenied
	}

	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) && !isSystemAdmin(session) {
			return rbac.ErrAccessDenied
		}
		return err
	}
	return s.engine.Authorize(r.Context(), session, rbac.CapabilityManage, rbac.Target{
		OrganizationID: user.OrganizationID,
	})
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
