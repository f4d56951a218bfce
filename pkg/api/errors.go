package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/cohort/pkg/auth"
	"github.com/platinummonkey/cohort/pkg/httputil"
	"github.com/platinummonkey/cohort/pkg/rbac"
	"github.com/platinummonkey/cohort/pkg/storage"
)

// writeDomainError maps domain errors to HTTP statuses. Every handler
// funnels errors through here so equivalent failures always produce the
// same response shape.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		httputil.WriteUnauthorized(w, auth.ErrInvalidCredentials.Error())
	case errors.Is(err, auth.ErrSessionNotFound):
		httputil.WriteUnauthorized(w, "invalid or expired session")
	case errors.Is(err, auth.ErrAccountInactive):
		httputil.WriteForbidden(w, auth.ErrAccountInactive.Error())
	case errors.Is(err, rbac.ErrAccessDenied):
		httputil.WriteForbidden(w, rbac.ErrAccessDenied.Error())
	case errors.Is(err, auth.ErrNotFound):
		httputil.WriteNotFound(w, "not found")
	case errors.Is(err, storage.ErrDuplicateKey):
		httputil.WriteConflict(w, "resource already exists")
	case errors.Is(err, storage.ErrReferentialIntegrity):
		httputil.WriteConflict(w, "referenced resource does not exist")
	case errors.Is(err, storage.ErrStorageUnavailable),
		errors.Is(err, storage.ErrCacheUnavailable):
		httputil.WriteServiceUnavailable(w, "service temporarily unavailable")
	default:
		httputil.WriteInternalError(w, errors.New("internal server error"))
	}
}
