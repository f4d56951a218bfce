package middleware

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/cohort/pkg/auth"
	"github.com/platinummonkey/cohort/pkg/contextkeys"
)

// AuthMiddleware validates session tokens on incoming requests.
type AuthMiddleware struct {
	service  *auth.Service
	optional bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(service *auth.Service, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		service:  service,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract token from Authorization header
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			unauthorizedResponse(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorizedResponse(w, "invalid authorization header format")
			return
		}

		session, err := m.service.Authenticate(r.Context(), parts[1])
		if err != nil {
			// ErrSessionNotFound covers missing, expired and revoked
			// sessions; cache outages surface the same way so callers
			// cannot distinguish a revoked token from a degraded cache.
			unauthorizedResponse(w, "invalid or expired session")
			return
		}

		ctx := contextkeys.WithSession(r.Context(), session)
		ctx = contextkeys.WithUserID(ctx, session.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorizedResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

// GetSession extracts the validated session from a request.
// Returns nil for unauthenticated requests.
func GetSession(r *http.Request) *auth.Session {
	ctx := r.Context().Value(contextkeys.SessionKey)
	if ctx == nil {
		return nil
	}
	session, ok := ctx.(*auth.Session)
	if !ok {
		return nil
	}
	return session
}

// RequireAccessLevel creates middleware that rejects sessions below the
// given access level. system_admin passes every check; organization_admin
// passes organization_admin and user checks.
func RequireAccessLevel(level auth.AccessLevel) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := GetSession(r)
			if session == nil {
				forbiddenResponse(w, "authentication required")
				return
			}

			if !levelAtLeast(session.AccessLevel, level) {
				forbiddenResponse(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func levelAtLeast(have, want auth.AccessLevel) bool {
	rank := map[auth.AccessLevel]int{
		auth.AccessLevelUser:        1,
		auth.AccessLevelOrgAdmin:    2,
		auth.AccessLevelSystemAdmin: 3,
	}
	return rank[have] >= rank[want]
}

func forbiddenResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
