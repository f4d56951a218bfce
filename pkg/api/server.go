package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/cohort/pkg/auth"
	"github.com/platinummonkey/cohort/pkg/httputil"
	"github.com/platinummonkey/cohort/pkg/middleware"
	"github.com/platinummonkey/cohort/pkg/observability"
	"github.com/platinummonkey/cohort/pkg/rbac"
	"github.com/platinummonkey/cohort/pkg/storage"
)

const maxRequestBody = 1 << 20 // 1MB

// Server represents our API server
type Server struct {
	store   storage.Store
	service *auth.Service
	engine  *rbac.Engine
	router  *mux.Router
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewServer creates a new API server
func NewServer(store storage.Store, service *auth.Service, engine *rbac.Engine, logger *observability.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		store:   store,
		service: service,
		engine:  engine,
		router:  mux.NewRouter(),
		logger:  logger,
		metrics: metrics,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(httputil.MaxBytesMiddleware(maxRequestBody))

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/login", s.login).Methods("POST")

	// Everything else requires a valid session
	authn := middleware.NewAuthMiddleware(s.service, false)
	protected := api.NewRoute().Subrouter()
	protected.Use(authn.Handler)

	protected.HandleFunc("/logout", s.logout).Methods("POST")
	protected.HandleFunc("/me", s.me).Methods("GET")
	protected.HandleFunc("/me/password", s.changePassword).Methods("POST")

	// Organizations
	protected.HandleFunc("/organizations", s.createOrganization).Methods("POST")
	protected.HandleFunc("/organizations", s.listOrganizations).Methods("GET")
	protected.HandleFunc("/organizations/{id}", s.getOrganization).Methods("GET")
	protected.HandleFunc("/organizations/{id}", s.updateOrganization).Methods("PUT")
	protected.HandleFunc("/organizations/{id}", s.deleteOrganization).Methods("DELETE")

	// Studies
	protected.HandleFunc("/studies", s.createStudy).Methods("POST")
	protected.HandleFunc("/studies", s.listStudies).Methods("GET")
	protected.HandleFunc("/studies/{id}", s.getStudy).Methods("GET")
	protected.HandleFunc("/studies/{id}", s.updateStudy).Methods("PUT")
	protected.HandleFunc("/studies/{id}", s.deleteStudy).Methods("DELETE")

	// Study membership grants
	protected.HandleFunc("/studies/{id}/grants", s.addGrant).Methods("POST")
	protected.HandleFunc("/studies/{id}/grants/{user_id}", s.removeGrant).Methods("DELETE")

	// Users. Creating and listing accounts is gated to administrators up
	// front; the handlers still scope everything to the caller's
	// organization.
	admin := protected.NewRoute().Subrouter()
	admin.Use(middleware.RequireAccessLevel(auth.AccessLevelOrgAdmin))
	admin.HandleFunc("/users", s.createUser).Methods("POST")
	admin.HandleFunc("/users", s.listUsers).Methods("GET")

	protected.HandleFunc("/users/{id}", s.getUser).Methods("GET")
	protected.HandleFunc("/users/{id}", s.updateUser).Methods("PUT")
	protected.HandleFunc("/users/{id}", s.deleteUser).Methods("DELETE")
	protected.HandleFunc("/users/{id}/studies", s.listUserStudies).Methods("GET")
	protected.HandleFunc("/users/{id}/sessions/revoke", s.revokeUserSessions).Methods("POST")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router returns the underlying router so callers can mount additional
// routes or wrap the full chain.
func (s *Server) Router() *mux.Router {
	return s.router
}

// session pulls the validated session out of the request context. Routes
// behind the auth middleware always have one; a nil here means a routing
// mistake and is treated as denied.
func (s *Server) session(r *http.Request) *auth.Session {
	return middleware.GetSession(r)
}

// isAdmin reports whether the session holds an administrative level.
func isAdmin(session *auth.Session) bool {
	return session != nil &&
		(session.AccessLevel == auth.AccessLevelSystemAdmin ||
			session.AccessLevel == auth.AccessLevelOrgAdmin)
}

// isSystemAdmin reports whether the session is a platform operator.
func isSystemAdmin(session *auth.Session) bool {
	return session != nil && session.AccessLevel == auth.AccessLevelSystemAdmin
}
