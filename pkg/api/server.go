package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/lattice/pkg/authz"
	"github.com/platinummonkey/lattice/pkg/graph"
	"github.com/platinummonkey/lattice/pkg/httputil"
	"github.com/platinummonkey/lattice/pkg/middleware"
	"github.com/platinummonkey/lattice/pkg/observability"
	"github.com/platinummonkey/lattice/pkg/sessions"
	"github.com/platinummonkey/lattice/pkg/users"
	"github.com/platinummonkey/lattice/pkg/workspaces"
)

// Server assembles the HTTP API.
type Server struct {
	router *mux.Router
}

// Deps carries the wired dependencies for the API. Metrics may be nil.
type Deps struct {
	Store      graph.Store
	Users      *users.Service
	Workspaces *workspaces.Service
	Visibility *authz.VisibilityFilter
	Provenance *authz.ProvenanceResolver
	Sessions   *sessions.Manager
	Logger     *observability.Logger
	Metrics    *observability.Metrics

	// MaxBodyBytes bounds request body size; zero means 1 MiB.
	MaxBodyBytes int64
}

// NewServer builds the router with all handlers and middleware registered.
func NewServer(deps Deps) *Server {
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = 1 << 20
	}

	router := mux.NewRouter()
	router.Use(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(deps.Logger),
		httputil.LoggingMiddleware(deps.Logger),
		httputil.MaxBytesMiddleware(deps.MaxBodyBytes),
	)
	if deps.Metrics != nil {
		router.Use(httputil.MetricsMiddleware(deps.Metrics))
	}

	resolver := middleware.NewPrincipalResolver(deps.Sessions, deps.Store, deps.Logger)
	router.Use(resolver.Middleware)

	NewAuthHandlers(deps.Users, deps.Sessions).RegisterRoutes(router)
	NewUserHandlers(deps.Users).RegisterRoutes(router)
	NewWorkspaceHandlers(deps.Workspaces, deps.Visibility).RegisterRoutes(router)
	NewObjectHandlers(deps.Workspaces, deps.Provenance).RegisterRoutes(router)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return &Server{router: router}
}

// Router returns the assembled handler.
func (s *Server) Router() http.Handler {
	return s.router
}
