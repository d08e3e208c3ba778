package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/lattice/pkg/graph"
	"github.com/platinummonkey/lattice/pkg/httputil"
	"github.com/platinummonkey/lattice/pkg/middleware"
	"github.com/platinummonkey/lattice/pkg/users"
)

// UserHandlers exposes sysadmin-only user administration.
type UserHandlers struct {
	users *users.Service
}

// NewUserHandlers creates a new user handlers instance
func NewUserHandlers(users *users.Service) *UserHandlers {
	return &UserHandlers{users: users}
}

// RegisterRoutes registers user administration routes
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users", h.listUsers).Methods("GET")
	router.HandleFunc("/users/{id}", h.getUser).Methods("GET")
	router.HandleFunc("/users/{id}", h.deleteUser).Methods("DELETE")
}

// listUsers handles GET /users. An email query parameter narrows the result
// to a single-user lookup.
func (h *UserHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFrom(r.Context())
	if email := httputil.ParseQueryString(r, "email", ""); email != "" {
		user, err := h.users.LookupByEmail(r.Context(), principal, email)
		if err != nil {
			httputil.WriteErrorKind(w, err)
			return
		}
		httputil.WriteSuccess(w, map[string]interface{}{"users": []*graph.User{user}})
		return
	}
	list, err := h.users.List(r.Context(), principal)
	if err != nil {
		httputil.WriteErrorKind(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"users": list})
}

// getUser handles GET /users/{id}
func (h *UserHandlers) getUser(w http.ResponseWriter, r *http.Request) {
	key, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	principal := middleware.PrincipalFrom(r.Context())
	user, err := h.users.Get(r.Context(), principal, graph.JoinID(graph.KindUser, key))
	if err != nil {
		httputil.WriteErrorKind(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// deleteUser handles DELETE /users/{id}
func (h *UserHandlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	key, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	principal := middleware.PrincipalFrom(r.Context())
	if err := h.users.Delete(r.Context(), principal, graph.JoinID(graph.KindUser, key)); err != nil {
		httputil.WriteErrorKind(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
