package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/lattice/pkg/authz"
	"github.com/platinummonkey/lattice/pkg/graph"
	"github.com/platinummonkey/lattice/pkg/httputil"
	"github.com/platinummonkey/lattice/pkg/middleware"
	"github.com/platinummonkey/lattice/pkg/workspaces"
)

// WorkspaceHandlers exposes workspace CRUD, copy and grant management.
type WorkspaceHandlers struct {
	workspaces *workspaces.Service
	visibility *authz.VisibilityFilter
}

// NewWorkspaceHandlers creates a new workspace handlers instance
func NewWorkspaceHandlers(svc *workspaces.Service, visibility *authz.VisibilityFilter) *WorkspaceHandlers {
	return &WorkspaceHandlers{workspaces: svc, visibility: visibility}
}

// RegisterRoutes registers workspace routes
func (h *WorkspaceHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/workspaces", h.createWorkspace).Methods("POST")
	router.HandleFunc("/workspaces", h.listWorkspaces).Methods("GET")
	router.HandleFunc("/workspaces/{id}", h.getWorkspace).Methods("GET")
	router.HandleFunc("/workspaces/{id}", h.updateWorkspace).Methods("PATCH", "PUT")
	router.HandleFunc("/workspaces/{id}/copy", h.copyWorkspace).Methods("POST")
	router.HandleFunc("/workspaces/{id}/viewer", h.addViewer).Methods("POST")
	router.HandleFunc("/workspaces/{id}/editor", h.addEditor).Methods("POST")
}

// createWorkspace handles POST /workspaces
func (h *WorkspaceHandlers) createWorkspace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	principal := middleware.PrincipalFrom(r.Context())
	ws, err := h.workspaces.CreateWorkspace(r.Context(), principal, req.Name)
	if err != nil {
		httputil.WriteErrorKind(w, err)
		return
	}
	httputil.WriteCreated(w, ws)
}

// listWorkspaces handles GET /workspaces. The result is limited to what the
// requesting principal may see; anonymous callers get public workspaces only.
func (h *WorkspaceHandlers) listWorkspaces(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFrom(r.Context())
	list, err := h.visibility.VisibleWorkspaces(r.Context(), principal)
	if err != nil {
		httputil.WriteErrorKind(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"workspaces": list})
}

// getWorkspace handles GET /workspaces/{id}
func (h *WorkspaceHandlers) getWorkspace(w http.ResponseWriter, r *http.Request) {
	key, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	principal := middleware.PrincipalFrom(r.Context())
	ws, err := h.workspaces.GetWorkspace(r.Context(), principal, graph.JoinID(graph.KindWorkspace, key))
	if err != nil {
		httputil.WriteErrorKind(w, err)
		return
	}
	httputil.WriteSuccess(w, ws)
}

// updateWorkspace handles PATCH /workspaces/{id}
func (h *WorkspaceHandlers) updateWorkspace(w http.ResponseWriter, r *http.Request) {
	key, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var patch workspaces.Patch
	if !httputil.ParseJSONOrError(w, r, &patch) {
		return
	}
	if patch.Name != nil && *patch.Name == "" {
		httputil.WriteValidationError(w, "name must not be empty")
		return
	}

	principal := middleware.PrincipalFrom(r.Context())
	ws, err := h.workspaces.UpdateWorkspace(r.Context(), principal, graph.JoinID(graph.KindWorkspace, key), patch)
	if err != nil {
		httputil.WriteErrorKind(w, err)
		return
	}
	httputil.WriteSuccess(w, ws)
}

// copyWorkspace handles POST /workspaces/{id}/copy
func (h *WorkspaceHandlers) copyWorkspace(w http.ResponseWriter, r *http.Request) {
	key, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	principal := middleware.PrincipalFrom(r.Context())
	copy, err := h.workspaces.CopyWorkspace(r.Context(), principal, graph.JoinID(graph.KindWorkspace, key))
	if err != nil {
		httputil.WriteErrorKind(w, err)
		return
	}
	httputil.WriteCreated(w, copy)
}

// addViewer handles POST /workspaces/{id}/viewer
func (h *WorkspaceHandlers) addViewer(w http.ResponseWriter, r *http.Request) {
	h.addGrant(w, r, graph.PermCanView)
}

// addEditor handles POST /workspaces/{id}/editor
func (h *WorkspaceHandlers) addEditor(w http.ResponseWriter, r *http.Request) {
	h.addGrant(w, r, graph.PermCanEdit)
}

func (h *WorkspaceHandlers) addGrant(w http.ResponseWriter, r *http.Request, perm graph.Perm) {
	key, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}

	principal := middleware.PrincipalFrom(r.Context())
	ws, err := h.workspaces.AddGrant(r.Context(), principal, graph.JoinID(graph.KindWorkspace, key), req.Email, perm)
	if err != nil {
		httputil.WriteErrorKind(w, err)
		return
	}
	httputil.WriteSuccess(w, ws)
}
