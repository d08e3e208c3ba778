package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/lattice/pkg/authz"
	"github.com/platinummonkey/lattice/pkg/graph"
	"github.com/platinummonkey/lattice/pkg/httputil"
	"github.com/platinummonkey/lattice/pkg/middleware"
	"github.com/platinummonkey/lattice/pkg/workspaces"
)

// ObjectHandlers exposes object lifecycle inside workspaces plus the global
// object and provenance views.
type ObjectHandlers struct {
	workspaces *workspaces.Service
	provenance *authz.ProvenanceResolver
}

// NewObjectHandlers creates a new object handlers instance
func NewObjectHandlers(svc *workspaces.Service, provenance *authz.ProvenanceResolver) *ObjectHandlers {
	return &ObjectHandlers{workspaces: svc, provenance: provenance}
}

// RegisterRoutes registers object routes
func (h *ObjectHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/workspaces/{id}/objects", h.listObjects).Methods("GET")
	router.HandleFunc("/workspaces/{id}/objects", h.createObject).Methods("POST")
	router.HandleFunc("/workspaces/{id}/objects/{objectID}", h.editObject).Methods("PUT")
	router.HandleFunc("/workspaces/{id}/objects/{objectID}", h.removeObject).Methods("DELETE")
	router.HandleFunc("/objects", h.listVisibleObjects).Methods("GET")
	router.HandleFunc("/objects/{id}/provenance", h.getProvenance).Methods("GET")
}

// listObjects handles GET /workspaces/{id}/objects
func (h *ObjectHandlers) listObjects(w http.ResponseWriter, r *http.Request) {
	key, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	principal := middleware.PrincipalFrom(r.Context())
	objects, err := h.workspaces.ListObjects(r.Context(), principal, graph.JoinID(graph.KindWorkspace, key))
	if err != nil {
		httputil.WriteErrorKind(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"objects": objects})
}

// createObject handles POST /workspaces/{id}/objects
func (h *ObjectHandlers) createObject(w http.ResponseWriter, r *http.Request) {
	key, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
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
	obj, err := h.workspaces.CreateObject(r.Context(), principal, graph.JoinID(graph.KindWorkspace, key), req.Name)
	if err != nil {
		httputil.WriteErrorKind(w, err)
		return
	}
	httputil.WriteCreated(w, obj)
}

// editObject handles PUT /workspaces/{id}/objects/{objectID}. Objects are
// immutable; the edit creates the next version and links it with an updatedTo
// edge. The previous version stays in the workspace until removed.
func (h *ObjectHandlers) editObject(w http.ResponseWriter, r *http.Request) {
	wsKey, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	objKey, ok := httputil.ParsePathStringOrError(w, r, "objectID")
	if !ok {
		return
	}
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
	next, err := h.workspaces.EditObject(
		r.Context(),
		principal,
		graph.JoinID(graph.KindWorkspace, wsKey),
		graph.JoinID(graph.KindObject, objKey),
		req.Name,
	)
	if err != nil {
		httputil.WriteErrorKind(w, err)
		return
	}
	httputil.WriteCreated(w, next)
}

// removeObject handles DELETE /workspaces/{id}/objects/{objectID}
func (h *ObjectHandlers) removeObject(w http.ResponseWriter, r *http.Request) {
	wsKey, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	objKey, ok := httputil.ParsePathStringOrError(w, r, "objectID")
	if !ok {
		return
	}

	principal := middleware.PrincipalFrom(r.Context())
	err := h.workspaces.RemoveObject(
		r.Context(),
		principal,
		graph.JoinID(graph.KindWorkspace, wsKey),
		graph.JoinID(graph.KindObject, objKey),
	)
	if err != nil {
		httputil.WriteErrorKind(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listVisibleObjects handles GET /objects: every object the principal can
// reach through a visible workspace, ancestors included.
func (h *ObjectHandlers) listVisibleObjects(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFrom(r.Context())
	objects, err := h.provenance.ObjectsVisibleTo(r.Context(), principal)
	if err != nil {
		httputil.WriteErrorKind(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"objects": objects})
}

// getProvenance handles GET /objects/{id}/provenance. The chain is ordered
// newest to oldest. Access requires that the head object is visible to the
// principal.
func (h *ObjectHandlers) getProvenance(w http.ResponseWriter, r *http.Request) {
	key, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	principal := middleware.PrincipalFrom(r.Context())
	objectID := graph.JoinID(graph.KindObject, key)

	visible, err := h.provenance.ObjectsVisibleTo(r.Context(), principal)
	if err != nil {
		httputil.WriteErrorKind(w, err)
		return
	}
	seen := false
	for _, obj := range visible {
		if obj.ID == objectID {
			seen = true
			break
		}
	}
	if !seen {
		// Hide existence from callers who cannot see the object.
		httputil.WriteErrorKind(w, graph.ErrNotFound)
		return
	}

	chain, err := h.provenance.ProvenanceChain(r.Context(), objectID)
	if err != nil {
		if errors.Is(err, graph.ErrNotFound) {
			httputil.WriteNotFoundError(w, "object not found")
			return
		}
		httputil.WriteErrorKind(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"chain": chain})
}
