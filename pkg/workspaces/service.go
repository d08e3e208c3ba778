package workspaces

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/platinummonkey/lattice/pkg/authz"
	"github.com/platinummonkey/lattice/pkg/graph"
	"github.com/platinummonkey/lattice/pkg/observability"
)

// Patch carries the mutable workspace fields; nil means "leave unchanged".
type Patch struct {
	Name     *string `json:"name,omitempty"`
	IsPublic *bool   `json:"is_public,omitempty"`
}

// Options tunes service policy.
type Options struct {
	// RequireSourceView, when set, makes CopyWorkspace verify that the
	// acting principal can view the source workspace. The source system
	// allowed anyone who could name the key to copy, so this defaults to
	// off.
	RequireSourceView bool
}

// Service implements workspace and object mutations over the graph store.
type Service struct {
	store      graph.Store
	checker    *authz.Checker
	visibility *authz.VisibilityFilter
	opts       Options
	log        *observability.Logger
}

// NewService creates a workspace service.
func NewService(store graph.Store, checker *authz.Checker, visibility *authz.VisibilityFilter, opts Options, log *observability.Logger) *Service {
	return &Service{
		store:      store,
		checker:    checker,
		visibility: visibility,
		opts:       opts,
		log:        log,
	}
}

// CreateWorkspace creates a workspace owned by the principal. The creator
// receives a canEdit grant edge on the new workspace.
func (s *Service) CreateWorkspace(ctx context.Context, principal *graph.User, name string) (*graph.Workspace, error) {
	ok, err := s.checker.Check(ctx, principal, nil, "")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("create workspace: %w", graph.ErrUnauthorized)
	}

	ws := &graph.Workspace{Name: name, CreatedAt: time.Now().UTC()}
	if err := s.store.SaveWorkspace(ctx, ws); err != nil {
		return nil, fmt.Errorf("save workspace: %w", err)
	}
	if err := s.grantEdit(ctx, principal.ID, ws.ID); err != nil {
		// The workspace node exists but the grant write failed; no
		// rollback, the caller may retry the grant.
		s.log.WithError(err).WithField("workspace", ws.ID).Error("workspace created but canEdit grant failed")
		return nil, err
	}
	return ws, nil
}

// GetWorkspace returns a workspace the principal is allowed to view.
func (s *Service) GetWorkspace(ctx context.Context, principal *graph.User, workspaceID string) (*graph.Workspace, error) {
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := s.requireView(ctx, principal, ws); err != nil {
		return nil, err
	}
	return ws, nil
}

// ListObjects returns the objects currently contained in a workspace, sorted
// by name. The principal must be able to view the workspace.
func (s *Service) ListObjects(ctx context.Context, principal *graph.User, workspaceID string) ([]graph.Object, error) {
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := s.requireView(ctx, principal, ws); err != nil {
		return nil, err
	}

	edges, err := s.store.EdgesFrom(ctx, graph.EdgeContains, ws.ID)
	if err != nil {
		return nil, fmt.Errorf("list contents of %s: %w", ws.ID, err)
	}
	objects := make([]graph.Object, 0, len(edges))
	for _, e := range edges {
		obj, err := s.store.GetObject(ctx, e.To)
		if err != nil {
			// Dangling contains edge, skip it.
			if errors.Is(err, graph.ErrNotFound) {
				continue
			}
			return nil, err
		}
		objects = append(objects, *obj)
	}
	sort.Slice(objects, func(i, j int) bool {
		if objects[i].Name != objects[j].Name {
			return objects[i].Name < objects[j].Name
		}
		if objects[i].Version != objects[j].Version {
			return objects[i].Version < objects[j].Version
		}
		return objects[i].ID < objects[j].ID
	})
	if len(objects) > authz.ListingCap {
		objects = objects[:authz.ListingCap]
	}
	return objects, nil
}

// UpdateWorkspace mutates name/visibility of an existing workspace in place.
// Requires canEdit on the workspace.
func (s *Service) UpdateWorkspace(ctx context.Context, principal *graph.User, workspaceID string, patch Patch) (*graph.Workspace, error) {
	if err := s.requireEdit(ctx, principal, workspaceID); err != nil {
		return nil, err
	}
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		ws.Name = *patch.Name
	}
	if patch.IsPublic != nil {
		ws.IsPublic = *patch.IsPublic
	}
	if err := s.store.UpdateWorkspace(ctx, ws); err != nil {
		return nil, fmt.Errorf("update workspace %s: %w", workspaceID, err)
	}
	return ws, nil
}

// CopyWorkspace creates a private copy of a workspace: a fresh workspace
// named "<source> (copy)" with duplicated contains edges pointing at the
// same objects. No hasPerm edges are copied; the acting principal receives a
// fresh canEdit grant on the copy.
func (s *Service) CopyWorkspace(ctx context.Context, principal *graph.User, workspaceID string) (*graph.Workspace, error) {
	ok, err := s.checker.Check(ctx, principal, nil, "")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("copy workspace: %w", graph.ErrUnauthorized)
	}

	src, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if s.opts.RequireSourceView {
		canView, err := s.visibility.CanView(ctx, principal, src)
		if err != nil {
			return nil, err
		}
		if !canView {
			return nil, fmt.Errorf("copy workspace %s: %w", workspaceID, graph.ErrForbidden)
		}
	}

	dst := &graph.Workspace{Name: src.Name + " (copy)", CreatedAt: time.Now().UTC()}
	if err := s.store.SaveWorkspace(ctx, dst); err != nil {
		return nil, fmt.Errorf("save workspace copy: %w", err)
	}

	contained, err := s.store.EdgesFrom(ctx, graph.EdgeContains, src.ID)
	if err != nil {
		return nil, fmt.Errorf("list contents of %s: %w", src.ID, err)
	}
	for _, e := range contained {
		edge := &graph.Edge{Kind: graph.EdgeContains, From: dst.ID, To: e.To}
		if err := s.store.SaveEdge(ctx, edge); err != nil {
			s.log.WithError(err).WithField("workspace", dst.ID).Error("workspace copy left with partial contents")
			return nil, fmt.Errorf("copy contains edge to %s: %w", e.To, err)
		}
	}

	if err := s.grantEdit(ctx, principal.ID, dst.ID); err != nil {
		s.log.WithError(err).WithField("workspace", dst.ID).Error("workspace copied but canEdit grant failed")
		return nil, err
	}
	return dst, nil
}

// AddGrant creates a hasPerm edge granting perm on the workspace to the user
// identified by email. The caller needs canEdit on the workspace; only
// canView and canEdit may be granted this way.
func (s *Service) AddGrant(ctx context.Context, principal *graph.User, workspaceID, granteeEmail string, perm graph.Perm) (*graph.Workspace, error) {
	if perm != graph.PermCanView && perm != graph.PermCanEdit {
		return nil, fmt.Errorf("grant %q not allowed on workspaces: %w", perm, graph.ErrInvalidState)
	}
	if err := s.requireEdit(ctx, principal, workspaceID); err != nil {
		return nil, err
	}
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	grantee, err := s.store.FindUserByEmail(ctx, granteeEmail)
	if err != nil {
		return nil, err
	}
	edge := &graph.Edge{Kind: graph.EdgeHasPerm, From: grantee.ID, To: ws.ID, Perm: perm}
	if err := s.store.SaveEdge(ctx, edge); err != nil {
		return nil, fmt.Errorf("save grant edge: %w", err)
	}
	return ws, nil
}

// CreateObject creates a version-0 object inside the workspace. Requires
// canEdit on the workspace.
func (s *Service) CreateObject(ctx context.Context, principal *graph.User, workspaceID, name string) (*graph.Object, error) {
	if err := s.requireEdit(ctx, principal, workspaceID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetWorkspace(ctx, workspaceID); err != nil {
		return nil, err
	}

	obj := &graph.Object{Name: name, Version: 0, CreatedAt: time.Now().UTC()}
	if err := s.store.SaveObject(ctx, obj); err != nil {
		return nil, fmt.Errorf("save object: %w", err)
	}
	edge := &graph.Edge{Kind: graph.EdgeContains, From: workspaceID, To: obj.ID}
	if err := s.store.SaveEdge(ctx, edge); err != nil {
		s.log.WithError(err).WithField("object", obj.ID).Error("object created but contains edge failed")
		return nil, fmt.Errorf("save contains edge: %w", err)
	}
	return obj, nil
}

// EditObject performs a copy-on-write edit: it creates a new object with the
// version incremented, a contains edge from the workspace to the new object,
// and an updatedTo edge from the old object to the new one. The old object
// and its contains edge are left untouched so provenance visibility is
// preserved; removal is a separate explicit operation (RemoveObject).
func (s *Service) EditObject(ctx context.Context, principal *graph.User, workspaceID, objectID, newName string) (*graph.Object, error) {
	if err := s.requireEdit(ctx, principal, workspaceID); err != nil {
		return nil, err
	}
	if _, err := s.store.FindEdge(ctx, graph.EdgeContains, workspaceID, objectID); err != nil {
		if errors.Is(err, graph.ErrNotFound) {
			return nil, fmt.Errorf("workspace %s does not contain object %s: %w", workspaceID, objectID, graph.ErrInvalidState)
		}
		return nil, err
	}
	old, err := s.store.GetObject(ctx, objectID)
	if err != nil {
		return nil, err
	}

	next := &graph.Object{Name: newName, Version: old.Version + 1, CreatedAt: time.Now().UTC()}
	if err := s.store.SaveObject(ctx, next); err != nil {
		return nil, fmt.Errorf("save object version: %w", err)
	}
	if err := s.store.SaveEdge(ctx, &graph.Edge{Kind: graph.EdgeContains, From: workspaceID, To: next.ID}); err != nil {
		s.log.WithError(err).WithField("object", next.ID).Error("object version created but contains edge failed")
		return nil, fmt.Errorf("save contains edge: %w", err)
	}
	if err := s.store.SaveEdge(ctx, &graph.Edge{Kind: graph.EdgeUpdatedTo, From: old.ID, To: next.ID}); err != nil {
		s.log.WithError(err).WithField("object", next.ID).Error("object version created but updatedTo edge failed")
		return nil, fmt.Errorf("save updatedTo edge: %w", err)
	}
	return next, nil
}

// RemoveObject deletes the contains edge between a workspace and an object.
// The object node itself stays, and remains reachable through provenance.
// Requires canEdit on the workspace.
func (s *Service) RemoveObject(ctx context.Context, principal *graph.User, workspaceID, objectID string) error {
	if err := s.requireEdit(ctx, principal, workspaceID); err != nil {
		return err
	}
	err := s.store.DeleteEdge(ctx, graph.EdgeContains, workspaceID, objectID)
	if errors.Is(err, graph.ErrNotFound) {
		return fmt.Errorf("workspace %s does not contain object %s: %w", workspaceID, objectID, graph.ErrInvalidState)
	}
	return err
}

// requireView checks view access on a workspace, distinguishing a missing
// principal (Unauthorized) from a missing permission (Forbidden).
func (s *Service) requireView(ctx context.Context, principal *graph.User, ws *graph.Workspace) error {
	canView, err := s.visibility.CanView(ctx, principal, ws)
	if err != nil {
		return err
	}
	if !canView {
		if principal == nil {
			return graph.ErrUnauthorized
		}
		return fmt.Errorf("cannot view %s: %w", ws.ID, graph.ErrForbidden)
	}
	return nil
}

// requireEdit checks for canEdit on the resource, distinguishing a missing
// principal (Unauthorized) from a missing permission (Forbidden).
func (s *Service) requireEdit(ctx context.Context, principal *graph.User, resourceID string) error {
	if principal == nil {
		return graph.ErrUnauthorized
	}
	ok, err := s.checker.Check(ctx, principal, []graph.Perm{graph.PermCanEdit}, resourceID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("cannot edit %s: %w", resourceID, graph.ErrForbidden)
	}
	return nil
}

func (s *Service) grantEdit(ctx context.Context, principalID, workspaceID string) error {
	edge := &graph.Edge{Kind: graph.EdgeHasPerm, From: principalID, To: workspaceID, Perm: graph.PermCanEdit}
	if err := s.store.SaveEdge(ctx, edge); err != nil {
		return fmt.Errorf("save canEdit grant: %w", err)
	}
	return nil
}
