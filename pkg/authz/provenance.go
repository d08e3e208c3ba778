package authz

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/platinummonkey/lattice/pkg/graph"
)

// ProvenanceResolver walks the version-provenance graph to answer
// object-visibility and history queries.
type ProvenanceResolver struct {
	store      graph.Store
	visibility *VisibilityFilter
}

// NewProvenanceResolver creates a resolver over the given store and
// visibility filter.
func NewProvenanceResolver(store graph.Store, visibility *VisibilityFilter) *ProvenanceResolver {
	return &ProvenanceResolver{store: store, visibility: visibility}
}

// ObjectsVisibleTo returns every object the principal may see, including
// historical versions. For each visible workspace it collects the directly
// contained objects, then follows updatedTo edges backwards (bounded depth
// 100) so ancestor versions stay visible even after their contains edge was
// removed. The union is deduplicated by object ID, sorted by name then
// version, and capped at ListingCap.
func (r *ProvenanceResolver) ObjectsVisibleTo(ctx context.Context, principal *graph.User) ([]graph.Object, error) {
	workspaces, err := r.visibility.VisibleWorkspaces(ctx, principal)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	out := make([]graph.Object, 0)
	for _, ws := range workspaces {
		contained, err := r.store.Traverse(ctx, ws.ID, graph.EdgeContains, graph.Outbound, 1, 1)
		if err != nil {
			return nil, fmt.Errorf("list objects of %s: %w", ws.ID, err)
		}
		for _, objID := range contained {
			ancestors, err := r.store.Traverse(ctx, objID, graph.EdgeUpdatedTo, graph.Inbound, 1, graph.MaxTraversalDepth)
			if err != nil {
				return nil, fmt.Errorf("walk provenance of %s: %w", objID, err)
			}
			ids := append([]string{objID}, ancestors...)
			for _, id := range ids {
				if seen[id] {
					continue
				}
				seen[id] = true
				obj, err := r.store.GetObject(ctx, id)
				if errors.Is(err, graph.ErrNotFound) {
					// Dangling edge; the object itself is gone.
					continue
				}
				if err != nil {
					return nil, fmt.Errorf("load object %s: %w", id, err)
				}
				out = append(out, *obj)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		if out[i].Version != out[j].Version {
			return out[i].Version < out[j].Version
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > ListingCap {
		out = out[:ListingCap]
	}
	return out, nil
}

// ProvenanceChain returns the version history of an object ordered newest to
// oldest: the object itself first, then each ancestor reached by walking
// updatedTo edges backwards, ending at the version-0 root. The walk is
// bounded to depth 100 and tolerates branching history.
func (r *ProvenanceResolver) ProvenanceChain(ctx context.Context, objectID string) ([]graph.Object, error) {
	head, err := r.store.GetObject(ctx, objectID)
	if err != nil {
		return nil, err
	}
	ancestors, err := r.store.Traverse(ctx, objectID, graph.EdgeUpdatedTo, graph.Inbound, 1, graph.MaxTraversalDepth)
	if err != nil {
		return nil, fmt.Errorf("walk provenance of %s: %w", objectID, err)
	}
	chain := []graph.Object{*head}
	for _, id := range ancestors {
		obj, err := r.store.GetObject(ctx, id)
		if errors.Is(err, graph.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load object %s: %w", id, err)
		}
		chain = append(chain, *obj)
	}
	return chain, nil
}
