package authz

import (
	"context"
	"fmt"

	"github.com/platinummonkey/lattice/pkg/graph"
)

// MembershipResolver computes the set of groups a principal transitively
// belongs to.
type MembershipResolver struct {
	store graph.Store
}

// NewMembershipResolver creates a resolver over the given store.
func NewMembershipResolver(store graph.Store) *MembershipResolver {
	return &MembershipResolver{store: store}
}

// GroupsOf returns the IDs of every group reachable from the principal over
// memberOf edges, bounded to depth 100. The result is deduplicated; cycles
// in the membership graph terminate. A principal with no memberships, or an
// unknown principal, yields an empty set.
func (r *MembershipResolver) GroupsOf(ctx context.Context, principalID string) ([]string, error) {
	reached, err := r.store.Traverse(ctx, principalID, graph.EdgeMemberOf, graph.Outbound, 1, graph.MaxTraversalDepth)
	if err != nil {
		return nil, fmt.Errorf("resolve memberships of %s: %w", principalID, err)
	}
	// memberOf targets are groups by construction, but a malformed edge
	// must not leak a non-group ID into permission evaluation.
	groups := reached[:0]
	for _, id := range reached {
		if graph.KindOf(id) == graph.KindGroup {
			groups = append(groups, id)
		}
	}
	return groups, nil
}
