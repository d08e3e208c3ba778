package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/lattice/pkg/graph"
	"github.com/platinummonkey/lattice/pkg/observability"
)

// Decision is the outcome of a permission check with the step that decided
// it, for logging and metrics.
type Decision struct {
	Allowed bool
	Reason  string
}

// Checker evaluates permission checks against the resource graph.
type Checker struct {
	store    graph.Store
	resolver *MembershipResolver
	metrics  *observability.Metrics
}

// NewChecker creates a checker over the given store.
func NewChecker(store graph.Store) *Checker {
	return &Checker{
		store:    store,
		resolver: NewMembershipResolver(store),
	}
}

// WithMetrics makes the checker record every decision. Returns the checker
// for chaining.
func (c *Checker) WithMetrics(m *observability.Metrics) *Checker {
	c.metrics = m
	return c
}

// Check reports whether the principal holds any of the requested permissions,
// optionally scoped to a resource. See Evaluate for the decision procedure.
func (c *Checker) Check(ctx context.Context, principal *graph.User, names []graph.Perm, resourceID string) (bool, error) {
	d, err := c.Evaluate(ctx, principal, names, resourceID)
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

// Evaluate runs the decision procedure, short-circuiting on the first grant:
//
//  1. nil principal: denied. Exception: an empty names set asserts only that
//     a principal is present, so a non-nil principal with empty names is
//     allowed (and a nil one still denied).
//  2. any requested name in the principal's own perms: allowed.
//  3. any requested name in the perms of a transitively-joined group: allowed.
//  4. no resource to scope a grant to: denied.
//  5. a hasPerm edge principal->resource with a requested name: allowed.
//  6. a hasPerm edge group->resource, for any joined group: allowed.
//  7. otherwise: denied.
//
// Missing nodes or edges are negative results, never errors; only storage
// failures return a non-nil error.
func (c *Checker) Evaluate(ctx context.Context, principal *graph.User, names []graph.Perm, resourceID string) (Decision, error) {
	d, err := c.evaluate(ctx, principal, names, resourceID)
	if err == nil && c.metrics != nil {
		c.metrics.ObservePermissionCheck(d.Allowed, d.Reason)
	}
	return d, err
}

func (c *Checker) evaluate(ctx context.Context, principal *graph.User, names []graph.Perm, resourceID string) (Decision, error) {
	if principal == nil {
		return Decision{Allowed: false, Reason: "no principal"}, nil
	}
	if len(names) == 0 {
		// An empty-name check means "is anyone authenticated".
		return Decision{Allowed: true, Reason: "principal present"}, nil
	}
	if graph.ContainsPerm(principal.Perms, names) {
		return Decision{Allowed: true, Reason: "direct permission"}, nil
	}

	groups, err := c.resolver.GroupsOf(ctx, principal.ID)
	if err != nil {
		return Decision{}, err
	}
	for _, gid := range groups {
		g, err := c.store.GetGroup(ctx, gid)
		if errors.Is(err, graph.ErrNotFound) {
			// Dangling memberOf edge; skip.
			continue
		}
		if err != nil {
			return Decision{}, fmt.Errorf("load group %s: %w", gid, err)
		}
		if graph.ContainsPerm(g.Perms, names) {
			return Decision{Allowed: true, Reason: "group permission"}, nil
		}
	}

	if resourceID == "" {
		return Decision{Allowed: false, Reason: "no resource scope"}, nil
	}

	ok, err := c.hasGrantEdge(ctx, principal.ID, resourceID, names)
	if err != nil {
		return Decision{}, err
	}
	if ok {
		return Decision{Allowed: true, Reason: "direct grant edge"}, nil
	}
	for _, gid := range groups {
		ok, err := c.hasGrantEdge(ctx, gid, resourceID, names)
		if err != nil {
			return Decision{}, err
		}
		if ok {
			return Decision{Allowed: true, Reason: "group grant edge"}, nil
		}
	}
	return Decision{Allowed: false, Reason: "no match"}, nil
}

// hasGrantEdge reports whether a hasPerm edge from->resource carries any of
// the requested names.
func (c *Checker) hasGrantEdge(ctx context.Context, from, resourceID string, names []graph.Perm) (bool, error) {
	edges, err := c.store.EdgesFrom(ctx, graph.EdgeHasPerm, from)
	if err != nil {
		return false, fmt.Errorf("load grants of %s: %w", from, err)
	}
	for _, e := range edges {
		if e.To != resourceID {
			continue
		}
		for _, n := range names {
			if e.Perm == n {
				return true, nil
			}
		}
	}
	return false, nil
}
