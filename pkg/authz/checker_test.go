package authz

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/lattice/pkg/graph"
	"github.com/platinummonkey/lattice/pkg/observability"
)

func newTestUser(t *testing.T, store graph.Store, email string, perms ...graph.Perm) *graph.User {
	t.Helper()
	u := &graph.User{Email: email, Perms: perms}
	require.NoError(t, store.SaveUser(context.Background(), u))
	return u
}

func newTestGroup(t *testing.T, store graph.Store, name string, perms ...graph.Perm) *graph.Group {
	t.Helper()
	g := &graph.Group{Name: name, Perms: perms}
	require.NoError(t, store.SaveGroup(context.Background(), g))
	return g
}

func addEdge(t *testing.T, store graph.Store, kind graph.EdgeKind, from, to string, perm ...graph.Perm) {
	t.Helper()
	e := &graph.Edge{Kind: kind, From: from, To: to}
	if len(perm) > 0 {
		e.Perm = perm[0]
	}
	require.NoError(t, store.SaveEdge(context.Background(), e))
}

func TestCheck_NilPrincipal(t *testing.T) {
	ctx := context.Background()
	checker := NewChecker(graph.NewMemoryStore())

	ok, err := checker.Check(ctx, nil, []graph.Perm{graph.PermCanEdit}, "")
	require.NoError(t, err)
	assert.False(t, ok)

	// A nil principal fails even the empty-name authentication assertion:
	// no identity exists.
	ok, err = checker.Check(ctx, nil, nil, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheck_EmptyNamesAssertsAuthentication(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	checker := NewChecker(store)
	u := newTestUser(t, store, "u@example.com")

	// Any present principal passes an empty-name check, regardless of perms.
	ok, err := checker.Check(ctx, u, nil, "")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheck_DirectPerms(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	checker := NewChecker(store)
	admin := newTestUser(t, store, "admin@example.com", graph.PermSysadmin)
	nobody := newTestUser(t, store, "nobody@example.com")

	ok, err := checker.Check(ctx, admin, []graph.Perm{graph.PermSysadmin}, "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = checker.Check(ctx, nobody, []graph.Perm{graph.PermSysadmin}, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

// The source system compared the whole requested-names value against the
// perms list, which can never match a multi-name request. The contract here
// is per-element set intersection: any requested name held directly grants.
func TestCheck_MultiNameDirectPerms(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	checker := NewChecker(store)
	viewer := newTestUser(t, store, "viewer@example.com", graph.PermCanView)

	ok, err := checker.Check(ctx, viewer, []graph.Perm{graph.PermCanView, graph.PermCanEdit}, "")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheck_GroupChainPerms(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	checker := NewChecker(store)
	u := newTestUser(t, store, "u@example.com")

	// u -> g1 -> g2 -> g3, with the permission only on the last group.
	g1 := newTestGroup(t, store, "g1")
	g2 := newTestGroup(t, store, "g2")
	g3 := newTestGroup(t, store, "g3", graph.PermSysadmin)
	addEdge(t, store, graph.EdgeMemberOf, u.ID, g1.ID)
	addEdge(t, store, graph.EdgeMemberOf, g1.ID, g2.ID)
	addEdge(t, store, graph.EdgeMemberOf, g2.ID, g3.ID)

	ok, err := checker.Check(ctx, u, []graph.Perm{graph.PermSysadmin}, "")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheck_GroupChainBeyondDepthCeiling(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	checker := NewChecker(store)
	u := newTestUser(t, store, "deep@example.com")

	// A chain deeper than the traversal ceiling: the permission sits on a
	// group that is out of reach, so the check terminates and denies.
	prev := u.ID
	var last *graph.Group
	for i := 0; i <= graph.MaxTraversalDepth; i++ {
		g := newTestGroup(t, store, fmt.Sprintf("g%d", i))
		addEdge(t, store, graph.EdgeMemberOf, prev, g.ID)
		prev = g.ID
		last = g
	}
	last.Perms = []graph.Perm{graph.PermSysadmin}
	require.NoError(t, store.UpdateGroup(ctx, last))

	ok, err := checker.Check(ctx, u, []graph.Perm{graph.PermSysadmin}, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheck_MembershipCycleTerminates(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	resolver := NewMembershipResolver(store)
	u := newTestUser(t, store, "cyclic@example.com")

	g1 := newTestGroup(t, store, "g1")
	g2 := newTestGroup(t, store, "g2")
	addEdge(t, store, graph.EdgeMemberOf, u.ID, g1.ID)
	addEdge(t, store, graph.EdgeMemberOf, g1.ID, g2.ID)
	addEdge(t, store, graph.EdgeMemberOf, g2.ID, g1.ID)

	groups, err := resolver.GroupsOf(ctx, u.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{g1.ID, g2.ID}, groups)
}

func TestCheck_ResourceGrantEdges(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	checker := NewChecker(store)

	owner := newTestUser(t, store, "owner@example.com")
	member := newTestUser(t, store, "member@example.com")
	outsider := newTestUser(t, store, "outsider@example.com")

	ws := &graph.Workspace{Name: "w"}
	require.NoError(t, store.SaveWorkspace(ctx, ws))

	// Direct grant edge on the owner.
	addEdge(t, store, graph.EdgeHasPerm, owner.ID, ws.ID, graph.PermCanEdit)

	// Grant edge through a group for the member.
	g := newTestGroup(t, store, "editors")
	addEdge(t, store, graph.EdgeMemberOf, member.ID, g.ID)
	addEdge(t, store, graph.EdgeHasPerm, g.ID, ws.ID, graph.PermCanEdit)

	names := []graph.Perm{graph.PermCanEdit}

	ok, err := checker.Check(ctx, owner, names, ws.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = checker.Check(ctx, member, names, ws.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = checker.Check(ctx, outsider, names, ws.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// Without a resource there is nothing to scope the grant to.
	ok, err = checker.Check(ctx, owner, names, "")
	require.NoError(t, err)
	assert.False(t, ok)

	// A grant for a different permission name does not match.
	ok, err = checker.Check(ctx, owner, []graph.Perm{graph.PermCanView}, ws.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluate_Reasons(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	checker := NewChecker(store)
	admin := newTestUser(t, store, "admin@example.com", graph.PermSysadmin)

	d, err := checker.Evaluate(ctx, nil, []graph.Perm{graph.PermSysadmin}, "")
	require.NoError(t, err)
	assert.Equal(t, "no principal", d.Reason)

	d, err = checker.Evaluate(ctx, admin, []graph.Perm{graph.PermSysadmin}, "")
	require.NoError(t, err)
	assert.Equal(t, "direct permission", d.Reason)

	d, err = checker.Evaluate(ctx, admin, []graph.Perm{graph.PermCanEdit}, "")
	require.NoError(t, err)
	assert.Equal(t, "no resource scope", d.Reason)
}

func TestEvaluate_RecordsMetrics(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	checker := NewChecker(store).WithMetrics(metrics)
	u := newTestUser(t, store, "m@example.com", graph.PermCanView)

	ok, err := checker.Check(ctx, u, []graph.Perm{graph.PermCanView}, "")
	require.NoError(t, err)
	assert.True(t, ok)

	counter := metrics.PermissionChecksTotal.WithLabelValues("true", "direct permission")
	assert.Equal(t, 1.0, testutil.ToFloat64(counter))
}
