package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/lattice/pkg/graph"
)

// newTestStore runs the schema against an in-memory SQLite database. The
// store only uses the SQL subset both engines share, so the behavior under
// test matches PostgreSQL.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewStore(db)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	u := &graph.User{
		Email:        "a@example.com",
		Perms:        []graph.Perm{graph.PermSysadmin},
		PasswordHash: []byte("hash"),
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.SaveUser(ctx, u))
	require.NotEmpty(t, u.ID)
	assert.Equal(t, graph.KindUser, graph.KindOf(u.ID))

	got, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)
	assert.Equal(t, []graph.Perm{graph.PermSysadmin}, got.Perms)
	assert.Equal(t, []byte("hash"), got.PasswordHash)

	byEmail, err := store.FindUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	// Duplicate email conflicts.
	err = store.SaveUser(ctx, &graph.User{Email: "a@example.com"})
	assert.ErrorIs(t, err, graph.ErrConflict)

	// Update replaces perms and hash.
	got.Perms = nil
	got.PasswordHash = []byte("hash2")
	require.NoError(t, store.UpdateUser(ctx, got))
	got2, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got2.Perms)
	assert.Equal(t, []byte("hash2"), got2.PasswordHash)

	require.NoError(t, store.DeleteUser(ctx, u.ID))
	_, err = store.GetUser(ctx, u.ID)
	assert.ErrorIs(t, err, graph.ErrNotFound)
	assert.ErrorIs(t, store.DeleteUser(ctx, u.ID), graph.ErrNotFound)
}

func TestListUsers_SortedAndCapped(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, email := range []string{"c@x.com", "a@x.com", "b@x.com"} {
		require.NoError(t, store.SaveUser(ctx, &graph.User{Email: email}))
	}

	users, err := store.ListUsers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "a@x.com", users[0].Email)
	assert.Equal(t, "c@x.com", users[2].Email)

	users, err = store.ListUsers(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestGroupLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	g := &graph.Group{Name: "admins", Perms: []graph.Perm{graph.PermSysadmin}}
	require.NoError(t, store.SaveGroup(ctx, g))

	got, err := store.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "admins", got.Name)

	got.Name = "renamed"
	require.NoError(t, store.UpdateGroup(ctx, got))
	got2, err := store.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got2.Name)

	assert.ErrorIs(t, store.UpdateGroup(ctx, &graph.Group{ID: "groups/missing"}), graph.ErrNotFound)
}

func TestWorkspaceLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	w := &graph.Workspace{Name: "beta"}
	require.NoError(t, store.SaveWorkspace(ctx, w))
	require.NoError(t, store.SaveWorkspace(ctx, &graph.Workspace{Name: "alpha", IsPublic: true}))

	got, err := store.GetWorkspace(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "beta", got.Name)

	got.IsPublic = true
	require.NoError(t, store.UpdateWorkspace(ctx, got))
	got2, err := store.GetWorkspace(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, got2.IsPublic)

	list, err := store.ListWorkspaces(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "beta", list[1].Name)
}

func TestObjectAndEdges(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	o := &graph.Object{Name: "doc", Version: 0}
	require.NoError(t, store.SaveObject(ctx, o))
	got, err := store.GetObject(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "doc", got.Name)

	w := &graph.Workspace{Name: "ws"}
	require.NoError(t, store.SaveWorkspace(ctx, w))

	e := &graph.Edge{Kind: graph.EdgeContains, From: w.ID, To: o.ID}
	require.NoError(t, store.SaveEdge(ctx, e))
	require.NotEmpty(t, e.ID)

	found, err := store.FindEdge(ctx, graph.EdgeContains, w.ID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, found.ID)

	edges, err := store.EdgesFrom(ctx, graph.EdgeContains, w.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, o.ID, edges[0].To)

	require.NoError(t, store.DeleteEdge(ctx, graph.EdgeContains, w.ID, o.ID))
	_, err = store.FindEdge(ctx, graph.EdgeContains, w.ID, o.ID)
	assert.ErrorIs(t, err, graph.ErrNotFound)
	assert.ErrorIs(t, store.DeleteEdge(ctx, graph.EdgeContains, w.ID, o.ID), graph.ErrNotFound)
}

func TestEdgePermRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	e := &graph.Edge{Kind: graph.EdgeHasPerm, From: "users/u1", To: "workspaces/w1", Perm: graph.PermCanEdit}
	require.NoError(t, store.SaveEdge(ctx, e))

	found, err := store.FindEdge(ctx, graph.EdgeHasPerm, "users/u1", "workspaces/w1")
	require.NoError(t, err)
	assert.Equal(t, graph.PermCanEdit, found.Perm)
}

func chainEdges(t *testing.T, store *Store, kind graph.EdgeKind, ids ...string) {
	t.Helper()
	for i := 0; i+1 < len(ids); i++ {
		require.NoError(t, store.SaveEdge(context.Background(),
			&graph.Edge{Kind: kind, From: ids[i], To: ids[i+1]}))
	}
}

func TestTraverse_Chain(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	chainEdges(t, store, graph.EdgeMemberOf, "users/u", "groups/a", "groups/b", "groups/c")

	got, err := store.Traverse(ctx, "users/u", graph.EdgeMemberOf, graph.Outbound, 1, graph.MaxTraversalDepth)
	require.NoError(t, err)
	assert.Equal(t, []string{"groups/a", "groups/b", "groups/c"}, got)

	// minDepth 0 includes the start node.
	got, err = store.Traverse(ctx, "users/u", graph.EdgeMemberOf, graph.Outbound, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"users/u", "groups/a"}, got)

	// Inbound walks the same chain backwards.
	got, err = store.Traverse(ctx, "groups/c", graph.EdgeMemberOf, graph.Inbound, 1, graph.MaxTraversalDepth)
	require.NoError(t, err)
	assert.Equal(t, []string{"groups/b", "groups/a", "users/u"}, got)
}

func TestTraverse_CycleTerminates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	chainEdges(t, store, graph.EdgeMemberOf, "groups/a", "groups/b", "groups/a")

	// The start node is never re-reported even though the cycle revisits it.
	got, err := store.Traverse(ctx, "groups/a", graph.EdgeMemberOf, graph.Outbound, 1, graph.MaxTraversalDepth)
	require.NoError(t, err)
	assert.Equal(t, []string{"groups/b"}, got)
}

func TestTraverse_DepthClamp(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ids := []string{"users/u"}
	for i := 0; i < graph.MaxTraversalDepth+10; i++ {
		ids = append(ids, graph.NewID(graph.KindGroup))
	}
	chainEdges(t, store, graph.EdgeMemberOf, ids...)

	got, err := store.Traverse(ctx, "users/u", graph.EdgeMemberOf, graph.Outbound, 1, graph.MaxTraversalDepth+10)
	require.NoError(t, err)
	assert.Len(t, got, graph.MaxTraversalDepth)
}

func TestTraverse_UnknownStart(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	got, err := store.Traverse(ctx, "users/ghost", graph.EdgeMemberOf, graph.Outbound, 1, graph.MaxTraversalDepth)
	require.NoError(t, err)
	assert.Empty(t, got)
}
