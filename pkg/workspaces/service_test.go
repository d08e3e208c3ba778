package workspaces

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/lattice/pkg/authz"
	"github.com/platinummonkey/lattice/pkg/graph"
	"github.com/platinummonkey/lattice/pkg/observability"
)

type fixture struct {
	store *graph.MemoryStore
	svc   *Service
	prov  *authz.ProvenanceResolver
	vis   *authz.VisibilityFilter
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	store := graph.NewMemoryStore()
	checker := authz.NewChecker(store)
	vis := authz.NewVisibilityFilter(store, checker)
	log := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return &fixture{
		store: store,
		svc:   NewService(store, checker, vis, opts, log),
		prov:  authz.NewProvenanceResolver(store, vis),
		vis:   vis,
	}
}

func (f *fixture) user(t *testing.T, email string) *graph.User {
	t.Helper()
	u := &graph.User{Email: email}
	require.NoError(t, f.store.SaveUser(context.Background(), u))
	return u
}

func TestCreateWorkspace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	u := f.user(t, "u@example.com")

	ws, err := f.svc.CreateWorkspace(ctx, u, "notes")
	require.NoError(t, err)
	assert.Equal(t, "notes", ws.Name)
	assert.False(t, ws.IsPublic)

	// The creator is auto-granted canEdit.
	edge, err := f.store.FindEdge(ctx, graph.EdgeHasPerm, u.ID, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, graph.PermCanEdit, edge.Perm)
}

func TestCreateWorkspace_RequiresPrincipal(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.svc.CreateWorkspace(context.Background(), nil, "notes")
	assert.ErrorIs(t, err, graph.ErrUnauthorized)
}

func TestUpdateWorkspace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	owner := f.user(t, "owner@example.com")
	stranger := f.user(t, "stranger@example.com")

	ws, err := f.svc.CreateWorkspace(ctx, owner, "notes")
	require.NoError(t, err)

	name := "renamed"
	public := true
	updated, err := f.svc.UpdateWorkspace(ctx, owner, ws.ID, Patch{Name: &name, IsPublic: &public})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.True(t, updated.IsPublic)

	// Same node mutated in place, not a copy.
	reloaded, err := f.store.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", reloaded.Name)

	_, err = f.svc.UpdateWorkspace(ctx, stranger, ws.ID, Patch{Name: &name})
	assert.ErrorIs(t, err, graph.ErrForbidden)

	_, err = f.svc.UpdateWorkspace(ctx, nil, ws.ID, Patch{Name: &name})
	assert.ErrorIs(t, err, graph.ErrUnauthorized)
}

func TestCopyWorkspace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	owner := f.user(t, "owner@example.com")
	actor := f.user(t, "actor@example.com")

	src, err := f.svc.CreateWorkspace(ctx, owner, "src")
	require.NoError(t, err)
	a, err := f.svc.CreateObject(ctx, owner, src.ID, "a")
	require.NoError(t, err)
	b, err := f.svc.CreateObject(ctx, owner, src.ID, "b")
	require.NoError(t, err)

	// The default policy lets any authenticated principal copy a workspace
	// it can name, even without view rights on the source.
	dst, err := f.svc.CopyWorkspace(ctx, actor, src.ID)
	require.NoError(t, err)
	assert.Equal(t, "src (copy)", dst.Name)
	assert.False(t, dst.IsPublic)

	// Contains edges duplicated, pointing at the same object IDs.
	contained, err := f.store.Traverse(ctx, dst.ID, graph.EdgeContains, graph.Outbound, 1, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, contained)

	// The actor gets a fresh canEdit grant; the source owner's grant is
	// not copied.
	edge, err := f.store.FindEdge(ctx, graph.EdgeHasPerm, actor.ID, dst.ID)
	require.NoError(t, err)
	assert.Equal(t, graph.PermCanEdit, edge.Perm)
	_, err = f.store.FindEdge(ctx, graph.EdgeHasPerm, owner.ID, dst.ID)
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestCopyWorkspace_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	actor := f.user(t, "actor@example.com")

	_, err := f.svc.CopyWorkspace(ctx, nil, "workspaces/any")
	assert.ErrorIs(t, err, graph.ErrUnauthorized)

	_, err = f.svc.CopyWorkspace(ctx, actor, "workspaces/ghost")
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestCopyWorkspace_RequireSourceViewPolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{RequireSourceView: true})
	owner := f.user(t, "owner@example.com")
	actor := f.user(t, "actor@example.com")

	private, err := f.svc.CreateWorkspace(ctx, owner, "private")
	require.NoError(t, err)

	_, err = f.svc.CopyWorkspace(ctx, actor, private.ID)
	assert.ErrorIs(t, err, graph.ErrForbidden)

	// A public source stays copyable under the strict policy.
	public := true
	_, err = f.svc.UpdateWorkspace(ctx, owner, private.ID, Patch{IsPublic: &public})
	require.NoError(t, err)
	_, err = f.svc.CopyWorkspace(ctx, actor, private.ID)
	assert.NoError(t, err)
}

func TestAddGrant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	owner := f.user(t, "owner@example.com")
	viewer := f.user(t, "viewer@example.com")

	ws, err := f.svc.CreateWorkspace(ctx, owner, "shared")
	require.NoError(t, err)

	_, err = f.svc.AddGrant(ctx, owner, ws.ID, "viewer@example.com", graph.PermCanView)
	require.NoError(t, err)

	edge, err := f.store.FindEdge(ctx, graph.EdgeHasPerm, viewer.ID, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, graph.PermCanView, edge.Perm)

	_, err = f.svc.AddGrant(ctx, owner, ws.ID, "missing@example.com", graph.PermCanView)
	assert.ErrorIs(t, err, graph.ErrNotFound)

	_, err = f.svc.AddGrant(ctx, viewer, ws.ID, "owner@example.com", graph.PermCanView)
	assert.ErrorIs(t, err, graph.ErrForbidden)

	// Only canView/canEdit may be granted on a workspace.
	_, err = f.svc.AddGrant(ctx, owner, ws.ID, "viewer@example.com", graph.PermSysadmin)
	assert.ErrorIs(t, err, graph.ErrInvalidState)
}

func TestCreateObject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	owner := f.user(t, "owner@example.com")
	stranger := f.user(t, "stranger@example.com")

	ws, err := f.svc.CreateWorkspace(ctx, owner, "w")
	require.NoError(t, err)

	obj, err := f.svc.CreateObject(ctx, owner, ws.ID, "doc")
	require.NoError(t, err)
	assert.Equal(t, 0, obj.Version)

	_, err = f.store.FindEdge(ctx, graph.EdgeContains, ws.ID, obj.ID)
	require.NoError(t, err)

	_, err = f.svc.CreateObject(ctx, stranger, ws.ID, "doc2")
	assert.ErrorIs(t, err, graph.ErrForbidden)
}

func TestEditObject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	owner := f.user(t, "owner@example.com")

	ws, err := f.svc.CreateWorkspace(ctx, owner, "w")
	require.NoError(t, err)
	old, err := f.svc.CreateObject(ctx, owner, ws.ID, "doc")
	require.NoError(t, err)

	next, err := f.svc.EditObject(ctx, owner, ws.ID, old.ID, "doc v2")
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, next.ID)
	assert.Equal(t, 1, next.Version)
	assert.Equal(t, "doc v2", next.Name)

	// The old object is untouched: same name, same version, still contained.
	reloaded, err := f.store.GetObject(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, "doc", reloaded.Name)
	assert.Equal(t, 0, reloaded.Version)
	_, err = f.store.FindEdge(ctx, graph.EdgeContains, ws.ID, old.ID)
	require.NoError(t, err)

	// New contains and updatedTo edges exist.
	_, err = f.store.FindEdge(ctx, graph.EdgeContains, ws.ID, next.ID)
	require.NoError(t, err)
	_, err = f.store.FindEdge(ctx, graph.EdgeUpdatedTo, old.ID, next.ID)
	require.NoError(t, err)
}

func TestEditObject_Preconditions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	owner := f.user(t, "owner@example.com")

	w1, err := f.svc.CreateWorkspace(ctx, owner, "w1")
	require.NoError(t, err)
	w2, err := f.svc.CreateWorkspace(ctx, owner, "w2")
	require.NoError(t, err)
	obj, err := f.svc.CreateObject(ctx, owner, w1.ID, "doc")
	require.NoError(t, err)

	// Editing through a workspace that does not contain the object.
	_, err = f.svc.EditObject(ctx, owner, w2.ID, obj.ID, "nope")
	assert.ErrorIs(t, err, graph.ErrInvalidState)
}

func TestRemoveObject_ProvenanceSurvives(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	owner := f.user(t, "owner@example.com")

	ws, err := f.svc.CreateWorkspace(ctx, owner, "w")
	require.NoError(t, err)
	old, err := f.svc.CreateObject(ctx, owner, ws.ID, "doc")
	require.NoError(t, err)
	next, err := f.svc.EditObject(ctx, owner, ws.ID, old.ID, "doc v2")
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveObject(ctx, owner, ws.ID, old.ID))
	_, err = f.store.FindEdge(ctx, graph.EdgeContains, ws.ID, old.ID)
	assert.ErrorIs(t, err, graph.ErrNotFound)

	// The superseded version stays visible through the provenance walk.
	objs, err := f.prov.ObjectsVisibleTo(ctx, owner)
	require.NoError(t, err)
	ids := make([]string, 0, len(objs))
	for _, o := range objs {
		ids = append(ids, o.ID)
	}
	assert.Contains(t, ids, old.ID)
	assert.Contains(t, ids, next.ID)

	// Removing again is an invalid-state error.
	assert.ErrorIs(t, f.svc.RemoveObject(ctx, owner, ws.ID, old.ID), graph.ErrInvalidState)
}

func TestGetWorkspace_ViewGated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	owner := f.user(t, "owner@example.com")
	stranger := f.user(t, "stranger@example.com")

	ws, err := f.svc.CreateWorkspace(ctx, owner, "private")
	require.NoError(t, err)

	got, err := f.svc.GetWorkspace(ctx, owner, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, ws.ID, got.ID)

	_, err = f.svc.GetWorkspace(ctx, stranger, ws.ID)
	assert.ErrorIs(t, err, graph.ErrForbidden)

	_, err = f.svc.GetWorkspace(ctx, nil, ws.ID)
	assert.ErrorIs(t, err, graph.ErrUnauthorized)

	// Public workspaces are visible to anyone, authenticated or not.
	public := true
	_, err = f.svc.UpdateWorkspace(ctx, owner, ws.ID, Patch{IsPublic: &public})
	require.NoError(t, err)
	_, err = f.svc.GetWorkspace(ctx, nil, ws.ID)
	assert.NoError(t, err)

	_, err = f.svc.GetWorkspace(ctx, owner, "workspaces/missing")
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestListObjects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	owner := f.user(t, "owner@example.com")
	stranger := f.user(t, "stranger@example.com")

	ws, err := f.svc.CreateWorkspace(ctx, owner, "notes")
	require.NoError(t, err)
	_, err = f.svc.CreateObject(ctx, owner, ws.ID, "beta")
	require.NoError(t, err)
	_, err = f.svc.CreateObject(ctx, owner, ws.ID, "alpha")
	require.NoError(t, err)

	objs, err := f.svc.ListObjects(ctx, owner, ws.ID)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "alpha", objs[0].Name)
	assert.Equal(t, "beta", objs[1].Name)

	_, err = f.svc.ListObjects(ctx, stranger, ws.ID)
	assert.ErrorIs(t, err, graph.ErrForbidden)
}

func TestListObjects_EditKeepsOldVersionListed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	owner := f.user(t, "owner@example.com")

	ws, err := f.svc.CreateWorkspace(ctx, owner, "notes")
	require.NoError(t, err)
	a, err := f.svc.CreateObject(ctx, owner, ws.ID, "a")
	require.NoError(t, err)
	a2, err := f.svc.EditObject(ctx, owner, ws.ID, a.ID, "a")
	require.NoError(t, err)

	// Copy-on-write keeps both versions contained until removal.
	objs, err := f.svc.ListObjects(ctx, owner, ws.ID)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, 0, objs[0].Version)
	assert.Equal(t, 1, objs[1].Version)

	require.NoError(t, f.svc.RemoveObject(ctx, owner, ws.ID, a.ID))
	objs, err = f.svc.ListObjects(ctx, owner, ws.ID)
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, a2.ID, objs[0].ID)
}
