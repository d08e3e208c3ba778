package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/lattice/pkg/authz"
	"github.com/platinummonkey/lattice/pkg/graph"
)

func newService(store graph.Store) *Service {
	return NewService(store, authz.NewChecker(store), bcrypt.MinCost)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	svc := newService(store)

	u, err := svc.Register(ctx, "alice@example.com", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Empty(t, u.Perms)
	assert.NotContains(t, string(u.PasswordHash), "hunter2")

	got, err := svc.Authenticate(ctx, "alice@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Authenticate(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, graph.ErrUnauthorized)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "hunter2")
	assert.ErrorIs(t, err, graph.ErrUnauthorized)
}

func TestRegister_DuplicateEmailConflict(t *testing.T) {
	ctx := context.Background()
	svc := newService(graph.NewMemoryStore())

	_, err := svc.Register(ctx, "bob@example.com", "pw")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "bob@example.com", "pw2")
	assert.ErrorIs(t, err, graph.ErrConflict)
}

func TestRegister_Validation(t *testing.T) {
	ctx := context.Background()
	svc := newService(graph.NewMemoryStore())

	_, err := svc.Register(ctx, "", "pw")
	assert.ErrorIs(t, err, graph.ErrInvalidState)
	_, err = svc.Register(ctx, "a@example.com", "")
	assert.ErrorIs(t, err, graph.ErrInvalidState)
}

func TestAdminOperations(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	svc := newService(store)

	admin := &graph.User{Email: "root@example.com", Perms: []graph.Perm{graph.PermSysadmin}}
	require.NoError(t, store.SaveUser(ctx, admin))
	mortal, err := svc.Register(ctx, "mortal@example.com", "pw")
	require.NoError(t, err)

	users, err := svc.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	_, err = svc.List(ctx, mortal)
	assert.ErrorIs(t, err, graph.ErrForbidden)
	_, err = svc.List(ctx, nil)
	assert.ErrorIs(t, err, graph.ErrUnauthorized)

	got, err := svc.Get(ctx, admin, mortal.ID)
	require.NoError(t, err)
	assert.Equal(t, mortal.Email, got.Email)

	byEmail, err := svc.LookupByEmail(ctx, admin, "mortal@example.com")
	require.NoError(t, err)
	assert.Equal(t, mortal.ID, byEmail.ID)
	_, err = svc.LookupByEmail(ctx, mortal, "root@example.com")
	assert.ErrorIs(t, err, graph.ErrForbidden)

	require.NoError(t, svc.Delete(ctx, admin, mortal.ID))
	assert.ErrorIs(t, svc.Delete(ctx, admin, mortal.ID), graph.ErrNotFound)
}

// Sysadmin granted through a group chain works for admin endpoints too.
func TestAdmin_ViaGroupMembership(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	svc := newService(store)

	op, err := svc.Register(ctx, "op@example.com", "pw")
	require.NoError(t, err)
	admins := &graph.Group{Name: "admins", Perms: []graph.Perm{graph.PermSysadmin}}
	require.NoError(t, store.SaveGroup(ctx, admins))
	require.NoError(t, store.SaveEdge(ctx, &graph.Edge{Kind: graph.EdgeMemberOf, From: op.ID, To: admins.ID}))

	_, err = svc.List(ctx, op)
	assert.NoError(t, err)
}
