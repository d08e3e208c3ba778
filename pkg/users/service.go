// Package users manages user registration, credential verification, and the
// administrative user listing of the lattice service.
package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/lattice/pkg/authz"
	"github.com/platinummonkey/lattice/pkg/graph"
)

// sysadminPerms gates the administrative operations.
var sysadminPerms = []graph.Perm{graph.PermSysadmin}

// Service implements user lifecycle operations over the graph store.
type Service struct {
	store   graph.Store
	checker *authz.Checker
	cost    int
}

// NewService creates a user service. A non-positive bcryptCost selects the
// library default.
func NewService(store graph.Store, checker *authz.Checker, bcryptCost int) *Service {
	if bcryptCost <= 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{store: store, checker: checker, cost: bcryptCost}
}

// Register creates a new user with no global perms. A duplicate email yields
// ErrConflict, distinguishable from generic storage failures.
func (s *Service) Register(ctx context.Context, email, password string) (*graph.User, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("email and password are required: %w", graph.ErrInvalidState)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &graph.User{
		Email:        email,
		Perms:        []graph.Perm{},
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.SaveUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate verifies email/password credentials. Unknown emails and wrong
// passwords both yield ErrUnauthorized; the two cases are deliberately not
// distinguishable by the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*graph.User, error) {
	u, err := s.store.FindUserByEmail(ctx, email)
	if errors.Is(err, graph.ErrNotFound) {
		return nil, graph.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return nil, graph.ErrUnauthorized
	}
	return u, nil
}

// LookupByEmail fetches a user by email. Requires sysadmin.
func (s *Service) LookupByEmail(ctx context.Context, principal *graph.User, email string) (*graph.User, error) {
	if err := s.requireSysadmin(ctx, principal); err != nil {
		return nil, err
	}
	return s.store.FindUserByEmail(ctx, email)
}

// Get fetches a single user. Requires sysadmin.
func (s *Service) Get(ctx context.Context, principal *graph.User, id string) (*graph.User, error) {
	if err := s.requireSysadmin(ctx, principal); err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, id)
}

// List returns all users. Requires sysadmin.
func (s *Service) List(ctx context.Context, principal *graph.User) ([]graph.User, error) {
	if err := s.requireSysadmin(ctx, principal); err != nil {
		return nil, err
	}
	return s.store.ListUsers(ctx, 0)
}

// Delete removes a user node. Requires sysadmin. Edges referencing the user
// are left behind; traversals tolerate the dangling endpoints.
func (s *Service) Delete(ctx context.Context, principal *graph.User, id string) error {
	if err := s.requireSysadmin(ctx, principal); err != nil {
		return err
	}
	return s.store.DeleteUser(ctx, id)
}

func (s *Service) requireSysadmin(ctx context.Context, principal *graph.User) error {
	if principal == nil {
		return graph.ErrUnauthorized
	}
	ok, err := s.checker.Check(ctx, principal, sysadminPerms, "")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("sysadmin required: %w", graph.ErrForbidden)
	}
	return nil
}
