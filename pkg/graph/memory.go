package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store implementation. It backs the test
// suites and the zero-configuration development server.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]User
	groups     map[string]Group
	workspaces map[string]Workspace
	objects    map[string]Object
	edges      map[EdgeKind][]Edge
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]User),
		groups:     make(map[string]Group),
		workspaces: make(map[string]Workspace),
		objects:    make(map[string]Object),
		edges:      make(map[EdgeKind][]Edge),
	}
}

// GetUser fetches a user node by ID.
func (s *MemoryStore) GetUser(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return copyUser(u), nil
}

// FindUserByEmail fetches a user by unique email.
func (s *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, fmt.Errorf("user email %s: %w", email, ErrNotFound)
}

// SaveUser persists a new user, assigning an ID if absent.
func (s *MemoryStore) SaveUser(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return fmt.Errorf("user email %s: %w", u.Email, ErrConflict)
		}
	}
	if u.ID == "" {
		u.ID = NewID(KindUser)
	}
	s.users[u.ID] = *copyUser(*u)
	return nil
}

// UpdateUser replaces the stored fields of an existing user.
func (s *MemoryStore) UpdateUser(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return fmt.Errorf("user %s: %w", u.ID, ErrNotFound)
	}
	s.users[u.ID] = *copyUser(*u)
	return nil
}

// DeleteUser removes a user node.
func (s *MemoryStore) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	delete(s.users, id)
	return nil
}

// ListUsers returns up to limit users ordered by email.
func (s *MemoryStore) ListUsers(ctx context.Context, limit int) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return capSlice(out, limit), nil
}

// GetGroup fetches a group node by ID.
func (s *MemoryStore) GetGroup(ctx context.Context, id string) (*Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", id, ErrNotFound)
	}
	cp := g
	cp.Perms = append([]Perm(nil), g.Perms...)
	return &cp, nil
}

// SaveGroup persists a new group, assigning an ID if absent.
func (s *MemoryStore) SaveGroup(ctx context.Context, g *Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == "" {
		g.ID = NewID(KindGroup)
	}
	cp := *g
	cp.Perms = append([]Perm(nil), g.Perms...)
	s.groups[g.ID] = cp
	return nil
}

// UpdateGroup replaces the stored fields of an existing group.
func (s *MemoryStore) UpdateGroup(ctx context.Context, g *Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[g.ID]; !ok {
		return fmt.Errorf("group %s: %w", g.ID, ErrNotFound)
	}
	cp := *g
	cp.Perms = append([]Perm(nil), g.Perms...)
	s.groups[g.ID] = cp
	return nil
}

// GetWorkspace fetches a workspace node by ID.
func (s *MemoryStore) GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workspaces[id]
	if !ok {
		return nil, fmt.Errorf("workspace %s: %w", id, ErrNotFound)
	}
	cp := w
	return &cp, nil
}

// SaveWorkspace persists a new workspace, assigning an ID if absent.
func (s *MemoryStore) SaveWorkspace(ctx context.Context, w *Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == "" {
		w.ID = NewID(KindWorkspace)
	}
	s.workspaces[w.ID] = *w
	return nil
}

// UpdateWorkspace replaces the mutable fields of an existing workspace.
func (s *MemoryStore) UpdateWorkspace(ctx context.Context, w *Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workspaces[w.ID]; !ok {
		return fmt.Errorf("workspace %s: %w", w.ID, ErrNotFound)
	}
	s.workspaces[w.ID] = *w
	return nil
}

// ListWorkspaces returns up to limit workspaces ordered by name.
func (s *MemoryStore) ListWorkspaces(ctx context.Context, limit int) ([]Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Workspace, 0, len(s.workspaces))
	for _, w := range s.workspaces {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return capSlice(out, limit), nil
}

// GetObject fetches an object node by ID.
func (s *MemoryStore) GetObject(ctx context.Context, id string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[id]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", id, ErrNotFound)
	}
	cp := o
	return &cp, nil
}

// SaveObject persists a new object, assigning an ID if absent.
func (s *MemoryStore) SaveObject(ctx context.Context, o *Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = NewID(KindObject)
	}
	s.objects[o.ID] = *o
	return nil
}

// SaveEdge persists an edge, assigning an ID if absent.
func (s *MemoryStore) SaveEdge(ctx context.Context, e *Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = string(e.Kind) + "/" + uuid.NewString()
	}
	s.edges[e.Kind] = append(s.edges[e.Kind], *e)
	return nil
}

// FindEdge returns the first edge of the given kind between from and to.
func (s *MemoryStore) FindEdge(ctx context.Context, kind EdgeKind, from, to string) (*Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.edges[kind] {
		if e.From == from && e.To == to {
			cp := e
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("edge %s %s->%s: %w", kind, from, to, ErrNotFound)
}

// DeleteEdge removes all edges of the given kind between from and to.
func (s *MemoryStore) DeleteEdge(ctx context.Context, kind EdgeKind, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.edges[kind][:0]
	removed := false
	for _, e := range s.edges[kind] {
		if e.From == from && e.To == to {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	s.edges[kind] = kept
	if !removed {
		return fmt.Errorf("edge %s %s->%s: %w", kind, from, to, ErrNotFound)
	}
	return nil
}

// EdgesFrom returns every edge of the given kind starting at from.
func (s *MemoryStore) EdgesFrom(ctx context.Context, kind EdgeKind, from string) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Edge
	for _, e := range s.edges[kind] {
		if e.From == from {
			out = append(out, e)
		}
	}
	return out, nil
}

// Traverse walks edges of one kind from start, breadth-first, returning
// reached node IDs between minDepth and maxDepth.
func (s *MemoryStore) Traverse(ctx context.Context, start string, kind EdgeKind, dir Direction, minDepth, maxDepth int) ([]string, error) {
	if maxDepth > MaxTraversalDepth {
		maxDepth = MaxTraversalDepth
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	type hop struct {
		id    string
		depth int
	}
	visited := map[string]bool{start: true}
	frontier := []hop{{id: start, depth: 0}}
	var out []string
	if minDepth == 0 {
		out = append(out, start)
	}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, e := range s.edges[kind] {
			var next string
			switch {
			case dir == Outbound && e.From == cur.id:
				next = e.To
			case dir == Inbound && e.To == cur.id:
				next = e.From
			default:
				continue
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			if cur.depth+1 >= minDepth {
				out = append(out, next)
			}
			frontier = append(frontier, hop{id: next, depth: cur.depth + 1})
		}
	}
	return out, nil
}

func copyUser(u User) *User {
	cp := u
	cp.Perms = append([]Perm(nil), u.Perms...)
	cp.PasswordHash = append([]byte(nil), u.PasswordHash...)
	return &cp
}

func capSlice[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
