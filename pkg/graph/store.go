package graph

import "context"

// Direction selects which way Traverse follows edges from the start node.
type Direction string

const (
	// Outbound follows edges from their From side to their To side.
	Outbound Direction = "out"
	// Inbound follows edges from their To side to their From side.
	Inbound Direction = "in"
)

// MaxTraversalDepth is the ceiling every bounded traversal honors. It is a
// defensive limit against cycles and pathological graphs, not a claimed
// maximum hierarchy depth.
const MaxTraversalDepth = 100

// Store is the persistence boundary for the resource graph. Implementations
// must be safe for concurrent use; reads are pure functions of current graph
// state and take no locks visible to callers.
//
// Lookups that match nothing return ErrNotFound (wrapped). Unique-constraint
// violations on save return ErrConflict (wrapped). Any other error is a
// storage failure and propagates unchanged.
type Store interface {
	// GetUser fetches a user node by ID.
	GetUser(ctx context.Context, id string) (*User, error)
	// FindUserByEmail fetches a user by unique email.
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	// SaveUser persists a new user, assigning an ID if absent. A duplicate
	// email yields ErrConflict.
	SaveUser(ctx context.Context, u *User) error
	// UpdateUser replaces the stored mutable fields (perms, password hash)
	// of an existing user.
	UpdateUser(ctx context.Context, u *User) error
	// DeleteUser removes a user node. Edges referencing it are left in
	// place; traversals tolerate dangling endpoints.
	DeleteUser(ctx context.Context, id string) error
	// ListUsers returns up to limit users. A non-positive limit means no
	// cap.
	ListUsers(ctx context.Context, limit int) ([]User, error)

	// GetGroup fetches a group node by ID.
	GetGroup(ctx context.Context, id string) (*Group, error)
	// SaveGroup persists a new group, assigning an ID if absent.
	SaveGroup(ctx context.Context, g *Group) error
	// UpdateGroup replaces the stored fields of an existing group.
	UpdateGroup(ctx context.Context, g *Group) error

	// GetWorkspace fetches a workspace node by ID.
	GetWorkspace(ctx context.Context, id string) (*Workspace, error)
	// SaveWorkspace persists a new workspace, assigning an ID if absent.
	SaveWorkspace(ctx context.Context, w *Workspace) error
	// UpdateWorkspace replaces the mutable fields (name, isPublic) of an
	// existing workspace.
	UpdateWorkspace(ctx context.Context, w *Workspace) error
	// ListWorkspaces returns up to limit workspaces. A non-positive limit
	// means no cap.
	ListWorkspaces(ctx context.Context, limit int) ([]Workspace, error)

	// GetObject fetches an object node by ID.
	GetObject(ctx context.Context, id string) (*Object, error)
	// SaveObject persists a new object, assigning an ID if absent.
	SaveObject(ctx context.Context, o *Object) error

	// SaveEdge persists an edge, assigning an ID if absent.
	SaveEdge(ctx context.Context, e *Edge) error
	// FindEdge returns the first edge of the given kind between from and
	// to, or ErrNotFound.
	FindEdge(ctx context.Context, kind EdgeKind, from, to string) (*Edge, error)
	// DeleteEdge removes all edges of the given kind between from and to.
	// Deleting edges that do not exist yields ErrNotFound.
	DeleteEdge(ctx context.Context, kind EdgeKind, from, to string) error
	// EdgesFrom returns every edge of the given kind whose From is the
	// given node. An empty result is not an error.
	EdgesFrom(ctx context.Context, kind EdgeKind, from string) ([]Edge, error)

	// Traverse walks edges of one kind starting at start and returns the
	// IDs of reached nodes in breadth-first (depth) order, deduplicated.
	// Nodes at depth < minDepth are walked through but not returned; a
	// minDepth of 0 includes the start node itself. maxDepth is clamped to
	// MaxTraversalDepth. Cycles terminate via visited tracking. An unknown
	// start node yields an empty result, not an error.
	Traverse(ctx context.Context, start string, kind EdgeKind, dir Direction, minDepth, maxDepth int) ([]string, error)
}
