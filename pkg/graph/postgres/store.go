package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // postgres driver

	"github.com/platinummonkey/lattice/pkg/graph"
)

// Store implements graph.Store on top of database/sql.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL, verifies connectivity and applies migrations.
func Open(url string, maxConns int, timeout time.Duration) (*Store, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns / 2)
	}
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	store := NewStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an existing database handle without migrating.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// getNode loads and unmarshals one node row.
func (s *Store) getNode(ctx context.Context, id, label string, dest interface{}) error {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM nodes WHERE id = $1`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%s %s: %w", label, id, graph.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load %s %s: %w", label, id, err)
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("decode %s %s: %w", label, id, err)
	}
	return nil
}

// insertNode marshals and inserts one node row. email may be empty for
// non-user nodes.
func (s *Store) insertNode(ctx context.Context, id string, kind graph.Kind, email string, entity interface{}) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode node %s: %w", id, err)
	}
	var emailVal interface{}
	if email != "" {
		emailVal = email
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO nodes (id, kind, email, data) VALUES ($1, $2, $3, $4)`,
		id, string(kind), emailVal, string(data))
	if err != nil {
		return fmt.Errorf("insert node %s: %w", id, err)
	}
	return nil
}

// updateNode replaces a node row, returning ErrNotFound for unknown IDs.
func (s *Store) updateNode(ctx context.Context, id, label string, email string, entity interface{}) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", label, id, err)
	}
	var emailVal interface{}
	if email != "" {
		emailVal = email
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE nodes SET email = $1, data = $2 WHERE id = $3`,
		emailVal, string(data), id)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", label, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s %s: %w", label, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", label, id, graph.ErrNotFound)
	}
	return nil
}

// listNodes loads every node of one kind and unmarshals the rows.
func listNodes[T any](ctx context.Context, s *Store, kind graph.Kind) ([]T, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM nodes WHERE kind = $1`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", kind, err)
		}
		var entity T
		if err := json.Unmarshal([]byte(data), &entity); err != nil {
			return nil, fmt.Errorf("decode %s row: %w", kind, err)
		}
		out = append(out, entity)
	}
	return out, rows.Err()
}

// GetUser fetches a user node by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*graph.User, error) {
	var u userRecord
	if err := s.getNode(ctx, id, "user", &u); err != nil {
		return nil, err
	}
	return u.toUser(), nil
}

// FindUserByEmail fetches a user by unique email.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*graph.User, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM nodes WHERE email = $1`, email).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user email %s: %w", email, graph.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	var u userRecord
	if err := json.Unmarshal([]byte(data), &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return u.toUser(), nil
}

// SaveUser persists a new user, assigning an ID if absent. A duplicate email
// yields ErrConflict.
func (s *Store) SaveUser(ctx context.Context, u *graph.User) error {
	_, err := s.FindUserByEmail(ctx, u.Email)
	if err == nil {
		return fmt.Errorf("user email %s: %w", u.Email, graph.ErrConflict)
	}
	if !errors.Is(err, graph.ErrNotFound) {
		return err
	}
	if u.ID == "" {
		u.ID = graph.NewID(graph.KindUser)
	}
	return s.insertNode(ctx, u.ID, graph.KindUser, u.Email, newUserRecord(u))
}

// UpdateUser replaces the stored fields of an existing user.
func (s *Store) UpdateUser(ctx context.Context, u *graph.User) error {
	return s.updateNode(ctx, u.ID, "user", u.Email, newUserRecord(u))
}

// DeleteUser removes a user node. Edges referencing it stay in place.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = $1 AND kind = $2`,
		id, string(graph.KindUser))
	if err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", id, graph.ErrNotFound)
	}
	return nil
}

// ListUsers returns up to limit users ordered by email.
func (s *Store) ListUsers(ctx context.Context, limit int) ([]graph.User, error) {
	records, err := listNodes[userRecord](ctx, s, graph.KindUser)
	if err != nil {
		return nil, err
	}
	out := make([]graph.User, 0, len(records))
	for _, r := range records {
		out = append(out, *r.toUser())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return capSlice(out, limit), nil
}

// GetGroup fetches a group node by ID.
func (s *Store) GetGroup(ctx context.Context, id string) (*graph.Group, error) {
	var g graph.Group
	if err := s.getNode(ctx, id, "group", &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// SaveGroup persists a new group, assigning an ID if absent.
func (s *Store) SaveGroup(ctx context.Context, g *graph.Group) error {
	if g.ID == "" {
		g.ID = graph.NewID(graph.KindGroup)
	}
	return s.insertNode(ctx, g.ID, graph.KindGroup, "", g)
}

// UpdateGroup replaces the stored fields of an existing group.
func (s *Store) UpdateGroup(ctx context.Context, g *graph.Group) error {
	return s.updateNode(ctx, g.ID, "group", "", g)
}

// GetWorkspace fetches a workspace node by ID.
func (s *Store) GetWorkspace(ctx context.Context, id string) (*graph.Workspace, error) {
	var w graph.Workspace
	if err := s.getNode(ctx, id, "workspace", &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// SaveWorkspace persists a new workspace, assigning an ID if absent.
func (s *Store) SaveWorkspace(ctx context.Context, w *graph.Workspace) error {
	if w.ID == "" {
		w.ID = graph.NewID(graph.KindWorkspace)
	}
	return s.insertNode(ctx, w.ID, graph.KindWorkspace, "", w)
}

// UpdateWorkspace replaces the mutable fields of an existing workspace.
func (s *Store) UpdateWorkspace(ctx context.Context, w *graph.Workspace) error {
	return s.updateNode(ctx, w.ID, "workspace", "", w)
}

// ListWorkspaces returns up to limit workspaces ordered by name.
func (s *Store) ListWorkspaces(ctx context.Context, limit int) ([]graph.Workspace, error) {
	out, err := listNodes[graph.Workspace](ctx, s, graph.KindWorkspace)
	if err != nil {
		return nil, err
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
func (s *Store) GetObject(ctx context.Context, id string) (*graph.Object, error) {
	var o graph.Object
	if err := s.getNode(ctx, id, "object", &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// SaveObject persists a new object, assigning an ID if absent.
func (s *Store) SaveObject(ctx context.Context, o *graph.Object) error {
	if o.ID == "" {
		o.ID = graph.NewID(graph.KindObject)
	}
	return s.insertNode(ctx, o.ID, graph.KindObject, "", o)
}

// SaveEdge persists an edge, assigning an ID if absent.
func (s *Store) SaveEdge(ctx context.Context, e *graph.Edge) error {
	if e.ID == "" {
		e.ID = string(e.Kind) + "/" + uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO edges (id, kind, from_id, to_id, perm) VALUES ($1, $2, $3, $4, $5)`,
		e.ID, string(e.Kind), e.From, e.To, string(e.Perm))
	if err != nil {
		return fmt.Errorf("insert edge %s: %w", e.ID, err)
	}
	return nil
}

// FindEdge returns the first edge of the given kind between from and to.
func (s *Store) FindEdge(ctx context.Context, kind graph.EdgeKind, from, to string) (*graph.Edge, error) {
	var e graph.Edge
	var edgeKind, perm string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, kind, from_id, to_id, perm FROM edges
		  WHERE kind = $1 AND from_id = $2 AND to_id = $3
		  ORDER BY id LIMIT 1`,
		string(kind), from, to).Scan(&e.ID, &edgeKind, &e.From, &e.To, &perm)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("edge %s %s->%s: %w", kind, from, to, graph.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find edge: %w", err)
	}
	e.Kind = graph.EdgeKind(edgeKind)
	e.Perm = graph.Perm(perm)
	return &e, nil
}

// DeleteEdge removes all edges of the given kind between from and to.
func (s *Store) DeleteEdge(ctx context.Context, kind graph.EdgeKind, from, to string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM edges WHERE kind = $1 AND from_id = $2 AND to_id = $3`,
		string(kind), from, to)
	if err != nil {
		return fmt.Errorf("delete edge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete edge: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("edge %s %s->%s: %w", kind, from, to, graph.ErrNotFound)
	}
	return nil
}

// EdgesFrom returns every edge of the given kind starting at from.
func (s *Store) EdgesFrom(ctx context.Context, kind graph.EdgeKind, from string) ([]graph.Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, from_id, to_id, perm FROM edges
		  WHERE kind = $1 AND from_id = $2 ORDER BY id`,
		string(kind), from)
	if err != nil {
		return nil, fmt.Errorf("list edges from %s: %w", from, err)
	}
	defer rows.Close()

	var out []graph.Edge
	for rows.Next() {
		var e graph.Edge
		var edgeKind, perm string
		if err := rows.Scan(&e.ID, &edgeKind, &e.From, &e.To, &perm); err != nil {
			return nil, fmt.Errorf("scan edge row: %w", err)
		}
		e.Kind = graph.EdgeKind(edgeKind)
		e.Perm = graph.Perm(perm)
		out = append(out, e)
	}
	return out, rows.Err()
}

// traverseQuery walks edges of one kind as a bounded recursive CTE. The CAST
// keeps the anchor column typed as text on both PostgreSQL and SQLite.
const traverseQuery = `
WITH RECURSIVE walk(id, depth) AS (
	SELECT CAST($1 AS TEXT), 0
	UNION
	SELECT e.%s, w.depth + 1
	  FROM edges e
	  JOIN walk w ON e.%s = w.id
	 WHERE e.kind = $2 AND w.depth < $3
)
SELECT id, MIN(depth) AS d
  FROM walk
 GROUP BY id
HAVING MIN(depth) >= $4
 ORDER BY d, id`

// Traverse walks edges of one kind from start, breadth-first, returning
// reached node IDs between minDepth and maxDepth.
func (s *Store) Traverse(ctx context.Context, start string, kind graph.EdgeKind, dir graph.Direction, minDepth, maxDepth int) ([]string, error) {
	if maxDepth > graph.MaxTraversalDepth {
		maxDepth = graph.MaxTraversalDepth
	}

	next, join := "to_id", "from_id"
	if dir == graph.Inbound {
		next, join = "from_id", "to_id"
	}
	query := fmt.Sprintf(traverseQuery, next, join)

	rows, err := s.db.QueryContext(ctx, query, start, string(kind), maxDepth, minDepth)
	if err != nil {
		return nil, fmt.Errorf("traverse %s from %s: %w", kind, start, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		var depth int
		if err := rows.Scan(&id, &depth); err != nil {
			return nil, fmt.Errorf("scan traversal row: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// userRecord is the stored shape of a user. The password hash is excluded
// from the public JSON tags of graph.User, so it gets its own field here.
type userRecord struct {
	graph.User
	PasswordHash []byte `json:"password_hash"`
}

func newUserRecord(u *graph.User) *userRecord {
	return &userRecord{User: *u, PasswordHash: u.PasswordHash}
}

func (r *userRecord) toUser() *graph.User {
	u := r.User
	u.PasswordHash = r.PasswordHash
	return &u
}

func capSlice[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
