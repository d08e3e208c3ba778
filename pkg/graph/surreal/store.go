package surreal

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	surrealdb "github.com/surrealdb/surrealdb.go"

	"github.com/platinummonkey/lattice/pkg/graph"
)

// Store implements graph.Store on a SurrealDB connection.
type Store struct {
	db *surrealdb.DB
}

// Config carries connection settings for SurrealDB.
type Config struct {
	URL       string
	User      string
	Password  string
	Namespace string
	Database  string
}

// Open connects, signs in and selects the namespace and database.
func Open(cfg Config) (*Store, error) {
	db, err := surrealdb.New(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to surrealdb: %w", err)
	}
	if _, err := db.Signin(map[string]any{"user": cfg.User, "pass": cfg.Password}); err != nil {
		db.Close()
		return nil, fmt.Errorf("surrealdb signin: %w", err)
	}
	if _, err := db.Use(cfg.Namespace, cfg.Database); err != nil {
		db.Close()
		return nil, fmt.Errorf("surrealdb use %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection.
func NewStore(db *surrealdb.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying connection.
func (s *Store) Close() {
	s.db.Close()
}

// Ping issues a trivial query to verify the connection.
func (s *Store) Ping(ctx context.Context) error {
	var out []struct{}
	return s.query(ctx, "SELECT * FROM nodes LIMIT 1", nil, &out)
}

// queryResult is one statement result in a SurrealDB query response.
type queryResult struct {
	Status string          `json:"status"`
	Detail string          `json:"detail,omitempty"`
	Result json.RawMessage `json:"result"`
}

// query runs one SurrealQL statement and decodes its result rows into dest.
// The driver speaks untyped JSON, so results round-trip through encoding/json.
func (s *Store) query(ctx context.Context, sql string, vars map[string]any, dest interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := s.db.Query(sql, vars)
	if err != nil {
		return fmt.Errorf("surrealdb query: %w", err)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode surrealdb response: %w", err)
	}
	var results []queryResult
	if err := json.Unmarshal(data, &results); err != nil {
		return fmt.Errorf("decode surrealdb response: %w", err)
	}
	if len(results) == 0 {
		return fmt.Errorf("surrealdb query returned no results")
	}
	last := results[len(results)-1]
	if last.Status != "OK" {
		return fmt.Errorf("surrealdb query failed: %s %s", last.Status, last.Detail)
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(last.Result, dest); err != nil {
		return fmt.Errorf("decode surrealdb rows: %w", err)
	}
	return nil
}

// getNode loads one node by ID into dest (a pointer to a slice element type).
func getNode[T any](ctx context.Context, s *Store, id, label string) (*T, error) {
	var rows []T
	err := s.query(ctx, "SELECT * FROM nodes WHERE id = $id LIMIT 1",
		map[string]any{"id": id}, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s %s: %w", label, id, graph.ErrNotFound)
	}
	return &rows[0], nil
}

// toContent converts an entity to the field map SurrealDB stores.
func toContent(entity interface{}, kind graph.Kind) (map[string]any, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("encode node: %w", err)
	}
	content := make(map[string]any)
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("encode node: %w", err)
	}
	content["kind"] = string(kind)
	return content, nil
}

func (s *Store) createNode(ctx context.Context, entity interface{}, kind graph.Kind) error {
	content, err := toContent(entity, kind)
	if err != nil {
		return err
	}
	return s.query(ctx, "CREATE nodes CONTENT $content",
		map[string]any{"content": content}, nil)
}

func (s *Store) updateNode(ctx context.Context, id, label string, entity interface{}, kind graph.Kind) error {
	content, err := toContent(entity, kind)
	if err != nil {
		return err
	}
	var updated []map[string]any
	err = s.query(ctx, "UPDATE nodes CONTENT $content WHERE id = $id",
		map[string]any{"content": content, "id": id}, &updated)
	if err != nil {
		return err
	}
	if len(updated) == 0 {
		return fmt.Errorf("%s %s: %w", label, id, graph.ErrNotFound)
	}
	return nil
}

// userRecord carries the password hash, which graph.User keeps out of its
// public JSON shape.
type userRecord struct {
	graph.User
	PasswordHash []byte `json:"password_hash"`
}

func (r *userRecord) toUser() *graph.User {
	u := r.User
	u.PasswordHash = r.PasswordHash
	return &u
}

// GetUser fetches a user node by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*graph.User, error) {
	r, err := getNode[userRecord](ctx, s, id, "user")
	if err != nil {
		return nil, err
	}
	return r.toUser(), nil
}

// FindUserByEmail fetches a user by unique email.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*graph.User, error) {
	var rows []userRecord
	err := s.query(ctx, "SELECT * FROM nodes WHERE kind = $kind AND email = $email LIMIT 1",
		map[string]any{"kind": string(graph.KindUser), "email": email}, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("user email %s: %w", email, graph.ErrNotFound)
	}
	return rows[0].toUser(), nil
}

// SaveUser persists a new user, assigning an ID if absent. A duplicate email
// yields ErrConflict.
func (s *Store) SaveUser(ctx context.Context, u *graph.User) error {
	if _, err := s.FindUserByEmail(ctx, u.Email); err == nil {
		return fmt.Errorf("user email %s: %w", u.Email, graph.ErrConflict)
	}
	if u.ID == "" {
		u.ID = graph.NewID(graph.KindUser)
	}
	return s.createNode(ctx, &userRecord{User: *u, PasswordHash: u.PasswordHash}, graph.KindUser)
}

// UpdateUser replaces the stored fields of an existing user.
func (s *Store) UpdateUser(ctx context.Context, u *graph.User) error {
	return s.updateNode(ctx, u.ID, "user",
		&userRecord{User: *u, PasswordHash: u.PasswordHash}, graph.KindUser)
}

// DeleteUser removes a user node. Edges referencing it stay in place.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if _, err := getNode[userRecord](ctx, s, id, "user"); err != nil {
		return err
	}
	return s.query(ctx, "DELETE FROM nodes WHERE id = $id",
		map[string]any{"id": id}, nil)
}

// ListUsers returns up to limit users ordered by email.
func (s *Store) ListUsers(ctx context.Context, limit int) ([]graph.User, error) {
	var rows []userRecord
	err := s.query(ctx, "SELECT * FROM nodes WHERE kind = $kind",
		map[string]any{"kind": string(graph.KindUser)}, &rows)
	if err != nil {
		return nil, err
	}
	out := make([]graph.User, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toUser())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return capSlice(out, limit), nil
}

// GetGroup fetches a group node by ID.
func (s *Store) GetGroup(ctx context.Context, id string) (*graph.Group, error) {
	return getNode[graph.Group](ctx, s, id, "group")
}

// SaveGroup persists a new group, assigning an ID if absent.
func (s *Store) SaveGroup(ctx context.Context, g *graph.Group) error {
	if g.ID == "" {
		g.ID = graph.NewID(graph.KindGroup)
	}
	return s.createNode(ctx, g, graph.KindGroup)
}

// UpdateGroup replaces the stored fields of an existing group.
func (s *Store) UpdateGroup(ctx context.Context, g *graph.Group) error {
	return s.updateNode(ctx, g.ID, "group", g, graph.KindGroup)
}

// GetWorkspace fetches a workspace node by ID.
func (s *Store) GetWorkspace(ctx context.Context, id string) (*graph.Workspace, error) {
	return getNode[graph.Workspace](ctx, s, id, "workspace")
}

// SaveWorkspace persists a new workspace, assigning an ID if absent.
func (s *Store) SaveWorkspace(ctx context.Context, w *graph.Workspace) error {
	if w.ID == "" {
		w.ID = graph.NewID(graph.KindWorkspace)
	}
	return s.createNode(ctx, w, graph.KindWorkspace)
}

// UpdateWorkspace replaces the mutable fields of an existing workspace.
func (s *Store) UpdateWorkspace(ctx context.Context, w *graph.Workspace) error {
	return s.updateNode(ctx, w.ID, "workspace", w, graph.KindWorkspace)
}

// ListWorkspaces returns up to limit workspaces ordered by name.
func (s *Store) ListWorkspaces(ctx context.Context, limit int) ([]graph.Workspace, error) {
	var out []graph.Workspace
	err := s.query(ctx, "SELECT * FROM nodes WHERE kind = $kind",
		map[string]any{"kind": string(graph.KindWorkspace)}, &out)
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
	return getNode[graph.Object](ctx, s, id, "object")
}

// SaveObject persists a new object, assigning an ID if absent.
func (s *Store) SaveObject(ctx context.Context, o *graph.Object) error {
	if o.ID == "" {
		o.ID = graph.NewID(graph.KindObject)
	}
	return s.createNode(ctx, o, graph.KindObject)
}

// SaveEdge persists an edge, assigning an ID if absent.
func (s *Store) SaveEdge(ctx context.Context, e *graph.Edge) error {
	if e.ID == "" {
		e.ID = string(e.Kind) + "/" + uuid.NewString()
	}
	content, err := toContent(e, graph.Kind("edge"))
	if err != nil {
		return err
	}
	return s.query(ctx, "CREATE edges CONTENT $content",
		map[string]any{"content": content}, nil)
}

// FindEdge returns the first edge of the given kind between from and to.
func (s *Store) FindEdge(ctx context.Context, kind graph.EdgeKind, from, to string) (*graph.Edge, error) {
	var rows []graph.Edge
	err := s.query(ctx,
		"SELECT * FROM edges WHERE kind = $kind AND from = $from AND to = $to LIMIT 1",
		map[string]any{"kind": string(kind), "from": from, "to": to}, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("edge %s %s->%s: %w", kind, from, to, graph.ErrNotFound)
	}
	return &rows[0], nil
}

// DeleteEdge removes all edges of the given kind between from and to.
func (s *Store) DeleteEdge(ctx context.Context, kind graph.EdgeKind, from, to string) error {
	if _, err := s.FindEdge(ctx, kind, from, to); err != nil {
		return err
	}
	return s.query(ctx,
		"DELETE FROM edges WHERE kind = $kind AND from = $from AND to = $to",
		map[string]any{"kind": string(kind), "from": from, "to": to}, nil)
}

// EdgesFrom returns every edge of the given kind starting at from.
func (s *Store) EdgesFrom(ctx context.Context, kind graph.EdgeKind, from string) ([]graph.Edge, error) {
	var out []graph.Edge
	err := s.query(ctx,
		"SELECT * FROM edges WHERE kind = $kind AND from = $from",
		map[string]any{"kind": string(kind), "from": from}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Traverse walks edges of one kind from start, breadth-first, one query per
// depth level over the current frontier.
func (s *Store) Traverse(ctx context.Context, start string, kind graph.EdgeKind, dir graph.Direction, minDepth, maxDepth int) ([]string, error) {
	if maxDepth > graph.MaxTraversalDepth {
		maxDepth = graph.MaxTraversalDepth
	}

	match, follow := "from", "to"
	if dir == graph.Inbound {
		match, follow = "to", "from"
	}
	sql := fmt.Sprintf("SELECT %s AS next FROM edges WHERE kind = $kind AND %s IN $frontier", follow, match)

	visited := map[string]bool{start: true}
	frontier := []string{start}
	var out []string
	if minDepth == 0 {
		out = append(out, start)
	}
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var rows []struct {
			Next string `json:"next"`
		}
		err := s.query(ctx, sql, map[string]any{
			"kind":     string(kind),
			"frontier": frontier,
		}, &rows)
		if err != nil {
			return nil, err
		}

		next := make([]string, 0, len(rows))
		for _, row := range rows {
			if visited[row.Next] {
				continue
			}
			visited[row.Next] = true
			if depth >= minDepth {
				out = append(out, row.Next)
			}
			next = append(next, row.Next)
		}
		frontier = next
	}
	return out, nil
}

func capSlice[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
