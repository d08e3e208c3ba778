package graph

import (
	"context"
	"time"

	"github.com/platinummonkey/lattice/pkg/observability"
)

// InstrumentedStore wraps a Store and records per-operation counters and
// latency histograms.
type InstrumentedStore struct {
	inner   Store
	backend string
	metrics *observability.Metrics
}

// Instrument wraps store with metrics recording. backend labels the metric
// series ("memory", "postgres", "surreal").
func Instrument(store Store, backend string, metrics *observability.Metrics) *InstrumentedStore {
	return &InstrumentedStore{inner: store, backend: backend, metrics: metrics}
}

func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.StoreOperationsTotal.WithLabelValues(op, s.backend, status).Inc()
	s.metrics.StoreOperationDuration.WithLabelValues(op, s.backend).Observe(time.Since(start).Seconds())
}

func (s *InstrumentedStore) GetUser(ctx context.Context, id string) (*User, error) {
	start := time.Now()
	u, err := s.inner.GetUser(ctx, id)
	s.observe("get_user", start, err)
	return u, err
}

func (s *InstrumentedStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	start := time.Now()
	u, err := s.inner.FindUserByEmail(ctx, email)
	s.observe("find_user_by_email", start, err)
	return u, err
}

func (s *InstrumentedStore) SaveUser(ctx context.Context, u *User) error {
	start := time.Now()
	err := s.inner.SaveUser(ctx, u)
	s.observe("save_user", start, err)
	return err
}

func (s *InstrumentedStore) UpdateUser(ctx context.Context, u *User) error {
	start := time.Now()
	err := s.inner.UpdateUser(ctx, u)
	s.observe("update_user", start, err)
	return err
}

func (s *InstrumentedStore) DeleteUser(ctx context.Context, id string) error {
	start := time.Now()
	err := s.inner.DeleteUser(ctx, id)
	s.observe("delete_user", start, err)
	return err
}

func (s *InstrumentedStore) ListUsers(ctx context.Context, limit int) ([]User, error) {
	start := time.Now()
	out, err := s.inner.ListUsers(ctx, limit)
	s.observe("list_users", start, err)
	return out, err
}

func (s *InstrumentedStore) GetGroup(ctx context.Context, id string) (*Group, error) {
	start := time.Now()
	g, err := s.inner.GetGroup(ctx, id)
	s.observe("get_group", start, err)
	return g, err
}

func (s *InstrumentedStore) SaveGroup(ctx context.Context, g *Group) error {
	start := time.Now()
	err := s.inner.SaveGroup(ctx, g)
	s.observe("save_group", start, err)
	return err
}

func (s *InstrumentedStore) UpdateGroup(ctx context.Context, g *Group) error {
	start := time.Now()
	err := s.inner.UpdateGroup(ctx, g)
	s.observe("update_group", start, err)
	return err
}

func (s *InstrumentedStore) GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	start := time.Now()
	w, err := s.inner.GetWorkspace(ctx, id)
	s.observe("get_workspace", start, err)
	return w, err
}

func (s *InstrumentedStore) SaveWorkspace(ctx context.Context, w *Workspace) error {
	start := time.Now()
	err := s.inner.SaveWorkspace(ctx, w)
	s.observe("save_workspace", start, err)
	return err
}

func (s *InstrumentedStore) UpdateWorkspace(ctx context.Context, w *Workspace) error {
	start := time.Now()
	err := s.inner.UpdateWorkspace(ctx, w)
	s.observe("update_workspace", start, err)
	return err
}

func (s *InstrumentedStore) ListWorkspaces(ctx context.Context, limit int) ([]Workspace, error) {
	start := time.Now()
	out, err := s.inner.ListWorkspaces(ctx, limit)
	s.observe("list_workspaces", start, err)
	return out, err
}

func (s *InstrumentedStore) GetObject(ctx context.Context, id string) (*Object, error) {
	start := time.Now()
	o, err := s.inner.GetObject(ctx, id)
	s.observe("get_object", start, err)
	return o, err
}

func (s *InstrumentedStore) SaveObject(ctx context.Context, o *Object) error {
	start := time.Now()
	err := s.inner.SaveObject(ctx, o)
	s.observe("save_object", start, err)
	return err
}

func (s *InstrumentedStore) SaveEdge(ctx context.Context, e *Edge) error {
	start := time.Now()
	err := s.inner.SaveEdge(ctx, e)
	s.observe("save_edge", start, err)
	return err
}

func (s *InstrumentedStore) FindEdge(ctx context.Context, kind EdgeKind, from, to string) (*Edge, error) {
	start := time.Now()
	e, err := s.inner.FindEdge(ctx, kind, from, to)
	s.observe("find_edge", start, err)
	return e, err
}

func (s *InstrumentedStore) DeleteEdge(ctx context.Context, kind EdgeKind, from, to string) error {
	start := time.Now()
	err := s.inner.DeleteEdge(ctx, kind, from, to)
	s.observe("delete_edge", start, err)
	return err
}

func (s *InstrumentedStore) EdgesFrom(ctx context.Context, kind EdgeKind, from string) ([]Edge, error) {
	start := time.Now()
	out, err := s.inner.EdgesFrom(ctx, kind, from)
	s.observe("edges_from", start, err)
	return out, err
}

func (s *InstrumentedStore) Traverse(ctx context.Context, start string, kind EdgeKind, dir Direction, minDepth, maxDepth int) ([]string, error) {
	began := time.Now()
	out, err := s.inner.Traverse(ctx, start, kind, dir, minDepth, maxDepth)
	s.observe("traverse", began, err)
	return out, err
}
