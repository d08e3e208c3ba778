package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/lattice/pkg/authz"
	"github.com/platinummonkey/lattice/pkg/graph"
	"github.com/platinummonkey/lattice/pkg/observability"
	"github.com/platinummonkey/lattice/pkg/sessions"
	"github.com/platinummonkey/lattice/pkg/users"
	"github.com/platinummonkey/lattice/pkg/workspaces"
)

// testAPI wires a full server over in-memory stores.
type testAPI struct {
	server *Server
	store  *graph.MemoryStore
}

func newTestAPI(t *testing.T, opts workspaces.Options) *testAPI {
	t.Helper()

	store := graph.NewMemoryStore()
	checker := authz.NewChecker(store)
	vis := authz.NewVisibilityFilter(store, checker)
	prov := authz.NewProvenanceResolver(store, vis)
	log := observability.NewLogger(observability.ErrorLevel, io.Discard)
	mgr := sessions.NewManager(sessions.NewMemoryStore(), time.Hour, log, nil)

	server := NewServer(Deps{
		Store:      store,
		Users:      users.NewService(store, checker, 4),
		Workspaces: workspaces.NewService(store, checker, vis, opts, log),
		Visibility: vis,
		Provenance: prov,
		Sessions:   mgr,
		Logger:     log,
	})
	return &testAPI{server: server, store: store}
}

// do performs a request against the router. A non-empty token is sent as a
// bearer token. Body may be nil or any JSON-marshalable value.
func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.server.Router().ServeHTTP(rec, req)
	return rec
}

// decode unmarshals a recorded JSON response body.
func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
}

// signup registers a user and returns it.
func (a *testAPI) signup(t *testing.T, email, password string) graph.User {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var user graph.User
	decode(t, rec, &user)
	return user
}

// login authenticates and returns a session token.
func (a *testAPI) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

// signupAndLogin is the common two-step helper.
func (a *testAPI) signupAndLogin(t *testing.T, email string) (graph.User, string) {
	t.Helper()
	user := a.signup(t, email, "hunter22")
	return user, a.login(t, email, "hunter22")
}
