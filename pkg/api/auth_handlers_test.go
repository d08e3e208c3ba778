package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/lattice/pkg/graph"
	"github.com/platinummonkey/lattice/pkg/workspaces"
)

func TestSignup(t *testing.T) {
	a := newTestAPI(t, workspaces.Options{})

	user := a.signup(t, "new@example.com", "hunter22")
	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, graph.KindUser, graph.KindOf(user.ID))

	// Password hashes never leave the server.
	rec := a.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"email":    "other@example.com",
		"password": "hunter22",
	})
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "hash")
}

func TestSignup_Validation(t *testing.T) {
	a := newTestAPI(t, workspaces.Options{})

	rec := a.do(t, http.MethodPost, "/auth/signup", "", map[string]string{"password": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/auth/signup", "", map[string]string{"email": "a@b.c"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	a := newTestAPI(t, workspaces.Options{})
	a.signup(t, "dup@example.com", "hunter22")

	rec := a.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"email":    "dup@example.com",
		"password": "hunter22",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	a := newTestAPI(t, workspaces.Options{})
	a.signup(t, "u@example.com", "hunter22")

	rec := a.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "u@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Unknown emails fail identically.
	rec = a.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "nobody@example.com",
		"password": "hunter22",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWhoami(t *testing.T) {
	a := newTestAPI(t, workspaces.Options{})
	user, token := a.signupAndLogin(t, "me@example.com")

	rec := a.do(t, http.MethodGet, "/auth/whoami", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got graph.User
	decode(t, rec, &got)
	assert.Equal(t, user.ID, got.ID)

	rec = a.do(t, http.MethodGet, "/auth/whoami", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout(t *testing.T) {
	a := newTestAPI(t, workspaces.Options{})
	_, token := a.signupAndLogin(t, "me@example.com")

	rec := a.do(t, http.MethodPost, "/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// The session is gone.
	rec = a.do(t, http.MethodGet, "/auth/whoami", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Logging out anonymously is a no-op, not an error.
	rec = a.do(t, http.MethodPost, "/auth/logout", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
