package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/lattice/pkg/httputil"
	"github.com/platinummonkey/lattice/pkg/middleware"
	"github.com/platinummonkey/lattice/pkg/sessions"
	"github.com/platinummonkey/lattice/pkg/users"
)

// AuthHandlers handles signup, login, logout and identity introspection.
type AuthHandlers struct {
	users    *users.Service
	sessions *sessions.Manager
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(users *users.Service, sessions *sessions.Manager) *AuthHandlers {
	return &AuthHandlers{users: users, sessions: sessions}
}

// RegisterRoutes registers authentication routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/signup", h.signup).Methods("POST")
	router.HandleFunc("/auth/login", h.login).Methods("POST")
	router.HandleFunc("/auth/logout", h.logout).Methods("POST")
	router.HandleFunc("/auth/whoami", h.whoami).Methods("GET")
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// signup handles POST /auth/signup
func (h *AuthHandlers) signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Password, "password") {
		return
	}

	user, err := h.users.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteErrorKind(w, err)
		return
	}
	httputil.WriteCreated(w, user)
}

// login handles POST /auth/login. A successful login mints a session token
// returned both in the body and as a cookie.
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteErrorKind(w, err)
		return
	}
	token, err := h.sessions.Create(r.Context(), user.ID)
	if err != nil {
		httputil.WriteErrorKind(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteSuccess(w, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// logout handles POST /auth/logout. Logging out without a session succeeds.
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.TokenFrom(r.Context()); token != "" {
		if err := h.sessions.Destroy(r.Context(), token); err != nil {
			httputil.WriteErrorKind(w, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	httputil.WriteNoContent(w)
}

// whoami handles GET /auth/whoami
func (h *AuthHandlers) whoami(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFrom(r.Context())
	if principal == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	httputil.WriteSuccess(w, principal)
}
