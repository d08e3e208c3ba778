package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/lattice/pkg/graph"
	"github.com/platinummonkey/lattice/pkg/httputil"
	"github.com/platinummonkey/lattice/pkg/observability"
	"github.com/platinummonkey/lattice/pkg/sessions"
)

type contextKey string

const (
	principalKey contextKey = "principal"
	tokenKey     contextKey = "session_token"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "lattice_session"

// PrincipalResolver turns session tokens into authenticated users.
type PrincipalResolver struct {
	sessions *sessions.Manager
	store    graph.Store
	log      *observability.Logger
}

// NewPrincipalResolver creates the principal-resolution middleware.
func NewPrincipalResolver(mgr *sessions.Manager, store graph.Store, log *observability.Logger) *PrincipalResolver {
	return &PrincipalResolver{sessions: mgr, store: store, log: log}
}

// Middleware resolves the session token, if any, and stores the principal in
// the request context. Invalid or expired tokens are treated as anonymous
// rather than rejected; route handlers enforce their own requirements.
func (p *PrincipalResolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), tokenKey, token)

		userID, err := p.sessions.Resolve(ctx, token)
		if err != nil {
			if !errors.Is(err, sessions.ErrNoSession) {
				p.log.WithError(err).Warn("session resolution failed")
			}
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		user, err := p.store.GetUser(ctx, userID)
		if err != nil {
			// Session outlived its user. Treat as anonymous.
			if !errors.Is(err, graph.ErrNotFound) {
				p.log.WithError(err).Warn("principal lookup failed")
			}
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, user)))
	})
}

// ExtractToken pulls the session token from the Authorization header, the
// X-Session-Token header, or the session cookie, in that order.
func ExtractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return after
		}
	}
	if token := r.Header.Get("X-Session-Token"); token != "" {
		return token
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// WithPrincipal stores the authenticated user in the context.
func WithPrincipal(ctx context.Context, user *graph.User) context.Context {
	return context.WithValue(ctx, principalKey, user)
}

// PrincipalFrom returns the authenticated user, or nil for anonymous requests.
func PrincipalFrom(ctx context.Context) *graph.User {
	user, _ := ctx.Value(principalKey).(*graph.User)
	return user
}

// TokenFrom returns the raw session token presented with the request, if any.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

// RequirePrincipal rejects anonymous requests with 401 before the handler runs.
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFrom(r.Context()) == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
