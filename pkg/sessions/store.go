package sessions

import (
	"context"
	"errors"
	"time"
)

// ErrNoSession means the token hash resolved to nothing: unknown, expired,
// or destroyed.
var ErrNoSession = errors.New("no such session")

// Session binds a hashed token to a user.
type Session struct {
	TokenHash string    `json:"token_hash"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store persists sessions keyed by token hash. Implementations must be safe
// for concurrent use.
type Store interface {
	// Save persists a session.
	Save(ctx context.Context, s Session) error
	// Lookup resolves a token hash to its session; expired sessions yield
	// ErrNoSession.
	Lookup(ctx context.Context, tokenHash string) (*Session, error)
	// Delete removes a session. Deleting an absent session is not an error.
	Delete(ctx context.Context, tokenHash string) error
	// DeleteExpired removes expired sessions and reports how many went.
	// Backends with native TTL support may always return 0.
	DeleteExpired(ctx context.Context) (int, error)
	// Ping checks backend connectivity.
	Ping(ctx context.Context) error
}
