package graph

import "errors"

// Error kinds surfaced by the service layer. Handlers match these with
// errors.Is and map them onto transport status codes; the graph core itself
// never turns a missing permission into an error.
var (
	// ErrUnauthorized means no principal was supplied where one is required.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the principal lacks the required permission.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound means a referenced node does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState means a required edge precondition does not hold.
	ErrInvalidState = errors.New("invalid state")
	// ErrConflict means a uniqueness constraint was violated on creation.
	ErrConflict = errors.New("conflict")
)
