// Package httputil provides HTTP handler utilities for consistent error
// handling, JSON encoding/decoding, and request parsing. WriteErrorKind maps
// the graph package's sentinel errors to HTTP status codes so handlers never
// hand-pick statuses for domain failures.
package httputil
