// Package api exposes the HTTP surface: authentication, user administration,
// workspaces, objects and provenance. Handlers parse and validate requests,
// delegate to the service layer, and translate domain errors to HTTP statuses
// through httputil.WriteErrorKind.
package api
