// Package middleware resolves the requesting principal from session tokens.
//
// Resolution is optional by design: requests without a valid session proceed
// with a nil principal and the authorization layer decides what an anonymous
// caller may see. Handlers that demand authentication use RequirePrincipal.
package middleware
