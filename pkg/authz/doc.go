// Package authz is the authorization decision engine. It resolves transitive
// group membership, evaluates permission checks against direct perms, group
// perms and scoped grant edges, and derives workspace/object visibility.
//
// Decision functions never raise on missing permissions: absence of data is
// a false decision, and only storage failures surface as errors. Every
// traversal is depth-bounded, so a single check completes in a bounded
// number of graph hops regardless of graph shape.
package authz
