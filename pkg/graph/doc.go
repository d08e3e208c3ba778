// Package graph defines the data model for the lattice resource graph and
// the Store interface that backends implement.
//
// The graph holds four node kinds (users, groups, workspaces, objects) and
// four edge kinds:
//
//   - memberOf:  user/group -> group, transitive membership
//   - hasPerm:   user/group -> workspace/object, a scoped permission grant
//   - contains:  workspace -> object, workspace membership
//   - updatedTo: object -> object, version provenance
//
// Node identifiers are opaque strings of the form "<kind>/<key>", unique
// within their collection. Objects are immutable once created; an edit
// produces a new object node linked to the old one by an updatedTo edge.
//
// All traversals exposed by a Store are depth-bounded and must terminate on
// cyclic graphs. Absence of data is a negative result, not an error: lookups
// that find nothing return ErrNotFound, and permission checks built on top
// of the store translate that into a false decision.
package graph
