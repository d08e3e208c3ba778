// Package surreal implements the graph store on SurrealDB. Nodes and edges
// live in two tables addressed by WHERE clauses rather than record IDs, which
// keeps the prefixed identifiers ("users/<uuid>") intact without record-ID
// escaping. Traversals run as a level-by-level frontier walk, one query per
// depth, bounded by the shared traversal ceiling.
package surreal
