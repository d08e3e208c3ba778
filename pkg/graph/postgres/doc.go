// Package postgres implements the graph store on a relational schema: one
// nodes table keyed by prefixed ID with the entity JSON alongside, and one
// edges table indexed by kind and endpoint. Traversals run as bounded
// recursive CTEs inside the database.
//
// The SQL sticks to the portable subset shared by PostgreSQL and SQLite so
// the unit tests can run against an in-memory SQLite database; integration
// tests against a real PostgreSQL are gated behind an environment flag.
package postgres
