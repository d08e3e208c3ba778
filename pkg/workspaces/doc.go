// Package workspaces orchestrates workspace and object mutations: creation,
// in-place workspace updates, workspace copies, grant edges, and
// copy-on-write object edits with provenance bookkeeping.
//
// Every mutation checks permissions before touching the graph, then performs
// a sequence of independent node/edge writes with no cross-write
// transaction. A failure partway through leaves the graph partially mutated;
// this is an accepted weak-consistency design and such failures are logged
// and surfaced to the caller.
package workspaces
