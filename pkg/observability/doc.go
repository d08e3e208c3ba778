// Package observability provides structured logging, Prometheus metrics and
// health endpoints for the lattice service.
package observability
