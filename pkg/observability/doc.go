// Package observability provides logging, Prometheus metrics, health probes,
// and graceful shutdown for the vfin server.
package observability
