// Package health exposes the state of protected upstream resources as
// health checks.
//
// This package implements a generic health checking framework: a Checker
// reports the health of one component, an Aggregator combines multiple
// checkers into a composite status, and HTTP handlers expose the results as
// liveness, readiness, and detailed endpoints.
//
// # Core Concepts
//
// A Checker is any component that can report its health status. The Status
// type represents the health state: Healthy, Degraded, or Unhealthy.
//
// # Resource Checkers
//
// BreakerChecker and LimiterChecker map resilience state to health: an open
// circuit breaker is unhealthy, a half-open breaker is degraded, and an
// exhausted rate-limit window is degraded. RegisterResources wires every
// resource in a registry into an aggregator:
//
//	agg := health.NewAggregator()
//	health.RegisterResources(agg, registry)
//
//	results := agg.CheckAll(ctx)
//	overall := agg.OverallStatus(results)
//
// # HTTP Endpoints
//
// The package provides HTTP handlers for common health check patterns:
//
//	// Liveness probe (for Kubernetes)
//	http.Handle("/healthz", health.LivenessHandler())
//
//	// Readiness probe with component checks
//	http.Handle("/readyz", health.ReadinessHandler(agg))
//
//	// Detailed health status
//	http.Handle("/health", health.DetailedHandler(agg))
package health
