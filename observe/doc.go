// Package observe provides observability primitives for protected upstream calls.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. The resilience and registry packages consume the
// Logger and Metrics interfaces defined here; hosts wire a concrete Observer
// (or their own zap logger via NewZapLogger) at construction time.
package observe
