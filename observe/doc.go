// Package observe provides observability primitives for orchestrated
// request execution.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. Consumers wire the observer into the orchestrator
// or their own middleware.
package observe
