// Package events provides the event primitives, non-blocking hub, and emitter
// interfaces the orchestrator uses to report pipeline progress. It batches
// events on a background goroutine and fans them out to pluggable sinks such
// as Prometheus metrics or structured logs.
package events
