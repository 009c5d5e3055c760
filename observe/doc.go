// Package observe provides the logging, metrics and tracing primitives shared by
// every offlinekit component.
//
// Components accept a Logger, Metrics and Tracer through their options and fall
// back to no-op implementations, so the interception engine, the lifecycle
// manager and the offline queue can be exercised in tests without any exporter.
// NewObserver wires real OpenTelemetry providers for the offlined binary.
package observe
