// Package telemetry exposes coordinator metrics through OpenTelemetry.
//
// RefreshMetrics is a coordinator.RefreshObserver. The Provider wires an
// OpenTelemetry meter provider to a Prometheus registry and serves it over
// HTTP, normally at /metrics.
package telemetry
