// Package metric provides Prometheus metric registration for the dashboard
// platform.
//
// A single MetricsRegistry is constructed at application start and passed to
// components that want to expose metrics. Core platform metrics (dispatch
// pipeline counters, registry and buffer gauges, transport state) are
// always registered; components register additional collectors through the
// MetricsRegistrar interface, namespaced by component name.
//
// Metrics are optional everywhere: components accept the registry through a
// WithMetrics functional option and work identically without one.
package metric
