// Package observability provides an OpenTelemetry metrics extension for
// jobrepo. The MetricsExtension implements lifecycle hooks to record
// counters for instance creation, execution and step creation, and every
// status transition.
//
// For per-operation tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
