// Package prometheus provides Prometheus collectors for lockgate metrics.
//
// [NewPrometheusExporter] accepts a [lockgate.Engine] and exposes an [http.Handler]
// that renders all lockgate counters and histograms in Prometheus text exposition format.
// Counter names are prefixed lockgate_*_total; the single histogram is
// lockgate_status_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
