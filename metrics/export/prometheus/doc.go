// Package prometheus renders client metrics in Prometheus text exposition format.
//
// Counters are named gosession_*_total. Live session state is exported as
// gauges (gosession_authenticated, gosession_refresh_pending and friends) and
// refresh latency as gosession_refresh_latency_seconds. Callers mount [PrometheusExporter.Handler]
// on their own mux; nothing is registered globally.
package prometheus
