// Package metrics counts what the relay does and exposes the counters in the
// Prometheus format.
//
// Registry wraps a private prometheus.Registry fed from two sides: the
// Organizer reports commands, faults, enqueued and rejected events and
// mission registrations; the relay worker reports every delivery through
// Observe. The queue depth is a GaugeFunc read at scrape time. Handler is
// promhttp over that registry and is mounted at /metrics on the diagnostics
// listener.
package metrics
