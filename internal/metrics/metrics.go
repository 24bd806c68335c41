// Package metrics defines scatterstore's Prometheus collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce ensures Register() is idempotent.
var registerOnce sync.Once

var (
	// WritesTotal counts write_object calls by outcome: "ok", the failing
	// error's kind ("client", "frontend", "backend", "timeout"), or "error"
	// for a failure that carries no kind.
	WritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scatterstore_writes_total",
			Help: "Total write_object calls by outcome",
		},
		[]string{"outcome"},
	)

	// ReadsTotal counts read_object calls by outcome: "ok", "absent", the
	// failing error's kind ("unauthorized", "backend", "frontend", ...), or
	// "error" for a failure that carries no kind.
	ReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scatterstore_reads_total",
			Help: "Total read_object calls by outcome",
		},
		[]string{"outcome"},
	)

	// BackendSelectedTotal counts which backend a write ultimately
	// committed to. The frontend labels each backend "backend-<index>".
	BackendSelectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scatterstore_backend_selected_total",
			Help: "Total writes committed per backend alias",
		},
		[]string{"alias"},
	)

	// BackendLivenessMS observes is_online latency in milliseconds, labeled
	// "backend-<index>" by the frontend.
	BackendLivenessMS = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scatterstore_backend_liveness_ms",
			Help:    "is_online round-trip latency in milliseconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"alias"},
	)
)

// Register registers every collector with the default registry. Safe to
// call more than once; subsequent calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			WritesTotal,
			ReadsTotal,
			BackendSelectedTotal,
			BackendLivenessMS,
		)
	})
}
