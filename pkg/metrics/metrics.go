// Package metrics wires github.com/prometheus/client_golang into the
// bridge and backend: a handful of counters/gauges/histograms registered
// once at startup and served over HTTP on cfg.MetricsAddr, the same way
// main.go serves /health on cfg.HealthAddr. The validator's go.mod already
// requires client_golang; this package is where it actually gets used.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bridge"

// Registry groups every metric the bridge and backend report, constructed
// once in main and threaded into the components that update it. Each
// Registry owns a private prometheus.Registry rather than registering
// against the global default, so constructing more than one (tests,
// multiple backends in one process) never panics on a duplicate
// registration.
type Registry struct {
	reg *prometheus.Registry

	DeliveredTotal       *prometheus.CounterVec
	CheckTxRejectedTotal *prometheus.CounterVec
	MigrationActive      *prometheus.GaugeVec
	ValidatorCacheSize   prometheus.Gauge
	CommitLatency        prometheus.Histogram
}

// New builds and registers every metric against a fresh private registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		DeliveredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivered_tx_total",
			Help:      "Total number of deliver_tx calls, labeled by dispatch method.",
		}, []string{"method"}),
		CheckTxRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "check_tx_rejected_total",
			Help:      "Total number of check_tx rejections, labeled by rejection reason.",
		}, []string{"code"}),
		MigrationActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "migration_active",
			Help:      "1 if the named migration is active at the last observed height, else 0.",
		}, []string{"migration"}),
		ValidatorCacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "validator_cache_size",
			Help:      "Current number of entries held by the request validator cache.",
		}),
		CommitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_commit_latency_seconds",
			Help:      "Latency of storage.Engine.Commit calls.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(r.DeliveredTotal, r.CheckTxRejectedTotal, r.MigrationActive, r.ValidatorCacheSize, r.CommitLatency)
	return r
}

// ObserveCheckTxRejected increments the rejection counter for the given
// rejection reason (e.g. "duplicate"), stored under the "code" label.
func (r *Registry) ObserveCheckTxRejected(code string) {
	r.CheckTxRejectedTotal.WithLabelValues(code).Inc()
}

// ObserveDelivered increments the delivered counter for method.
func (r *Registry) ObserveDelivered(method string) {
	r.DeliveredTotal.WithLabelValues(method).Inc()
}

// SetMigrationActive records whether name is active right now.
func (r *Registry) SetMigrationActive(name string, active bool) {
	v := 0.0
	if active {
		v = 1.0
	}
	r.MigrationActive.WithLabelValues(name).Set(v)
}

// Handler returns the /metrics HTTP handler to register on cfg.MetricsAddr's
// mux, mirroring how main.go registers /health alongside it.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
