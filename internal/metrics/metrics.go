package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "beacon"

// Metrics owns a private registry with the process, Go runtime and beacon collectors.
type Metrics struct {
	registry *prometheus.Registry

	probes           *prometheus.CounterVec
	probeDuration    *prometheus.HistogramVec
	reconcileRuns    prometheus.Counter
	reconcileLatency prometheus.Histogram
	statusChanges    prometheus.Counter
	storeUnavailable *prometheus.CounterVec
	services         *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Reachability probes by outcome.",
		}, []string{"outcome"}),
		probeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Latency of a single reachability probe.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"outcome"}),
		reconcileRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_runs_total",
			Help:      "Completed reconcile passes.",
		}),
		reconcileLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Wall time of a reconcile pass.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		statusChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_changes_total",
			Help:      "Observed online/offline transitions persisted by the reconciler.",
		}),
		storeUnavailable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_unavailable_total",
			Help:      "Store calls that failed with an unavailable backend.",
		}, []string{"op"}),
		services: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "services",
			Help:      "Services in the last listing, by state.",
		}, []string{"state"}),
	}

	m.registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
		m.probes,
		m.probeDuration,
		m.reconcileRuns,
		m.reconcileLatency,
		m.statusChanges,
		m.storeUnavailable,
		m.services,
	)
	return m
}

// ObserveProbe records one probe (probe.Observer).
func (m *Metrics) ObserveProbe(outcome string, elapsed time.Duration) {
	m.probes.WithLabelValues(outcome).Inc()
	m.probeDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveReconcile records one reconcile pass and how many statuses it changed.
func (m *Metrics) ObserveReconcile(elapsed time.Duration, changed int) {
	m.reconcileRuns.Inc()
	m.reconcileLatency.Observe(elapsed.Seconds())
	m.statusChanges.Add(float64(changed))
}

// StoreUnavailable counts a failed store call.
func (m *Metrics) StoreUnavailable(op string) {
	m.storeUnavailable.WithLabelValues(op).Inc()
}

// SetServices publishes the size of the last listing.
func (m *Metrics) SetServices(online, offline, external int) {
	m.services.WithLabelValues("online").Set(float64(online))
	m.services.WithLabelValues("offline").Set(float64(offline))
	m.services.WithLabelValues("external").Set(float64(external))
}

// Registry exposes the underlying registry (tests).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
