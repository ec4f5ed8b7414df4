package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion pipeline.
type Metrics struct {
	FetchAttempts   *prometheus.CounterVec // labels: source, outcome={success,failure,empty}
	FetchErrors     *prometheus.CounterVec // labels: source, kind (fetch/parse error kind)
	RecordsIngested *prometheus.CounterVec // labels: source
	TickSkips       *prometheus.CounterVec // labels: source, reason={in_flight,backoff}

	OperationDuration *prometheus.HistogramVec // labels: source, operation
	OperationsByClass *prometheus.CounterVec   // labels: source, classification

	SourceStale      *prometheus.GaugeVec // labels: source; 1 when stale
	WindowEvents     prometheus.Gauge
	SchedulerRunning prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_monitor",
			Name:      "fetch_attempts_total",
			Help:      "Completed fetch attempts per source by outcome.",
		}, []string{"source", "outcome"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_monitor",
			Name:      "fetch_errors_total",
			Help:      "Fetch and parse failures per source by error kind.",
		}, []string{"source", "kind"}),
		RecordsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_monitor",
			Name:      "records_ingested_total",
			Help:      "Canonical records written to the cache per source.",
		}, []string{"source"}),
		TickSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_monitor",
			Name:      "tick_skips_total",
			Help:      "Scheduler ticks skipped per source by reason.",
		}, []string{"source", "reason"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quake_monitor",
			Name:      "operation_duration_seconds",
			Help:      "End-to-end duration of fetch operations including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		}, []string{"source", "operation"}),
		OperationsByClass: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_monitor",
			Name:      "operations_by_class_total",
			Help:      "Operations per source by latency classification.",
		}, []string{"source", "classification"}),
		SourceStale: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "quake_monitor",
			Name:      "source_stale",
			Help:      "1 when a source's cache entry is stale, 0 when fresh.",
		}, []string{"source"}),
		WindowEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_monitor",
			Name:      "window_events",
			Help:      "Earthquake events currently in the rolling cluster window.",
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_monitor",
			Name:      "scheduler_running",
			Help:      "1 while the scheduler loops are active.",
		}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FetchAttempts,
		m.FetchErrors,
		m.RecordsIngested,
		m.TickSkips,
		m.OperationDuration,
		m.OperationsByClass,
		m.SourceStale,
		m.WindowEvents,
		m.SchedulerRunning,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
