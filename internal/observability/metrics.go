package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// collector, reporter, and proxy.
type Metrics struct {
	ObservationsStored prometheus.Counter
	IngestErrors       prometheus.Counter
	CollectorRunning   prometheus.Gauge

	// Reporter metrics.
	ReportsSubmitted      prometheus.Counter
	ReportFailures        prometheus.Counter
	ReportEmptyWindows    prometheus.Counter
	ReportDuration        prometheus.Histogram
	ObservationsSubmitted prometheus.Counter

	// Proxy metrics.
	ProxySubmissions *prometheus.CounterVec // labels: outcome={accepted,unauthorized,forbidden,bad_request,upstream_error,storage_error}
	ProxyDuration    prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus
// registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ObservationsStored,
		m.IngestErrors,
		m.CollectorRunning,
		m.ReportsSubmitted,
		m.ReportFailures,
		m.ReportEmptyWindows,
		m.ReportDuration,
		m.ObservationsSubmitted,
		m.ProxySubmissions,
		m.ProxyDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ObservationsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crowd_depth",
			Name:      "observations_stored_total",
			Help:      "Total observations written to local storage.",
		}),
		IngestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crowd_depth",
			Name:      "ingest_errors_total",
			Help:      "Total ingestion failures (producer reads and storage writes).",
		}),
		CollectorRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crowd_depth",
			Name:      "collector_running",
			Help:      "1 when the ingestion collector is active, 0 when shut down.",
		}),
		ReportsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crowd_depth",
			Name:      "reports_submitted_total",
			Help:      "Total report windows successfully submitted to the archive.",
		}),
		ReportFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crowd_depth",
			Name:      "report_failures_total",
			Help:      "Total failed report attempts (the window is retried in full).",
		}),
		ReportEmptyWindows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crowd_depth",
			Name:      "report_empty_windows_total",
			Help:      "Total report runs skipped because the window held no observations.",
		}),
		ReportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "crowd_depth",
			Name:      "report_duration_seconds",
			Help:      "Duration of a complete read-transform-submit report cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		ObservationsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crowd_depth",
			Name:      "observations_submitted_total",
			Help:      "Total observations included in successful submissions.",
		}),
		ProxySubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crowd_depth",
			Name:      "proxy_submissions_total",
			Help:      "Proxied submissions by outcome.",
		}, []string{"outcome"}),
		ProxyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "crowd_depth",
			Name:      "proxy_duration_seconds",
			Help:      "Duration of a proxied submission including both fan-out writes.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}
