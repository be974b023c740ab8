package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hazard_alerts"

// Metrics holds the Prometheus counters, histograms, and gauges for the alert service.
type Metrics struct {
	PollerRunning prometheus.Gauge
	PollCycles    *prometheus.CounterVec // labels: outcome={success,partial,failed}
	PollDuration  prometheus.Histogram

	// Snapshot contents.
	AlertsActive      prometheus.Gauge
	BoundariesMatched prometheus.Gauge

	// Upstream fetch metrics.
	FetchRequests *prometheus.CounterVec   // labels: dependency, outcome={success,error,rejected}
	FetchRetries  *prometheus.CounterVec   // labels: dependency
	FetchDuration *prometheus.HistogramVec // labels: dependency
	BreakerState  *prometheus.GaugeVec     // labels: dependency; 0 closed, 1 half-open, 2 open

	// Parsing and geometry.
	ParseFailures    *prometheus.CounterVec // labels: source
	GeometryResolved *prometheus.CounterVec // labels: method={feed,zone,region,default,none}

	// Sinks.
	PublishErrors *prometheus.CounterVec // labels: sink
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.PollerRunning,
		m.PollCycles,
		m.PollDuration,
		m.AlertsActive,
		m.BoundariesMatched,
		m.FetchRequests,
		m.FetchRetries,
		m.FetchDuration,
		m.BreakerState,
		m.ParseFailures,
		m.GeometryResolved,
		m.PublishErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		PollerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poller_running",
			Help:      help("1 when the poller is active, 0 when shut down."),
		}),
		PollCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      help("Poll cycles by outcome."),
		}, []string{"outcome"}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      help("Duration of a complete fetch-normalize-match cycle."),
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		AlertsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alerts_active",
			Help:      help("Alerts in the latest snapshot."),
		}),
		BoundariesMatched: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "boundaries_matched",
			Help:      help("Boundaries covered by at least one alert in the latest snapshot."),
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      help("Upstream fetches by dependency and outcome."),
		}, []string{"dependency", "outcome"}),
		FetchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      help("Retried upstream attempts by dependency."),
		}, []string{"dependency"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      help("Upstream fetch duration including retries."),
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"dependency"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      help("Circuit breaker state: 0 closed, 1 half-open, 2 open."),
		}, []string{"dependency"}),
		ParseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_failures_total",
			Help:      help("Feed items dropped during parsing."),
		}, []string{"source"}),
		GeometryResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geometry_resolved_total",
			Help:      help("Alert geometries by resolution method."),
		}, []string{"method"}),
		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      help("Snapshot publish failures by sink."),
		}, []string{"sink"}),
	}
}
