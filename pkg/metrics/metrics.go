// Package metrics exposes Prometheus metrics for fetching, ranking and the
// HTTP API. Metrics live on a custom registry so the /metrics endpoint is not
// polluted by default Go collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager holds all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Fetch metrics, labeled by provider.
	showsFetched  *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	// Ranking metrics.
	rankRuns       prometheus.Counter
	rankFailures   prometheus.Counter
	degenerateRuns prometheus.Counter
	rankDuration   prometheus.Histogram
	rankedShows    prometheus.Gauge
	estimatedShows prometheus.Gauge
	droppedShows   prometheus.Gauge

	// Storage metrics.
	storedShows *prometheus.GaugeVec

	// HTTP metrics.
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry()

func init() {
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "truerank",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.showsFetched = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "shows_fetched_total",
			Help:      "Total number of shows fetched, by provider",
		},
		[]string{"provider"},
	)

	m.fetchErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "fetch_errors_total",
			Help:      "Total number of failed provider fetches",
		},
		[]string{"provider"},
	)

	m.fetchDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of provider fetches in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)

	m.rankRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rank_runs_total",
		Help:      "Total number of completed normalization runs",
	})

	m.rankFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rank_failures_total",
		Help:      "Total number of normalization runs that failed",
	})

	m.degenerateRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "degenerate_runs_total",
		Help:      "Total number of runs where the baseline matched no shows",
	})

	m.rankDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rank_duration_seconds",
		Help:      "Duration of normalization runs in seconds",
		Buckets:   m.histogramBuckets,
	})

	m.rankedShows = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ranked_shows",
		Help:      "Number of shows in the latest ranking",
	})

	m.estimatedShows = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "estimated_shows",
		Help:      "Number of shows whose percentile was estimated in the latest ranking",
	})

	m.droppedShows = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dropped_shows",
		Help:      "Number of shows dropped below the rater threshold in the latest ranking",
	})

	m.storedShows = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "stored_shows",
			Help:      "Number of shows in the store, by provider",
		},
		[]string{"provider"},
	)

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint, method and status",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// RecordFetched adds fetched shows for a provider.
func RecordFetched(provider string, count int) {
	globalManager.showsFetched.WithLabelValues(provider).Add(float64(count))
}

// RecordFetchError increments the fetch error counter for a provider.
func RecordFetchError(provider string) {
	globalManager.fetchErrors.WithLabelValues(provider).Inc()
}

// ObserveFetchDuration records how long a provider fetch took.
func ObserveFetchDuration(provider string, seconds float64) {
	globalManager.fetchDuration.WithLabelValues(provider).Observe(seconds)
}

// RecordRankRun increments the completed run counter.
func RecordRankRun() {
	globalManager.rankRuns.Inc()
}

// RecordRankFailure increments the failed run counter.
func RecordRankFailure() {
	globalManager.rankFailures.Inc()
}

// RecordDegenerateRun increments the degenerate run counter.
func RecordDegenerateRun() {
	globalManager.degenerateRuns.Inc()
}

// ObserveRankDuration records how long a normalization run took.
func ObserveRankDuration(seconds float64) {
	globalManager.rankDuration.Observe(seconds)
}

// UpdateRankedShows sets the ranked, estimated and dropped counts from the
// latest run.
func UpdateRankedShows(ranked, estimated, dropped int) {
	globalManager.rankedShows.Set(float64(ranked))
	globalManager.estimatedShows.Set(float64(estimated))
	globalManager.droppedShows.Set(float64(dropped))
}

// UpdateStoredShows sets the stored show count for a provider.
func UpdateStoredShows(provider string, count int) {
	globalManager.storedShows.WithLabelValues(provider).Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, seconds float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(seconds)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
