// Package metrics provides Prometheus metrics for the tally tabulation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Submission pipeline
	submissionsAccepted  prometheus.Counter
	submissionsRejected  *prometheus.CounterVec
	submissionsDuplicate prometheus.Counter
	entriesFolded        prometheus.Counter

	// Resolution
	unitsFinalized    prometheus.Counter
	unitsRefinalized  prometheus.Counter
	openUnits         prometheus.Gauge
	finalizedUnits    prometheus.Gauge
	invariantFailures prometheus.Counter

	// Standings
	standingsRecomputeDuration prometheus.Histogram
	standingsRequests          prometheus.Counter

	// Visibility
	frozenRounds prometheus.Gauge

	// Store
	storeTxDuration  prometheus.Histogram
	storeTxConflicts prometheus.Counter

	// Change feed
	feedDepth     prometheus.Gauge
	feedPublished prometheus.Counter
	feedDropped   prometheus.Counter

	// Replay cache
	replayCacheSize prometheus.Gauge
	replayHits      prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager on a custom registry to avoid the default Go
// collectors showing up in scrape output.
var globalManager *Manager                     //nolint:gochecknoglobals // singleton metrics manager
var customRegistry = prometheus.NewRegistry()  //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tally",
		subsystem:        "engine",
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

	m.submissionsAccepted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "submissions_accepted_total",
		Help: "Total number of judge score submissions accepted",
	})
	m.submissionsRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "submissions_rejected_total",
		Help: "Total number of judge score submissions rejected, by reason",
	}, []string{"reason"})
	m.submissionsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "submissions_duplicate_total",
		Help: "Total number of byte-identical resubmissions answered from the replay cache",
	})
	m.entriesFolded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "entries_folded_total",
		Help: "Total number of duplicate participant entries folded by averaging",
	})

	m.unitsFinalized = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "units_finalized_total",
		Help: "Total number of scoring unit finalizations",
	})
	m.unitsRefinalized = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "units_refinalized_total",
		Help: "Total number of un-finalize/re-finalize transitions caused by resubmission",
	})
	m.openUnits = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "open_units",
		Help: "Current number of scoring units awaiting judges",
	})
	m.finalizedUnits = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "finalized_units",
		Help: "Current number of finalized scoring units",
	})
	m.invariantFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "invariant_failures_total",
		Help: "Total number of consistency invariant violations (bug-level)",
	})

	m.standingsRecomputeDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "standings_recompute_duration_milliseconds",
		Help:    "Histogram of full standings recompute time in milliseconds",
		Buckets: m.histogramBuckets,
	})
	m.standingsRequests = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "standings_requests_total",
		Help: "Total number of standings queries served",
	})

	m.frozenRounds = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "frozen_rounds",
		Help: "Current number of rounds withheld from public standings",
	})

	m.storeTxDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "store_tx_duration_milliseconds",
		Help:    "Histogram of score store transaction time in milliseconds",
		Buckets: m.histogramBuckets,
	})
	m.storeTxConflicts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "store_tx_conflicts_total",
		Help: "Total number of store transactions that failed to serialize",
	})

	m.feedDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "feed_depth",
		Help: "Current number of unit-change events buffered in the feed",
	})
	m.feedPublished = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "feed_published_total",
		Help: "Total number of unit-change events published to the feed",
	})
	m.feedDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "feed_dropped_total",
		Help: "Total number of unit-change events dropped because the feed was full or closed",
	})

	m.replayCacheSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "replay_cache_size",
		Help: "Current number of payload digests tracked by the replay cache",
	})
	m.replayHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "replay_hits_total",
		Help: "Total number of replay cache hits",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "Total number of HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_milliseconds",
		Help:    "Histogram of HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})
}

// GetRegistry returns the registry backing the global manager, for scraping.
func GetRegistry() *prometheus.Registry { return customRegistry }

// Package-level helpers against the global manager.

func RecordSubmissionAccepted()            { globalManager.submissionsAccepted.Inc() }
func RecordSubmissionRejected(reason string) {
	globalManager.submissionsRejected.WithLabelValues(reason).Inc()
}
func RecordSubmissionDuplicate() { globalManager.submissionsDuplicate.Inc() }
func RecordEntriesFolded(n int)  { globalManager.entriesFolded.Add(float64(n)) }

func RecordUnitFinalized()    { globalManager.unitsFinalized.Inc() }
func RecordUnitRefinalized()  { globalManager.unitsRefinalized.Inc() }
func UpdateOpenUnits(n int)   { globalManager.openUnits.Set(float64(n)) }
func UpdateFinalizedUnits(n int) {
	globalManager.finalizedUnits.Set(float64(n))
}
func RecordInvariantFailure() { globalManager.invariantFailures.Inc() }

func RecordStandingsRecompute(ms float64) {
	globalManager.standingsRequests.Inc()
	globalManager.standingsRecomputeDuration.Observe(ms)
}

func UpdateFrozenRounds(n int) { globalManager.frozenRounds.Set(float64(n)) }

func RecordStoreTxDuration(ms float64) { globalManager.storeTxDuration.Observe(ms) }
func RecordStoreTxConflict()           { globalManager.storeTxConflicts.Inc() }

func UpdateFeedDepth(n int)  { globalManager.feedDepth.Set(float64(n)) }
func RecordFeedPublished()   { globalManager.feedPublished.Inc() }
func RecordFeedDropped()     { globalManager.feedDropped.Inc() }

func UpdateReplayCacheSize(n int64) { globalManager.replayCacheSize.Set(float64(n)) }
func RecordReplayHit()              { globalManager.replayHits.Inc() }

func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, status string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(ms)
}
