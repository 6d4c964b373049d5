// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Engine metrics
	TicksProcessed    prometheus.Counter
	SyntheticTicks    prometheus.Counter
	PositionsOpened   *prometheus.CounterVec
	PositionsClosed   *prometheus.CounterVec
	EntriesDeferred   prometheus.Counter
	LegsSkipped       prometheus.Counter
	ReentriesPending  prometheus.Gauge
	TickEvalDuration  prometheus.Histogram

	// Run metrics
	ActiveRuns     prometheus.Gauge
	RunsTotal      *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec

	// Feed metrics
	LateTicksDropped prometheus.Counter
	FeedReconnects   prometheus.Counter
	LiveQueueDepth   prometheus.Gauge

	// Journal metrics
	EventsJournaled  prometheus.Counter
	JournalErrors    *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "osl"
	}

	return &Metrics{
		// Engine metrics
		TicksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "ticks_processed_total",
			Help:      "Total number of ticks processed",
		}),
		SyntheticTicks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "synthetic_ticks_total",
			Help:      "Total number of synthetic clock ticks processed",
		}),
		PositionsOpened: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "positions_opened_total",
			Help:      "Total number of positions opened by entry kind",
		}, []string{"kind"}),
		PositionsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "positions_closed_total",
			Help:      "Total number of positions closed by status",
		}, []string{"status"}),
		EntriesDeferred: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "entries_deferred_total",
			Help:      "Total number of deferred entry attempts",
		}),
		LegsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "legs_skipped_total",
			Help:      "Total number of legs skipped without entering",
		}),
		ReentriesPending: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "reentries_pending",
			Help:      "Current number of armed re-entry watches",
		}),
		TickEvalDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "tick_eval_duration_seconds",
			Help:      "Tick evaluation duration in seconds",
			Buckets:   []float64{.00001, .0001, .001, .01, .1, 1},
		}),

		// Run metrics
		ActiveRuns: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "active_runs",
			Help:      "Number of runs currently executing",
		}),
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "runs_total",
			Help:      "Total number of runs by mode and final status",
		}, []string{"mode", "status"}),
		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Run wall-clock duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 300, 1800, 7200, 21600},
		}, []string{"mode"}),

		// Feed metrics
		LateTicksDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "late_ticks_dropped_total",
			Help:      "Total number of ticks dropped for arriving out of order",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of live feed reconnects",
		}),
		LiveQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "live_queue_depth",
			Help:      "Ticks buffered between the live feed and the engine",
		}),

		// Journal metrics
		EventsJournaled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "events_total",
			Help:      "Total number of lifecycle events journaled",
		}),
		JournalErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "errors_total",
			Help:      "Total number of journal persistence errors by store",
		}, []string{"store"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTick increments the ticks processed counter.
func RecordTick(synthetic bool) {
	DefaultMetrics.TicksProcessed.Inc()
	if synthetic {
		DefaultMetrics.SyntheticTicks.Inc()
	}
}

// RecordTickEval records one tick's evaluation duration.
func RecordTickEval(seconds float64) {
	DefaultMetrics.TickEvalDuration.Observe(seconds)
}

// RecordPositionOpened increments the opened counter. kind is "initial"
// or "reentry".
func RecordPositionOpened(kind string) {
	DefaultMetrics.PositionsOpened.WithLabelValues(kind).Inc()
}

// RecordPositionClosed increments the closed counter for the status.
func RecordPositionClosed(status string) {
	DefaultMetrics.PositionsClosed.WithLabelValues(status).Inc()
}

// RecordEntryDeferred increments the deferred entries counter.
func RecordEntryDeferred() {
	DefaultMetrics.EntriesDeferred.Inc()
}

// RecordLegSkipped increments the skipped legs counter.
func RecordLegSkipped() {
	DefaultMetrics.LegsSkipped.Inc()
}

// UpdateReentriesPending updates the armed re-entry watch gauge.
func UpdateReentriesPending(n int) {
	DefaultMetrics.ReentriesPending.Set(float64(n))
}

// RecordRunStarted records a run entering execution.
func RecordRunStarted() {
	DefaultMetrics.ActiveRuns.Inc()
}

// RecordRunFinished records a run leaving execution with its final status.
func RecordRunFinished(mode, status string, durationSeconds float64) {
	DefaultMetrics.ActiveRuns.Dec()
	DefaultMetrics.RunsTotal.WithLabelValues(mode, status).Inc()
	DefaultMetrics.RunDuration.WithLabelValues(mode).Observe(durationSeconds)
}

// RecordLateTick increments the dropped late tick counter.
func RecordLateTick() {
	DefaultMetrics.LateTicksDropped.Inc()
}

// RecordFeedReconnect increments the feed reconnect counter.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// UpdateLiveQueueDepth updates the live queue depth gauge.
func UpdateLiveQueueDepth(n int) {
	DefaultMetrics.LiveQueueDepth.Set(float64(n))
}

// RecordEventJournaled increments the journaled events counter.
func RecordEventJournaled() {
	DefaultMetrics.EventsJournaled.Inc()
}

// RecordJournalError records a journal persistence failure.
func RecordJournalError(store string) {
	DefaultMetrics.JournalErrors.WithLabelValues(store).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
