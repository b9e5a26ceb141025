package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the shared handle for analysis spans. Without a configured
// SDK it resolves to the global no-op provider.
var Tracer trace.Tracer = otel.Tracer("vigil")

// Metrics definitions
var (
	DetectorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vigil_detector_seconds",
		Help:    "Time spent running one detector family over a source text.",
		Buckets: prometheus.DefBuckets,
	}, []string{"family"})

	DetectorFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vigil_detector_failures_total",
		Help: "Total number of isolated detector family failures.",
	}, []string{"family"})

	IssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vigil_issues_total",
		Help: "Total number of issues reported, by category and severity.",
	}, []string{"category", "severity"})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vigil_analysis_seconds",
		Help:    "End-to-end time for one analysis engine invocation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_watcher_events_total",
		Help: "Total number of file system events received by the watch session.",
	})

	WatcherIgnoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_watcher_ignored_total",
		Help: "Total number of file system events dropped by the ignore set.",
	})

	DebounceArmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_debounce_armed_total",
		Help: "Total number of pending jobs armed by the debounce scheduler.",
	})

	DebounceRearmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_debounce_rearmed_total",
		Help: "Total number of pending jobs replaced by a newer event for the same path.",
	})

	DebounceFiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_debounce_fired_total",
		Help: "Total number of pending jobs that fired an analysis.",
	})

	PendingJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vigil_pending_jobs",
		Help: "Current number of armed per-path pending jobs.",
	})

	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_broadcasts_total",
		Help: "Total number of realtime analysis events broadcast to subscribers.",
	})

	BroadcastDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_broadcast_drops_total",
		Help: "Total number of messages dropped for slow or closed subscribers.",
	})

	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vigil_connected_clients",
		Help: "Current number of connected realtime subscribers.",
	})

	EnrichmentFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vigil_enrichment_failures_total",
		Help: "Total number of degraded enrichment calls (timeout or error).",
	})
)
