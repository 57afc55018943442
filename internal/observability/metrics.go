package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the citation graph service.
// Metrics are organized by subsystem: resolution, matching, sources, graph,
// worker and events. All collectors are registered via promauto with the
// default Prometheus registry.
//
// Record methods are safe to call on a nil *Metrics; they do nothing.
type Metrics struct {
	// CitationsResolved counts citations by the strategy that resolved them
	// ("link", "pattern", "match", "unresolved").
	CitationsResolved *prometheus.CounterVec

	// Resolutions counts resolver calls, labeled by outcome.
	Resolutions *prometheus.CounterVec

	// ResolveDuration observes resolver call duration in seconds.
	ResolveDuration prometheus.Histogram

	// MatchBatches counts batches sent to the citation matching service.
	MatchBatches prometheus.Counter

	// MatchBatchErrors counts failed batches.
	MatchBatchErrors prometheus.Counter

	// MatchBatchSize observes the number of citations per batch.
	MatchBatchSize prometheus.Histogram

	// SourceRequestsTotal counts HTTP requests to external sources, labeled by source and endpoint.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed HTTP requests, labeled by source, endpoint, and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes HTTP request duration to external sources in seconds.
	SourceRequestDuration *prometheus.HistogramVec

	// PapersCreated counts papers inserted, labeled by origin ("expansion", "api").
	PapersCreated *prometheus.CounterVec

	// EdgesCreated counts cite edges inserted.
	EdgesCreated prometheus.Counter

	// EdgesDuplicate counts cite edge inserts that found an existing edge.
	EdgesDuplicate prometheus.Counter

	// Expansions counts expander runs, labeled by outcome ("success", "failed", "skipped").
	Expansions *prometheus.CounterVec

	// ExpansionDuration observes expander run duration in seconds.
	ExpansionDuration prometheus.Histogram

	// WorkerCycles counts queue worker cycles, labeled by outcome ("processed", "empty", "failed").
	WorkerCycles *prometheus.CounterVec

	// QueueDepth is the number of queued papers sampled by the worker.
	QueueDepth prometheus.Gauge

	// EventsPublished counts graph events published, labeled by event type.
	EventsPublished *prometheus.CounterVec

	// EventsFailed counts graph events that could not be published, labeled by event type.
	EventsFailed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Resolution
		CitationsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "citations_resolved_total",
			Help:      "Total number of citations processed, by resolving strategy",
		}, []string{"strategy"}),
		Resolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Total number of bibliography resolutions, by outcome",
		}, []string{"outcome"}),
		ResolveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Duration of bibliography resolutions in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),

		// Matching
		MatchBatches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_batches_total",
			Help:      "Total number of batches sent to the citation matching service",
		}),
		MatchBatchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_batch_errors_total",
			Help:      "Total number of failed citation matching batches",
		}),
		MatchBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_batch_size",
			Help:      "Number of citations per matching batch",
			Buckets:   []float64{1, 2, 5, 8, 10},
		}),

		// Sources
		SourceRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of requests to external sources",
		}, []string{"source", "endpoint"}),
		SourceRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed requests to external sources",
		}, []string{"source", "endpoint", "error_type"}),
		SourceRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of requests to external sources in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source", "endpoint"}),

		// Graph
		PapersCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_created_total",
			Help:      "Total number of papers created",
		}, []string{"origin"}),
		EdgesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cite_edges_created_total",
			Help:      "Total number of cite edges created",
		}),
		EdgesDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cite_edges_duplicate_total",
			Help:      "Total number of cite edge inserts that found an existing edge",
		}),
		Expansions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expansions_total",
			Help:      "Total number of citation graph expansions, by outcome",
		}, []string{"outcome"}),
		ExpansionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "expansion_duration_seconds",
			Help:      "Duration of citation graph expansions in seconds",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
		}),

		// Worker
		WorkerCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_cycles_total",
			Help:      "Total number of processing queue worker cycles, by outcome",
		}, []string{"outcome"}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of papers waiting in the processing queue",
		}),

		// Events
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of graph events published",
		}, []string{"event_type"}),
		EventsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Total number of graph events that failed to publish",
		}, []string{"event_type"}),
	}
}

// RecordCitationsResolved adds count citations resolved by strategy.
func (m *Metrics) RecordCitationsResolved(strategy string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.CitationsResolved.WithLabelValues(strategy).Add(float64(count))
}

// RecordResolution records a finished resolver call.
func (m *Metrics) RecordResolution(outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
	m.ResolveDuration.Observe(durationSeconds)
}

// RecordMatchBatch records a batch sent to the matching service.
func (m *Metrics) RecordMatchBatch(size int, err error) {
	if m == nil {
		return
	}
	m.MatchBatches.Inc()
	m.MatchBatchSize.Observe(float64(size))
	if err != nil {
		m.MatchBatchErrors.Inc()
	}
}

// RecordSourceRequest records a request to an external source.
func (m *Metrics) RecordSourceRequest(source, endpoint string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SourceRequestsTotal.WithLabelValues(source, endpoint).Inc()
	m.SourceRequestDuration.WithLabelValues(source, endpoint).Observe(durationSeconds)
}

// RecordSourceRequestFailed records a failed request to an external source.
func (m *Metrics) RecordSourceRequestFailed(source, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.SourceRequestsFailed.WithLabelValues(source, endpoint, errorType).Inc()
}

// RecordPaperCreated records a paper insert.
func (m *Metrics) RecordPaperCreated(origin string) {
	if m == nil {
		return
	}
	m.PapersCreated.WithLabelValues(origin).Inc()
}

// RecordEdge records a cite edge insert attempt.
func (m *Metrics) RecordEdge(created bool) {
	if m == nil {
		return
	}
	if created {
		m.EdgesCreated.Inc()
		return
	}
	m.EdgesDuplicate.Inc()
}

// RecordExpansion records a finished expander run.
func (m *Metrics) RecordExpansion(outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.Expansions.WithLabelValues(outcome).Inc()
	m.ExpansionDuration.Observe(durationSeconds)
}

// RecordWorkerCycle records one queue worker cycle.
func (m *Metrics) RecordWorkerCycle(outcome string) {
	if m == nil {
		return
	}
	m.WorkerCycles.WithLabelValues(outcome).Inc()
}

// SetQueueDepth sets the sampled queue depth.
func (m *Metrics) SetQueueDepth(depth int64) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(depth))
}

// RecordEventPublished records a graph event publish attempt.
func (m *Metrics) RecordEventPublished(eventType string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.EventsFailed.WithLabelValues(eventType).Inc()
		return
	}
	m.EventsPublished.WithLabelValues(eventType).Inc()
}
