package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Workflow metrics
	WorkflowsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resumeforge_workflows_started_total",
			Help: "Total number of workflow runs started",
		},
		[]string{"mode"},
	)

	WorkflowsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resumeforge_workflows_completed_total",
			Help: "Total number of workflow runs completed",
		},
		[]string{"mode", "status"},
	)

	WorkflowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resumeforge_workflow_duration_seconds",
			Help:    "Workflow run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	WorkflowTokensUsed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resumeforge_workflow_tokens_used",
			Help:    "Number of tokens used per workflow run",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
		},
	)

	// Step metrics
	StepExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resumeforge_step_executions_total",
			Help: "Total number of step executions",
		},
		[]string{"step_type", "status"},
	)

	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resumeforge_step_duration_ms",
			Help:    "Step execution duration in milliseconds",
			Buckets: []float64{10, 50, 100, 500, 1000, 2000, 5000, 10000, 30000},
		},
		[]string{"step_type"},
	)

	StepTokensUsed = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resumeforge_step_tokens_used",
			Help:    "Number of tokens used per step",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000},
		},
		[]string{"step_type"},
	)

	// Intermediate result cache metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resumeforge_intermediate_cache_hits_total",
			Help: "Total number of intermediate result cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resumeforge_intermediate_cache_misses_total",
			Help: "Total number of intermediate result cache misses",
		},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resumeforge_intermediate_cache_errors_total",
			Help: "Total number of intermediate result cache errors",
		},
		[]string{"operation"},
	)

	// Collaborator metrics
	CollaboratorRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resumeforge_collaborator_requests_total",
			Help: "Total number of collaborator service requests",
		},
		[]string{"service", "status"},
	)

	CollaboratorRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resumeforge_collaborator_request_duration_seconds",
			Help:    "Collaborator request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	// Usage audit metrics
	UsageRecordsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resumeforge_usage_records_written_total",
			Help: "Total number of token usage audit rows written",
		},
	)

	UsageRecordErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resumeforge_usage_record_errors_total",
			Help: "Total number of token usage audit write failures",
		},
	)

	// Streaming metrics
	StreamEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resumeforge_stream_events_published_total",
			Help: "Total number of step events published to subscribers",
		},
		[]string{"type"},
	)

	StreamSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "resumeforge_stream_subscribers",
			Help: "Number of active stream subscribers",
		},
	)
)
