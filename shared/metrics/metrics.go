// Package metrics holds the Prometheus collectors shared by the API and
// worker services.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "review_queue"

var (
	// JobsEnqueued counts submissions by queue and result
	// (enqueued, unauthorized, invalid, failed).
	JobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_enqueued_total",
			Help:      "Job submissions received by the API, by queue and result",
		},
		[]string{"queue", "result"},
	)

	// JobsProcessed counts finished jobs by queue and outcome.
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_processed_total",
			Help:      "Jobs processed by the worker, by queue and outcome",
		},
		[]string{"queue", "outcome"},
	)

	// JobDuration observes the pipeline time per job.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time spent processing a job",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"queue", "outcome"},
	)

	// Reconciliations counts update vs insert decisions.
	Reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Review reconciliations by action",
		},
		[]string{"action"},
	)

	// UploadCache counts upload cache lookups by result (hit, miss, error).
	UploadCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_cache_lookups_total",
			Help:      "Upload cache lookups by result",
		},
		[]string{"result"},
	)

	// HTTPRequests counts API requests.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests handled by the API",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPDuration observes API request latency.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
