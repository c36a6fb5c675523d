package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	extractionsTotal      *prometheus.CounterVec
	uploadsRejectedTotal  *prometheus.CounterVec
	evaluationsTotal      *prometheus.CounterVec
	evaluationSeconds     prometheus.Histogram
	progressClientsActive prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the evaluator.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evaluator",
			Name:      "http_requests_total",
			Help:      "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "evaluator",
			Name:      "http_latency_seconds",
			Help:      "Latency distribution for API requests.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evaluator",
			Name:      "http_errors_total",
			Help:      "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		extractionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evaluator",
			Name:      "extractions_total",
			Help:      "Document text extractions by format and outcome.",
		}, []string{"format", "outcome"})

		uploadsRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evaluator",
			Name:      "uploads_rejected_total",
			Help:      "Uploads rejected before extraction.",
		}, []string{"reason"})

		evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evaluator",
			Name:      "evaluations_total",
			Help:      "Evaluated submissions by final status.",
		}, []string{"status"})

		evaluationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "evaluator",
			Name:      "evaluation_seconds",
			Help:      "End to end time spent evaluating one submission.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		})

		progressClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "evaluator",
			Name:      "progress_clients_active",
			Help:      "Websocket clients currently streaming progress.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			extractionsTotal,
			uploadsRejectedTotal,
			evaluationsTotal,
			evaluationSeconds,
			progressClientsActive,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// Extractions exposes the extraction outcome counter.
func Extractions() *prometheus.CounterVec {
	RegisterMetrics()
	return extractionsTotal
}

// UploadsRejected exposes the counter of refused uploads.
func UploadsRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadsRejectedTotal
}

// Evaluations exposes the per-status evaluation counter.
func Evaluations() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationsTotal
}

// EvaluationDuration exposes the per-submission duration histogram.
func EvaluationDuration() prometheus.Histogram {
	RegisterMetrics()
	return evaluationSeconds
}

// ProgressClients exposes the gauge of connected progress streams.
func ProgressClients() prometheus.Gauge {
	RegisterMetrics()
	return progressClientsActive
}
