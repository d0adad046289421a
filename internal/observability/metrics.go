package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	ingestRejectedTotal   *prometheus.CounterVec
	pipelineOutcomesTotal *prometheus.CounterVec
	extractionLatency     prometheus.Histogram
	dispatchQueueDepth    prometheus.Gauge
	requestsTotal         *prometheus.CounterVec
	latencySeconds        *prometheus.HistogramVec
)

// RegisterMetrics initialises the Prometheus collectors used for pipeline observability.
func RegisterMetrics() {
	registerOnce.Do(func() {
		ingestRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examflow_ingest_rejected_total",
			Help: "Total number of batch items rejected during ingestion.",
		}, []string{"reason"})

		pipelineOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examflow_pipeline_outcomes_total",
			Help: "Terminal pipeline outcomes per submission.",
		}, []string{"status"})

		extractionLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "examflow_extraction_duration_seconds",
			Help:    "Latency distribution for text extraction.",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		})

		dispatchQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "examflow_dispatch_queue_depth",
			Help: "Number of submissions waiting for a pipeline worker.",
		})

		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examflow_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		latencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "examflow_request_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		prometheus.MustRegister(
			ingestRejectedTotal,
			pipelineOutcomesTotal,
			extractionLatency,
			dispatchQueueDepth,
			requestsTotal,
			latencySeconds,
		)
	})
}

// IngestRejected exposes the counter for rejected batch items.
func IngestRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return ingestRejectedTotal
}

// PipelineOutcomes exposes the counter for terminal pipeline outcomes.
func PipelineOutcomes() *prometheus.CounterVec {
	RegisterMetrics()
	return pipelineOutcomesTotal
}

// ExtractionLatency exposes the extraction latency histogram.
func ExtractionLatency() prometheus.Histogram {
	RegisterMetrics()
	return extractionLatency
}

// QueueDepth exposes the dispatch queue depth gauge.
func QueueDepth() prometheus.Gauge {
	RegisterMetrics()
	return dispatchQueueDepth
}

// Requests exposes the counter for API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// Latency exposes the latency histogram for API requests.
func Latency() *prometheus.HistogramVec {
	RegisterMetrics()
	return latencySeconds
}
