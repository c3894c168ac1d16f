package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch status label values.
const (
	StatusOK         = "ok"
	StatusUnresolved = "unresolved"
	StatusInvalid    = "invalid"
	StatusAllocation = "allocation"
	StatusSubmission = "submission"
	StatusTooLarge   = "too_large"
)

var (
	EndpointResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ferrum_http_responses_total",
		Help: "The total number of metrics endpoint responses",
	}, []string{"endpoint", "status_code"})

	// Dispatch Metrics
	DispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ferrum_dispatch_total",
		Help: "Total number of kernel dispatches by operation and outcome",
	}, []string{"operation", "status"})

	DispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ferrum_dispatch_duration_ms",
		Help:    "Duration of a kernel dispatch from allocation to readback in milliseconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 20), // 10µs to ~5s
	}, []string{"shape"})

	DispatchBufferBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ferrum_dispatch_buffer_bytes_total",
		Help: "Total bytes copied into per-call device buffers",
	})

	DispatchThreads = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ferrum_dispatch_threads",
		Help: "Number of threads in the last dispatch",
	})

	// Pipeline Metrics
	PipelineSlots = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ferrum_pipeline_slots",
		Help: "Number of pipeline table slots by state",
	}, []string{"state"})
)
