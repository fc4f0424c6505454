// Package metrics provides Prometheus metrics for the form filling service.
// Labels never carry session or request ids.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "formfiller"

var (
	// TurnsTotal counts processed turns by operation (start, continue) and outcome.
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "turns_total",
		Help:      "Total number of processed turns, by operation and outcome.",
	}, []string{"operation", "outcome"})

	// TurnDuration observes end-to-end turn latency.
	TurnDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "turn_duration_seconds",
		Help:      "Turn latency including extraction and persistence.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"operation"})

	// ExtractionFailuresTotal counts turns whose extraction failed and were treated as no new info.
	ExtractionFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extraction_failures_total",
		Help:      "Total number of failed extraction calls.",
	})

	// CompletionsTotal counts sessions that reached the complete status.
	CompletionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "completions_total",
		Help:      "Total number of sessions completed.",
	})

	// FieldsFilledTotal counts merge operations applied to sessions, by op.
	FieldsFilledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fields_filled_total",
		Help:      "Total number of field values added or replaced.",
	}, []string{"op"})

	// StoreErrorsTotal counts failed session store calls.
	StoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_errors_total",
		Help:      "Total number of session store failures, by operation.",
	}, []string{"op"})

	// HTTPRequestsTotal counts HTTP requests by route pattern, method and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"route", "method", "code"})

	// HTTPRequestDuration observes HTTP latency by route pattern and method.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
)

// ObserveTurn records one finished turn.
func ObserveTurn(operation, outcome string, elapsed time.Duration) {
	TurnsTotal.WithLabelValues(operation, outcome).Inc()
	TurnDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}
