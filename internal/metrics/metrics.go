// Package metrics exposes ingestion counters and timings for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingestion aggregates the pipeline's operational metrics.
type Ingestion struct {
	registry        *prometheus.Registry
	attempts        *prometheus.CounterVec
	rowsLoaded      prometheus.Counter
	batchesLoaded   prometheus.Counter
	logWriteFailed  prometheus.Counter
	attemptDuration prometheus.Histogram
}

// NewIngestion registers the ingestion metrics on a fresh registry.
func NewIngestion() *Ingestion {
	registry := prometheus.NewRegistry()

	m := &Ingestion{
		registry: registry,
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "entity_lookup_attempts_total",
			Help: "Ingestion attempts by terminal status.",
		}, []string{"status"}),
		rowsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "entity_lookup_rows_loaded_total",
			Help: "Rows appended into entity tables.",
		}),
		batchesLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "entity_lookup_batches_loaded_total",
			Help: "Extraction batches fully loaded.",
		}),
		logWriteFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "entity_lookup_log_write_failures_total",
			Help: "Job log writes that were swallowed after failing.",
		}),
		attemptDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "entity_lookup_attempt_duration_seconds",
			Help:    "Wall-clock duration of one ingestion attempt.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}

	registry.MustRegister(
		m.attempts,
		m.rowsLoaded,
		m.batchesLoaded,
		m.logWriteFailed,
		m.attemptDuration,
	)
	return m
}

// ObserveAttempt records one finished attempt.
func (m *Ingestion) ObserveAttempt(status string, duration time.Duration) {
	m.attempts.WithLabelValues(status).Inc()
	m.attemptDuration.Observe(duration.Seconds())
}

// ObserveBatch records one loaded batch and its row count.
func (m *Ingestion) ObserveBatch(rows int64) {
	m.batchesLoaded.Inc()
	m.rowsLoaded.Add(float64(rows))
}

// ObserveLogWriteFailure records a swallowed job log write.
func (m *Ingestion) ObserveLogWriteFailure() {
	m.logWriteFailed.Inc()
}

// Handler serves the /metrics scrape endpoint.
func (m *Ingestion) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
