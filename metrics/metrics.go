// Package metrics exposes Prometheus metrics for the compression pipeline.
// Labels stay low-cardinality: no job IDs, buckets or file names.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal counts finished jobs by outcome (published or a failure kind).
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidpress_jobs_total",
		Help: "Total number of finished compression jobs, by outcome.",
	}, []string{"outcome"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidpress_job_duration_seconds",
		Help:    "Wall-clock duration of compression jobs, by outcome.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{"outcome"})

	// StageDuration times the encode and upload stages separately.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidpress_stage_duration_seconds",
		Help:    "Duration of pipeline stages, by stage.",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{"stage"})

	BytesIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidpress_bytes_in_total",
		Help: "Total bytes of uploaded source videos.",
	})

	BytesOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidpress_bytes_out_total",
		Help: "Total bytes of published compressed videos.",
	})

	JobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidpress_jobs_in_flight",
		Help: "Current number of running compression jobs.",
	})

	// CleanupErrors counts temp files that could not be removed.
	CleanupErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidpress_cleanup_errors_total",
		Help: "Total number of temporary files that failed to be removed.",
	})
)

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordJob records a finished job.
func RecordJob(outcome string, d time.Duration) {
	JobsTotal.WithLabelValues(outcome).Inc()
	JobDuration.WithLabelValues(outcome).Observe(d.Seconds())
}
