// Package metrics exposes batch run counters in the Prometheus text format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jonathan/transcript-pipeline/internal/pipeline"
	"github.com/jonathan/transcript-pipeline/internal/poller"
	"github.com/jonathan/transcript-pipeline/internal/types"
)

// Metrics contains all Prometheus metrics for a pipeline run.
// It implements pipeline.Observer.
type Metrics struct {
	registry *prometheus.Registry

	// Job metrics
	JobsFinished *prometheus.CounterVec
	JobDuration  prometheus.Histogram

	// Remote service metrics
	StageRetries *prometheus.CounterVec
	Polls        *prometheus.CounterVec

	// Run metrics
	RunJobs      *prometheus.GaugeVec
	LastRunEnded prometheus.Gauge
}

// New creates all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		JobsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "transcript_jobs_finished_total",
			Help: "Jobs that finished processing, by final status",
		}, []string{"status"}),
		JobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "transcript_job_duration_seconds",
			Help:    "Wall time spent processing one job",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~2.3 hours
		}),

		StageRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "transcript_stage_retries_total",
			Help: "Retries of a pipeline stage after a transient failure",
		}, []string{"stage"}),
		Polls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "transcript_status_polls_total",
			Help: "Remote status queries, by observed state",
		}, []string{"state"}),

		RunJobs: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "transcript_run_jobs",
			Help: "Job counts of the last run, by outcome",
		}, []string{"outcome"}),
		LastRunEnded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "transcript_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

// Registry returns the registry holding every metric.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Retried counts a stage retry.
func (m *Metrics) Retried(stage pipeline.Stage) {
	m.StageRetries.WithLabelValues(string(stage)).Inc()
}

// Polled counts a status query.
func (m *Metrics) Polled(state poller.RemoteState) {
	m.Polls.WithLabelValues(string(state)).Inc()
}

// JobFinished counts a processed job.
func (m *Metrics) JobFinished(status types.Status, elapsed time.Duration) {
	m.JobsFinished.WithLabelValues(string(status)).Inc()
	m.JobDuration.Observe(elapsed.Seconds())
}

// RecordSummary sets the run gauges from a summary.
func (m *Metrics) RecordSummary(sum pipeline.Summary, now time.Time) {
	m.RunJobs.WithLabelValues("total").Set(float64(sum.Total))
	m.RunJobs.WithLabelValues("processed").Set(float64(sum.Processed))
	m.RunJobs.WithLabelValues("completed").Set(float64(sum.Completed))
	m.RunJobs.WithLabelValues("skipped").Set(float64(sum.Skipped))
	m.RunJobs.WithLabelValues("failed").Set(float64(sum.Failed))
	m.RunJobs.WithLabelValues("deferred").Set(float64(sum.Deferred))
	m.RunJobs.WithLabelValues("healed").Set(float64(sum.Healed))
	m.LastRunEnded.Set(float64(now.Unix()))
}

// WriteTextfile writes every metric to path for a node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
