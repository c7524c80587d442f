// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pdiddy/paper-triage/internal/pipeline"
)

// Metrics holds the gauges describing the most recent run. All metrics are
// registered on a private registry so a batch job can dump them to a
// node_exporter textfile.
type Metrics struct {
	Registry *prometheus.Registry

	// PapersTotal is the size of the run's entity set.
	PapersTotal prometheus.Gauge

	// PapersCreated counts papers first seen this run.
	PapersCreated prometheus.Gauge

	// RunDuration is the wall time of the run in seconds.
	RunDuration prometheus.Gauge

	// RunInterrupted is 1 when the run was cancelled.
	RunInterrupted prometheus.Gauge

	// LastRunTimestamp is the run's finish time in unix seconds.
	LastRunTimestamp prometheus.Gauge

	// StagePapers counts papers per stage by outcome (admitted, completed,
	// failed, not_eligible, skipped, interrupted).
	StagePapers *prometheus.GaugeVec

	// StageAttempts counts worker invocations per stage.
	StageAttempts *prometheus.GaugeVec

	// StageRateLimited counts rate-limited attempts per stage.
	StageRateLimited *prometheus.GaugeVec

	// StageFailureReasons counts failed papers per stage and reason.
	StageFailureReasons *prometheus.GaugeVec

	// StageDuration is each stage's wall time in seconds.
	StageDuration *prometheus.GaugeVec
}

// NewMetrics registers the run metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	const ns = "paper_triage"

	return &Metrics{
		Registry: reg,
		PapersTotal: f.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "papers_total",
			Help: "Number of papers in the run's entity set.",
		}),
		PapersCreated: f.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "papers_created",
			Help: "Number of papers first seen in the run.",
		}),
		RunDuration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "run_duration_seconds",
			Help: "Wall time of the run.",
		}),
		RunInterrupted: f.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "run_interrupted",
			Help: "1 if the run was cancelled before finishing.",
		}),
		LastRunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "last_run_timestamp_seconds",
			Help: "Unix time the run finished.",
		}),
		StagePapers: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "stage_papers",
			Help: "Papers per stage by outcome.",
		}, []string{"stage", "outcome"}),
		StageAttempts: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "stage_attempts",
			Help: "Worker invocations per stage.",
		}, []string{"stage"}),
		StageRateLimited: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "stage_rate_limited",
			Help: "Rate-limited attempts per stage.",
		}, []string{"stage"}),
		StageFailureReasons: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "stage_failures",
			Help: "Failed papers per stage and reason.",
		}, []string{"stage", "reason"}),
		StageDuration: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "stage_duration_seconds",
			Help: "Wall time per stage.",
		}, []string{"stage"}),
	}
}

// Observe records s in the gauges.
func (m *Metrics) Observe(s pipeline.RunSummary) {
	m.PapersTotal.Set(float64(s.Total))
	m.PapersCreated.Set(float64(s.Created))
	m.RunDuration.Set(s.FinishedAt.Sub(s.StartedAt).Seconds())
	m.LastRunTimestamp.Set(float64(s.FinishedAt.Unix()))
	if s.Interrupted {
		m.RunInterrupted.Set(1)
	} else {
		m.RunInterrupted.Set(0)
	}

	for _, st := range s.Stages {
		m.StagePapers.WithLabelValues(st.Name, "admitted").Set(float64(st.Admitted))
		m.StagePapers.WithLabelValues(st.Name, "completed").Set(float64(st.Completed))
		m.StagePapers.WithLabelValues(st.Name, "failed").Set(float64(st.Failed))
		m.StagePapers.WithLabelValues(st.Name, "not_eligible").Set(float64(st.NotEligible))
		m.StagePapers.WithLabelValues(st.Name, "skipped").Set(float64(st.SkippedTotal()))
		m.StagePapers.WithLabelValues(st.Name, "interrupted").Set(float64(st.Interrupted))
		m.StageAttempts.WithLabelValues(st.Name).Set(float64(st.Attempts))
		m.StageRateLimited.WithLabelValues(st.Name).Set(float64(st.RateLimited))
		m.StageDuration.WithLabelValues(st.Name).Set(st.Duration.Seconds())
		for reason, n := range st.FailureReasons {
			m.StageFailureReasons.WithLabelValues(st.Name, reason).Set(float64(n))
		}
	}
}

// MetricsSink publishes the run summary as a Prometheus textfile.
type MetricsSink struct {
	Metrics *Metrics
	Path    string
}

// NewMetricsSink returns a sink writing to path.
func NewMetricsSink(path string) *MetricsSink {
	return &MetricsSink{Metrics: NewMetrics(), Path: path}
}

// Publish records s and rewrites the textfile atomically.
func (ms *MetricsSink) Publish(_ context.Context, s pipeline.RunSummary) error {
	ms.Metrics.Observe(s)
	if err := prometheus.WriteToTextfile(ms.Path, ms.Metrics.Registry); err != nil {
		return fmt.Errorf("writing metrics file %s: %w", ms.Path, err)
	}
	return nil
}
