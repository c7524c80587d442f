// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-triage/internal/pipeline"
)

func sampleSummary() pipeline.RunSummary {
	start := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	return pipeline.RunSummary{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Total:      12,
		Created:    5,
		Stages: []pipeline.StageSummary{
			{
				Name:           "validation",
				Admitted:       4,
				Completed:      3,
				Failed:         1,
				NotEligible:    6,
				Skipped:        map[string]int{pipeline.ReasonAlreadyProcessed: 2},
				FailureReasons: map[string]int{"retries exhausted": 1},
				Attempts:       7,
				RateLimited:    2,
				Duration:       30 * time.Second,
			},
		},
	}
}

func TestMetricsSinkWritesTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper_triage.prom")
	sink := NewMetricsSink(path)

	require.NoError(t, sink.Publish(context.Background(), sampleSummary()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "paper_triage_papers_total 12")
	assert.Contains(t, text, "paper_triage_papers_created 5")
	assert.Contains(t, text, "paper_triage_run_duration_seconds 90")
	assert.Contains(t, text, `paper_triage_stage_papers{outcome="completed",stage="validation"} 3`)
	assert.Contains(t, text, `paper_triage_stage_papers{outcome="skipped",stage="validation"} 2`)
	assert.Contains(t, text, `paper_triage_stage_failures{reason="retries exhausted",stage="validation"} 1`)
	assert.Contains(t, text, `paper_triage_stage_attempts{stage="validation"} 7`)
	assert.Contains(t, text, "paper_triage_run_interrupted 0")
}

func TestMetricsSinkBadPath(t *testing.T) {
	sink := NewMetricsSink(filepath.Join(t.TempDir(), "missing", "dir", "m.prom"))
	err := sink.Publish(context.Background(), sampleSummary())
	assert.Error(t, err)
}
