// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// StageSummary holds one stage's counts for a run.
type StageSummary struct {
	Name string `json:"name"`

	// Admitted is the number of papers handed to the worker.
	Admitted int `json:"admitted"`

	// Outcomes of this run. NotEligible includes no-op terminals written
	// during admission.
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
	NotEligible int `json:"not_eligible"`
	Interrupted int `json:"interrupted,omitempty"`

	// Skipped counts papers not admitted, by reason.
	Skipped map[string]int `json:"skipped,omitempty"`

	// FailureReasons counts failed papers by reason.
	FailureReasons map[string]int `json:"failure_reasons,omitempty"`

	Attempts    int           `json:"attempts"`
	RateLimited int           `json:"rate_limited,omitempty"`
	Duration    time.Duration `json:"duration_ns"`

	// Error is set when the stage itself failed.
	Error string `json:"error,omitempty"`
}

// SkippedTotal returns the number of papers the stage did not admit.
func (s StageSummary) SkippedTotal() int {
	n := 0
	for _, v := range s.Skipped {
		n += v
	}
	return n
}

// RunSummary aggregates a whole run.
type RunSummary struct {
	RunID       string         `json:"run_id"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Total       int            `json:"total"`
	Created     int            `json:"created"`
	Interrupted bool           `json:"interrupted"`
	Stages      []StageSummary `json:"stages"`
}

// Failed returns the number of papers failed across all stages this run.
func (s RunSummary) Failed() int {
	n := 0
	for _, st := range s.Stages {
		n += st.Failed
	}
	return n
}

// HasFailures reports whether any paper or stage failed.
func (s RunSummary) HasFailures() bool {
	for _, st := range s.Stages {
		if st.Failed > 0 || st.Error != "" {
			return true
		}
	}
	return false
}

// Stage returns the summary for name.
func (s RunSummary) Stage(name string) (StageSummary, bool) {
	for _, st := range s.Stages {
		if st.Name == name {
			return st, true
		}
	}
	return StageSummary{}, false
}

// Write prints a human-readable table of the run.
func (s RunSummary) Write(w io.Writer) {
	fmt.Fprintf(w, "Run %s: %d papers (%d new) in %s\n",
		s.RunID, s.Total, s.Created, s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "%-12s %8s %9s %6s %12s %7s\n", "stage", "admitted", "completed", "failed", "not_eligible", "skipped")
	for _, st := range s.Stages {
		fmt.Fprintf(w, "%-12s %8d %9d %6d %12d %7d\n",
			st.Name, st.Admitted, st.Completed, st.Failed, st.NotEligible, st.SkippedTotal())
		for _, reason := range sortedKeys(st.FailureReasons) {
			fmt.Fprintf(w, "  failed: %s (%d)\n", reason, st.FailureReasons[reason])
		}
		if st.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", st.Error)
		}
	}
	if s.Interrupted {
		fmt.Fprintln(w, "Run interrupted; pending papers resume on the next run.")
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SummarySink receives the run summary once the run ends.
type SummarySink interface {
	Publish(ctx context.Context, s RunSummary) error
}

// LogSink writes the summary to a structured logger.
type LogSink struct {
	Logger zerolog.Logger
}

// Publish logs one line per stage and one for the run.
func (l LogSink) Publish(_ context.Context, s RunSummary) error {
	for _, st := range s.Stages {
		ev := l.Logger.Info()
		if st.Failed > 0 || st.Error != "" {
			ev = l.Logger.Warn()
		}
		ev.Str("run_id", s.RunID).
			Str("stage", st.Name).
			Int("admitted", st.Admitted).
			Int("completed", st.Completed).
			Int("failed", st.Failed).
			Int("not_eligible", st.NotEligible).
			Int("skipped", st.SkippedTotal()).
			Int("attempts", st.Attempts).
			Interface("failure_reasons", st.FailureReasons).
			Msg("stage summary")
	}
	l.Logger.Info().
		Str("run_id", s.RunID).
		Int("total", s.Total).
		Int("created", s.Created).
		Int("failed", s.Failed()).
		Bool("interrupted", s.Interrupted).
		Dur("duration", s.FinishedAt.Sub(s.StartedAt)).
		Msg("run summary")
	return nil
}
