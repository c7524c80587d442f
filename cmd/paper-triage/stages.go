// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-triage/internal/arxiv"
	"github.com/pdiddy/paper-triage/internal/content"
	"github.com/pdiddy/paper-triage/internal/embedding"
	"github.com/pdiddy/paper-triage/internal/httputil"
	"github.com/pdiddy/paper-triage/internal/llm"
	"github.com/pdiddy/paper-triage/internal/notify"
	"github.com/pdiddy/paper-triage/internal/observability"
	"github.com/pdiddy/paper-triage/internal/pipeline"
	"github.com/pdiddy/paper-triage/internal/reputation"
	"github.com/pdiddy/paper-triage/internal/retention"
	"github.com/pdiddy/paper-triage/internal/store"
	"github.com/pdiddy/paper-triage/pkg/types"
)

// Names of the maintenance steps that own no status field.
const (
	stepRetention    = "retention"
	stepNotification = "notification"
)

// arxivRate keeps metadata requests to one every three seconds.
const arxivRate = 1.0 / 3

// stepNames lists every step in run order.
func stepNames() []string {
	out := make([]string, 0, len(types.Stages)+2)
	for _, st := range types.Stages {
		out = append(out, string(st))
	}
	return append(out, stepRetention, stepNotification)
}

// parseSteps validates a --stages selection. An empty selection means all.
func parseSteps(sel []string) (map[string]bool, error) {
	known := stepNames()
	out := make(map[string]bool, len(sel))
	for _, s := range sel {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !slices.Contains(known, s) {
			return nil, fmt.Errorf("unknown stage %q (known: %s)", s, strings.Join(known, ", "))
		}
		out[s] = true
	}
	return out, nil
}

// buildStages wires every stage of cfg in pipeline order, keeping only the
// steps in only when it is non-empty.
func buildStages(cfg types.PipelineConfig, st store.Store, topics []types.Topic, log zerolog.Logger, only map[string]bool) []pipeline.StageDescriptor {
	meta := arxiv.NewMetadata(cfg.Arxiv)
	extractor := content.NewExtractor(cfg.Content)
	scorer := embedding.NewScorer(cfg.Embedding, topics, st, observability.WithStageContext(log, string(types.StageEmbedding)))
	validator := llm.NewValidator(cfg.Validation, topics)
	rater := llm.NewScorer(cfg.Scoring)
	lookup := reputation.NewLookup(cfg.Reputation)

	all := []pipeline.StageDescriptor{
		{
			Stage:       types.StageMetadata,
			Batch:       meta.Batch,
			BatchSize:   cfg.Arxiv.BatchSize,
			Concurrency: 1,
			Retry:       cfg.Arxiv.Retry,
			Limiter:     httputil.NewLimiter(arxivRate),
			Persist:     true,
		},
		{
			Stage:       types.StageContent,
			Admit:       pipeline.Requires(types.StageMetadata, nil),
			Worker:      extractor.Process,
			Concurrency: cfg.Content.Concurrency,
			Retry:       cfg.Content.Retry,
			Limiter:     httputil.NewLimiter(cfg.Content.RequestsPerSecond),
			Persist:     true,
		},
		{
			Stage:       types.StageEmbedding,
			Admit:       pipeline.Requires(types.StageMetadata, pipeline.AfterTerminal(types.StageContent, nil)),
			Prepare:     scorer.Prepare,
			Batch:       scorer.Batch,
			BatchSize:   cfg.Embedding.BatchSize,
			Concurrency: 1,
			Retry:       cfg.Embedding.Retry,
			Persist:     true,
		},
		{
			Stage:         types.StageValidation,
			Admit:         validator.Admit(),
			OnNotEligible: validator.MarkBelowThreshold,
			Prepare:       validator.Prepare,
			Worker:        validator.Process,
			Concurrency:   cfg.Validation.Concurrency,
			Retry:         cfg.Validation.Retry,
			Limiter:       httputil.NewLimiter(cfg.Validation.RequestsPerSecond),
			Persist:       true,
		},
		{
			Stage:       types.StageScoring,
			Admit:       rater.Admit(),
			Prepare:     rater.Prepare,
			Worker:      rater.Process,
			Concurrency: cfg.Scoring.Concurrency,
			Retry:       cfg.Scoring.Retry,
			Limiter:     httputil.NewLimiter(cfg.Scoring.RequestsPerSecond),
			Persist:     true,
		},
		{
			Stage:       types.StageReputation,
			Admit:       reputation.Admit(),
			Worker:      lookup.Process,
			Concurrency: cfg.Reputation.Concurrency,
			Retry:       cfg.Reputation.Retry,
			Limiter:     httputil.NewLimiter(cfg.Reputation.RequestsPerSecond),
			Persist:     true,
		},
	}

	if cfg.Retention.Enabled {
		sweeper := retention.NewSweeper(st, cfg.Retention, observability.WithStageContext(log, stepRetention))
		all = append(all, pipeline.StageDescriptor{
			Name:     stepRetention,
			Maintain: sweeper.Maintain,
			NonFatal: true,
			Persist:  true,
		})
	}
	if cfg.Notify.Enabled {
		notifier := notify.NewNotifier(cfg.Notify, observability.WithStageContext(log, stepNotification))
		all = append(all, pipeline.StageDescriptor{
			Name:     stepNotification,
			Maintain: notifier.Maintain,
			NonFatal: true,
			Persist:  true,
		})
	}

	if len(only) == 0 {
		return all
	}
	out := all[:0]
	for _, sd := range all {
		name := sd.Name
		if name == "" {
			name = string(sd.Stage)
		}
		if only[name] {
			out = append(out, sd)
		}
	}
	return out
}
