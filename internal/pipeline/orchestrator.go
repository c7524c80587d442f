// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives papers through the enrichment stages. It owns
// admission, the retrying executor, checkpointing, and the run summary;
// stage business logic plugs in through Worker, BatchFunc and Maintain.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-triage/pkg/types"
)

// Store is the persistence the orchestrator needs.
type Store interface {
	LoadMany(ctx context.Context, ids []string) (map[string]*types.Paper, error)
	SaveMany(ctx context.Context, papers map[string]*types.Paper) error
}

// StageDescriptor declares one step of the pipeline. Exactly one of Worker,
// Batch or Maintain is set.
type StageDescriptor struct {
	// Name labels the step in logs and summaries. Defaults to Stage.
	Name string

	// Stage is the status field the step owns. Empty for maintenance
	// steps.
	Stage types.Stage

	// Admit decides which pending papers need the stage. Nil admits all.
	Admit Admit

	// OnNotEligible fills result fields for no-op terminals.
	OnNotEligible func(p *types.Paper)

	// Prepare runs once before any work. An error fails the whole stage.
	// It is skipped when nothing was admitted.
	Prepare func(ctx context.Context) error

	Worker Worker

	Batch     BatchFunc
	BatchSize int

	// Maintain runs steps that own no status field (retention,
	// notification) over the whole set.
	Maintain func(ctx context.Context, papers map[string]*types.Paper) error

	Concurrency int
	Retry       types.RetryPolicy
	Limiter     *rate.Limiter

	// NonFatal steps log their failure and let the run continue.
	NonFatal bool

	// Persist checkpoints the entire set after the step.
	Persist bool
}

func (sd StageDescriptor) name() string {
	if sd.Name != "" {
		return sd.Name
	}
	return string(sd.Stage)
}

// Orchestrator runs stage descriptors in order over one entity set.
type Orchestrator struct {
	store  Store
	logger zerolog.Logger
	sinks  []SummarySink
	runID  string
	clock  func() time.Time

	// created is the number of papers the last Load created.
	created int
}

// NewOrchestrator returns an orchestrator persisting to store and
// publishing the run summary to sinks.
func NewOrchestrator(store Store, logger zerolog.Logger, sinks ...SummarySink) *Orchestrator {
	runID := uuid.NewString()
	return &Orchestrator{
		store:  store,
		logger: logger.With().Str("run_id", runID).Logger(),
		sinks:  sinks,
		runID:  runID,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// RunID identifies this orchestrator's run.
func (o *Orchestrator) RunID() string { return o.runID }

// Load returns the stored papers for ids and creates a pending paper for
// every id the store has never seen. Duplicate ids collapse to one paper.
func (o *Orchestrator) Load(ctx context.Context, ids []string) (map[string]*types.Paper, int, error) {
	stored, err := o.store.LoadMany(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("loading papers: %w", err)
	}

	papers := make(map[string]*types.Paper, len(ids))
	created := 0
	for _, id := range ids {
		if _, ok := papers[id]; ok {
			continue
		}
		if p, ok := stored[id]; ok {
			papers[id] = p
			continue
		}
		papers[id] = types.NewPaper(id)
		created++
	}
	o.created = created

	o.logger.Info().
		Int("requested", len(ids)).
		Int("stored", len(papers)-created).
		Int("created", created).
		Msg("papers loaded")
	return papers, created, nil
}

// Execute runs stages in order. After each persisting stage the entire set
// is saved. A checkpoint failure or a fatal stage error stops the run; a
// cancelled context stops it after the current stage is checkpointed. The
// summary is published to every sink in all cases.
func (o *Orchestrator) Execute(ctx context.Context, stages []StageDescriptor, papers map[string]*types.Paper) (RunSummary, error) {
	summary := RunSummary{
		RunID:     o.runID,
		StartedAt: o.clock(),
		Total:     len(papers),
		Created:   o.created,
	}

	runErr := o.execute(ctx, stages, papers, &summary)
	if ctx.Err() != nil {
		summary.Interrupted = true
		if runErr == nil {
			runErr = fmt.Errorf("run interrupted: %w", ctx.Err())
		}
	}
	summary.FinishedAt = o.clock()

	o.publish(ctx, summary)
	return summary, runErr
}

func (o *Orchestrator) execute(ctx context.Context, stages []StageDescriptor, papers map[string]*types.Paper, summary *RunSummary) error {
	for _, sd := range stages {
		if ctx.Err() != nil {
			o.logger.Warn().Str("stage", sd.name()).Msg("run cancelled, stage not started")
			return nil
		}

		st, stageErr := o.runStage(ctx, sd, papers)
		if stageErr != nil {
			st.Error = stageErr.Error()
		}
		summary.Stages = append(summary.Stages, st)

		if sd.Persist {
			if err := o.checkpoint(ctx, papers); err != nil {
				o.logger.Error().Err(err).Str("stage", sd.name()).Msg("checkpoint failed")
				return err
			}
		}

		if stageErr == nil {
			continue
		}
		if sd.NonFatal {
			o.logger.Error().Err(stageErr).Str("stage", sd.name()).Msg("non-fatal stage failed, continuing")
			continue
		}
		o.logger.Error().Err(stageErr).Str("stage", sd.name()).Msg("stage failed, aborting run")
		return fmt.Errorf("%w: %s: %w", ErrStageFatal, sd.name(), stageErr)
	}
	return nil
}

func (o *Orchestrator) runStage(ctx context.Context, sd StageDescriptor, papers map[string]*types.Paper) (StageSummary, error) {
	start := o.clock()
	log := o.logger.With().Str("stage", sd.name()).Logger()
	st := StageSummary{Name: sd.name()}

	if sd.Maintain != nil {
		log.Info().Int("papers", len(papers)).Msg("stage started")
		err := sd.Maintain(ctx, papers)
		st.Duration = o.clock().Sub(start)
		return st, err
	}

	sel := Select(papers, sd.Stage, sd.Admit, sd.OnNotEligible)
	st.Admitted = len(sel.ToProcess)
	st.NotEligible = sel.NotEligible
	st.Skipped = sel.Skipped

	if len(sel.ToProcess) == 0 {
		log.Info().Interface("skipped", sel.Skipped).Msg("nothing to process")
		st.Duration = o.clock().Sub(start)
		return st, nil
	}

	log.Info().
		Int("admitted", st.Admitted).
		Int("not_eligible", sel.NotEligible).
		Interface("skipped", sel.Skipped).
		Int("concurrency", sd.Concurrency).
		Msg("stage started")

	if sd.Prepare != nil {
		if err := sd.Prepare(ctx); err != nil {
			st.Duration = o.clock().Sub(start)
			return st, err
		}
	}

	exec := &Executor{
		Stage:       sd.Stage,
		Concurrency: sd.Concurrency,
		Retry:       sd.Retry,
		Limiter:     sd.Limiter,
		Logger:      log,
	}

	var res Result
	switch {
	case sd.Batch != nil:
		res = exec.RunBatches(ctx, sel.ToProcess, sd.BatchSize, sd.Batch)
	case sd.Worker != nil:
		res = exec.Run(ctx, sel.ToProcess, sd.Worker)
	default:
		return st, errors.New("stage has no worker")
	}

	st.Completed = res.Completed
	st.Failed = res.Failed
	st.NotEligible += res.NotEligible
	st.Interrupted = res.Interrupted
	st.Attempts = res.Attempts
	st.RateLimited = res.RateLimited
	st.FailureReasons = res.Reasons
	st.Duration = o.clock().Sub(start)

	ev := log.Info()
	if res.Failed > 0 {
		ev = log.Warn()
	}
	ev.Int("completed", res.Completed).
		Int("failed", res.Failed).
		Int("not_eligible", res.NotEligible).
		Int("interrupted", res.Interrupted).
		Int("attempts", res.Attempts).
		Dur("duration", st.Duration).
		Msg("stage finished")

	if res.Submitted > 0 && res.Failed == res.Submitted {
		log.Error().Int("failed", res.Failed).Msg("every admitted paper failed")
	}
	return st, nil
}

// checkpoint saves the full set. It runs even when ctx is cancelled so
// work finished before the interrupt survives.
func (o *Orchestrator) checkpoint(ctx context.Context, papers map[string]*types.Paper) error {
	if err := o.store.SaveMany(context.WithoutCancel(ctx), papers); err != nil {
		return fmt.Errorf("%w: %w", ErrCheckpoint, err)
	}
	o.logger.Debug().Int("papers", len(papers)).Msg("checkpoint saved")
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, s RunSummary) {
	ctx = context.WithoutCancel(ctx)
	for _, sink := range o.sinks {
		if err := sink.Publish(ctx, s); err != nil {
			o.logger.Warn().Err(err).Msg("publishing run summary")
		}
	}
}
