// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-triage/internal/httputil"
	"github.com/pdiddy/paper-triage/pkg/types"
)

// Worker processes one paper for a stage. It overwrites the stage's result
// fields on the paper and returns nil on success. A worker may set the
// stage status itself (for example to not_eligible); otherwise a nil
// return marks the paper completed.
type Worker func(ctx context.Context, p *types.Paper) error

// BatchFunc processes a group of papers in one call. The batch is the unit
// that is retried. It may fail individual papers with MarkFailed and still
// return nil for the rest.
type BatchFunc func(ctx context.Context, batch []*types.Paper) error

// Executor drives a stage's worker over admitted papers with bounded
// concurrency and per-item retries.
type Executor struct {
	Stage types.Stage

	// Concurrency is the maximum number of in-flight calls (default 1).
	Concurrency int

	Retry types.RetryPolicy

	// Limiter, when set, paces calls across all workers of the stage.
	Limiter *rate.Limiter

	Logger zerolog.Logger

	// sleep waits between attempts. Tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

// Result summarizes one executor run. Counts reflect the stage status of
// each submitted paper when the run returned.
type Result struct {
	Submitted   int
	Completed   int
	Failed      int
	NotEligible int

	// Interrupted counts papers left pending because the run was
	// cancelled before their next attempt.
	Interrupted int

	// Attempts counts worker (or batch) invocations.
	Attempts int

	// RateLimited counts attempts that hit a rate limit.
	RateLimited int

	// Reasons counts failed papers by failure reason.
	Reasons map[string]int
}

// Run processes items and returns once each has reached a terminal status
// or was left pending by cancellation. Item failures are recorded on the
// papers; Run itself never fails.
func (e *Executor) Run(ctx context.Context, items []*types.Paper, worker Worker) Result {
	sem := e.semaphore()
	var counters attemptCounters
	reasons := newReasonSet()

	var wg sync.WaitGroup
	for _, p := range items {
		wg.Add(1)
		go func(p *types.Paper) {
			defer wg.Done()
			log := e.Logger.With().Str("paper_id", p.ID).Logger()
			out := e.retry(ctx, sem, log, &counters, func(ctx context.Context) error {
				return worker(ctx, p)
			})
			e.settle(log, []*types.Paper{p}, out, reasons)
		}(p)
	}
	wg.Wait()

	return e.result(items, &counters, reasons)
}

// Do runs one stage-level call, such as loading reference data before the
// papers are processed, under the same retry policy and limiter as the
// papers. It returns the last error once retries are exhausted or the
// error is not retryable, and ctx.Err() when the run is cancelled.
func (e *Executor) Do(ctx context.Context, call func(context.Context) error) error {
	var counters attemptCounters
	out := e.retry(ctx, e.semaphore(), e.Logger, &counters, call)
	if errors.Is(out.err, errInterrupted) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return context.Canceled
	}
	return out.err
}

// RunBatches splits items into batches of size and processes each with fn.
// A batch that exhausts its retries fails every paper in it that is still
// pending.
func (e *Executor) RunBatches(ctx context.Context, items []*types.Paper, size int, fn BatchFunc) Result {
	if size <= 0 {
		size = len(items)
	}
	sem := e.semaphore()
	var counters attemptCounters
	reasons := newReasonSet()

	var wg sync.WaitGroup
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batch := items[start:end]
		wg.Add(1)
		go func(n int, batch []*types.Paper) {
			defer wg.Done()
			log := e.Logger.With().Int("batch", n).Int("batch_size", len(batch)).Logger()
			out := e.retry(ctx, sem, log, &counters, func(ctx context.Context) error {
				return fn(ctx, batch)
			})
			e.settle(log, batch, out, reasons)
		}(start/size, batch)
	}
	wg.Wait()

	return e.result(items, &counters, reasons)
}

// MarkFailed fails one paper of a batch without failing the others.
func MarkFailed(p *types.Paper, stage types.Stage, err error) {
	if p.SetStatus(stage, types.StatusFailed) == nil {
		p.AddError(fmt.Sprintf("%s: %v", stage, err))
	}
}

type attemptCounters struct {
	attempts    atomic.Int64
	rateLimited atomic.Int64
}

type reasonSet struct {
	mu sync.Mutex
	m  map[string]int
}

func newReasonSet() *reasonSet { return &reasonSet{m: make(map[string]int)} }

func (r *reasonSet) add(reason string, n int) {
	r.mu.Lock()
	r.m[reason] += n
	r.mu.Unlock()
}

func (e *Executor) semaphore() *semaphore.Weighted {
	n := e.Concurrency
	if n < 1 {
		n = 1
	}
	return semaphore.NewWeighted(int64(n))
}

// errInterrupted marks a unit abandoned because the run was cancelled.
var errInterrupted = errors.New("interrupted")

// outcome is the result of retrying one unit of work.
type outcome struct {
	attempts int
	err      error // nil on success
	class    Class
}

// retry runs call up to MaxRetries+1 times. The permit is held only for
// the duration of a call, never across a backoff sleep.
func (e *Executor) retry(ctx context.Context, sem *semaphore.Weighted, log zerolog.Logger, c *attemptCounters, call func(context.Context) error) outcome {
	maxAttempts := e.Retry.MaxRetries + 1
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := e.wait(ctx, e.delay(attempt-1, lastErr)); err != nil {
				return outcome{attempts: attempt, err: errInterrupted}
			}
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			return outcome{attempts: attempt, err: errInterrupted}
		}
		if ctx.Err() != nil {
			sem.Release(1)
			return outcome{attempts: attempt, err: errInterrupted}
		}
		if e.Limiter != nil {
			if err := e.Limiter.Wait(ctx); err != nil {
				sem.Release(1)
				return outcome{attempts: attempt, err: errInterrupted}
			}
		}

		c.attempts.Add(1)
		err := safeCall(ctx, call)
		sem.Release(1)

		if err == nil {
			return outcome{attempts: attempt + 1}
		}
		if ctx.Err() != nil {
			return outcome{attempts: attempt + 1, err: errInterrupted}
		}

		lastErr = err
		class := Classify(err)
		if class == ClassRateLimited {
			c.rateLimited.Add(1)
		}
		if class == ClassNonRetryable || class == ClassSkip {
			return outcome{attempts: attempt + 1, err: err, class: class}
		}

		log.Warn().
			Err(err).
			Str("class", class.String()).
			Int("attempt", attempt+1).
			Int("max_attempts", maxAttempts).
			Msg("attempt failed")
	}
	return outcome{attempts: maxAttempts, err: lastErr, class: Classify(lastErr)}
}

// safeCall converts a worker panic into a retryable error.
func safeCall(ctx context.Context, call func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()
	return call(ctx)
}

// settle writes the terminal status for every paper the unit covered.
func (e *Executor) settle(log zerolog.Logger, papers []*types.Paper, out outcome, reasons *reasonSet) {
	attempts, err, class := out.attempts, out.err, out.class
	switch {
	case err == nil:
		for _, p := range papers {
			if p.StatusOf(e.Stage) == types.StatusPending {
				p.SetStatus(e.Stage, types.StatusCompleted)
			}
		}
		log.Debug().Int("attempts", attempts).Msg("completed")

	case errors.Is(err, errInterrupted):
		log.Info().Int("attempts", attempts).Msg("left pending, run cancelled")

	case class == ClassSkip:
		for _, p := range papers {
			p.SetStatus(e.Stage, types.StatusNotEligible)
		}
		log.Info().Str("reason", err.Error()).Msg("not eligible")

	default:
		reason := "retries exhausted"
		if class == ClassNonRetryable {
			reason = "non-retryable error"
		}
		msg := fmt.Sprintf("%s: %s after %d attempt(s): %v", e.Stage, reason, attempts, err)
		failed := 0
		for _, p := range papers {
			if p.SetStatus(e.Stage, types.StatusFailed) == nil {
				p.AddError(msg)
				failed++
			}
		}
		reasons.add(reason, failed)
		log.Error().Err(err).Int("attempts", attempts).Str("reason", reason).Msg("failed")
	}
}

func (e *Executor) result(items []*types.Paper, c *attemptCounters, reasons *reasonSet) Result {
	res := Result{
		Submitted:   len(items),
		Attempts:    int(c.attempts.Load()),
		RateLimited: int(c.rateLimited.Load()),
		Reasons:     reasons.m,
	}
	for _, p := range items {
		switch p.StatusOf(e.Stage) {
		case types.StatusCompleted:
			res.Completed++
		case types.StatusFailed:
			res.Failed++
		case types.StatusNotEligible:
			res.NotEligible++
		default:
			res.Interrupted++
		}
	}
	for reason, n := range res.Reasons {
		if n == 0 {
			delete(res.Reasons, reason)
		}
	}
	// Papers failed individually inside a successful batch.
	if extra := res.Failed - sum(res.Reasons); extra > 0 {
		res.Reasons["item error"] += extra
	}
	return res
}

func sum(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

// delay computes the wait before the attempt following attempt (0-based):
// BaseDelay*2^attempt plus jitter, plus the rate-limit surcharge when the
// last error was a rate limit. A longer server Retry-After wins.
func (e *Executor) delay(attempt int, lastErr error) time.Duration {
	p := e.Retry
	d := p.BaseDelay << min(attempt, 20)
	if p.Jitter > 0 {
		d += rand.N(p.Jitter)
	}
	if Classify(lastErr) != ClassRateLimited {
		return d
	}

	extra := p.RateLimitMin
	if span := p.RateLimitMax - p.RateLimitMin; span > 0 {
		extra += rand.N(span + 1)
	}
	d += extra

	var se *httputil.StatusError
	if errors.As(lastErr, &se) && se.RetryAfter > d {
		d = se.RetryAfter
	}
	return d
}

func (e *Executor) wait(ctx context.Context, d time.Duration) error {
	if e.sleep != nil {
		return e.sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
