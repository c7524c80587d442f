// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retention keeps the store bounded by deleting papers that no
// recent run has included.
package retention

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-triage/pkg/types"
)

// DateLayout is the format of Paper.LastGenerated.
const DateLayout = "2006-01-02"

// Deleter removes stale papers from the store.
type Deleter interface {
	DeleteStale(ctx context.Context, cutoff string, keep []string) (int64, error)
}

// Sweeper is the retention maintenance step.
type Sweeper struct {
	Store  Deleter
	Config types.RetentionConfig
	Logger zerolog.Logger

	now func() time.Time
}

// NewSweeper returns a sweeper deleting from store.
func NewSweeper(store Deleter, cfg types.RetentionConfig, logger zerolog.Logger) *Sweeper {
	return &Sweeper{Store: store, Config: cfg, Logger: logger, now: time.Now}
}

// Cutoff returns the oldest LastGenerated date that is kept on day.
func (s *Sweeper) Cutoff(day time.Time) string {
	return day.AddDate(0, 0, -s.Config.Days).Format(DateLayout)
}

// Maintain deletes stored papers last generated before the cutoff, then
// stamps every paper of the run with today's date. Papers of the current
// run are never deleted. A failed delete leaves the papers untouched.
func (s *Sweeper) Maintain(ctx context.Context, papers map[string]*types.Paper) error {
	today := s.now().UTC()
	stamp := today.Format(DateLayout)

	keep := make([]string, 0, len(papers))
	for id := range papers {
		keep = append(keep, id)
	}
	slices.Sort(keep)

	cutoff := s.Cutoff(today)
	deleted, err := s.Store.DeleteStale(ctx, cutoff, keep)
	if err != nil {
		return fmt.Errorf("deleting papers older than %s: %w", cutoff, err)
	}

	for _, p := range papers {
		if p.LastGenerated != stamp {
			p.LastGenerated = stamp
			p.Touch()
		}
	}

	s.Logger.Info().
		Int("stamped", len(keep)).
		Str("cutoff", cutoff).
		Int64("deleted", deleted).
		Msg("retention sweep finished")
	return nil
}
