// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-triage/pkg/types"
)

type fakeDeleter struct {
	cutoff string
	keep   []string
	n      int64
	err    error
}

func (f *fakeDeleter) DeleteStale(_ context.Context, cutoff string, keep []string) (int64, error) {
	f.cutoff, f.keep = cutoff, keep
	return f.n, f.err
}

func fixedSweeper(d *fakeDeleter, days int) *Sweeper {
	s := NewSweeper(d, types.RetentionConfig{Enabled: true, Days: days}, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2026, 3, 15, 22, 0, 0, 0, time.UTC) }
	return s
}

func TestMaintain(t *testing.T) {
	d := &fakeDeleter{n: 4}
	s := fixedSweeper(d, 14)

	old := types.NewPaper("b")
	old.LastGenerated = "2026-01-01"
	papers := map[string]*types.Paper{"a": types.NewPaper("a"), "b": old}

	require.NoError(t, s.Maintain(context.Background(), papers))

	assert.Equal(t, "2026-03-01", d.cutoff)
	assert.Equal(t, []string{"a", "b"}, d.keep)
	for _, p := range papers {
		assert.Equal(t, "2026-03-15", p.LastGenerated)
	}
}

func TestMaintainError(t *testing.T) {
	d := &fakeDeleter{err: errors.New("locked")}
	p := types.NewPaper("a")
	p.LastGenerated = "2026-03-01"
	before := p.UpdatedAt

	err := fixedSweeper(d, 7).Maintain(context.Background(), map[string]*types.Paper{"a": p})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "older than 2026-03-08")
	assert.Contains(t, err.Error(), "locked")

	assert.Equal(t, "2026-03-01", p.LastGenerated)
	assert.Equal(t, before, p.UpdatedAt)
}

func TestCutoff(t *testing.T) {
	s := fixedSweeper(&fakeDeleter{}, 1)
	assert.Equal(t, "2026-02-28", s.Cutoff(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
}
