// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to StageStatus
		want     bool
	}{
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusNotEligible, true},
		{StatusPending, StatusPending, false},
		{StatusCompleted, StatusFailed, false},
		{StatusCompleted, StatusPending, false},
		{StatusFailed, StatusCompleted, false},
		{StatusNotEligible, StatusCompleted, false},
		{StageStatus("bogus"), StatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusNotEligible.IsTerminal())
}

func TestPaperSetStatus(t *testing.T) {
	p := NewPaper("2401.00001")
	for _, st := range Stages {
		assert.Equal(t, StatusPending, p.StatusOf(st))
	}

	require.NoError(t, p.SetStatus(StageEmbedding, StatusCompleted))
	assert.Equal(t, StatusCompleted, p.Status.Embedding)

	err := p.SetStatus(StageEmbedding, StatusFailed)
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, StatusCompleted, te.From)
	assert.Equal(t, StatusFailed, te.To)
	assert.Equal(t, StatusCompleted, p.Status.Embedding, "terminal status must not change")

	require.NoError(t, p.Reset(StageEmbedding))
	assert.Equal(t, StatusPending, p.StatusOf(StageEmbedding))
	require.NoError(t, p.SetStatus(StageEmbedding, StatusFailed))
}

func TestPaperUnsetStatusReadsPending(t *testing.T) {
	p := &Paper{ID: "x"}
	assert.Equal(t, StatusPending, p.StatusOf(StageScoring))
	require.NoError(t, p.SetStatus(StageScoring, StatusNotEligible))
	assert.Equal(t, StatusNotEligible, p.Status.Scoring)
}

func TestPaperUnknownStage(t *testing.T) {
	p := NewPaper("x")
	assert.Error(t, p.SetStatus(Stage("retention"), StatusCompleted))
	assert.Error(t, p.Reset(Stage("retention")))
}

func TestPaperMutationsBumpUpdatedAt(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := base
	old := now
	now = func() time.Time { return tick }
	t.Cleanup(func() { now = old })

	p := NewPaper("x")
	assert.Equal(t, base, p.UpdatedAt)

	tick = base.Add(time.Minute)
	p.AddError("boom")
	assert.Equal(t, tick, p.UpdatedAt)
	assert.Equal(t, []string{"boom"}, p.Errors)

	tick = base.Add(2 * time.Minute)
	require.NoError(t, p.SetStatus(StageMetadata, StatusCompleted))
	assert.Equal(t, tick, p.UpdatedAt)
	assert.Equal(t, base, p.CreatedAt)
}

func TestParseStage(t *testing.T) {
	st, err := ParseStage("validation")
	require.NoError(t, err)
	assert.Equal(t, StageValidation, st)
	assert.Equal(t, 3, st.Index())

	_, err = ParseStage("cleanup")
	assert.Error(t, err)
}

func TestIsValuable(t *testing.T) {
	p := NewPaper("x")
	p.Recommendation = RecommendMustRead
	assert.False(t, p.IsValuable(), "scoring not completed")

	require.NoError(t, p.SetStatus(StageScoring, StatusCompleted))
	assert.True(t, p.IsValuable())

	p.Recommendation = RecommendCanSkip
	assert.False(t, p.IsValuable())
}
