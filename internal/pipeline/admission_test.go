// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-triage/pkg/types"
)

func ptr(v float64) *float64 { return &v }

func TestAtLeast(t *testing.T) {
	tests := []struct {
		name  string
		score *float64
		want  bool
	}{
		{"equal passes", ptr(0.4), true},
		{"above passes", ptr(0.42), true},
		{"below fails", ptr(0.39), false},
		{"nil fails", nil, false},
		{"nan fails", ptr(math.NaN()), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AtLeast(tt.score, 0.4))
		})
	}
}

func TestTopicsAtLeast(t *testing.T) {
	scores := map[string]float64{"RLHF": 0.5, "Diffusion": 0.4, "Weak": 0.1}
	got := TopicsAtLeast(scores, []string{"Weak", "RLHF", "Diffusion", "Unscored"}, 0.4)
	assert.Equal(t, []string{"Diffusion", "RLHF"}, got)
}

func embedded(id string, status types.StageStatus, scores map[string]float64) *types.Paper {
	p := types.NewPaper(id)
	p.Status.Embedding = status
	p.TopicScores = scores
	return p
}

func thresholdAdmit(threshold float64) Admit {
	return Requires(types.StageEmbedding, func(p *types.Paper) Decision {
		if len(TopicsAtLeast(p.TopicScores, []string{"T"}, threshold)) == 0 {
			return Ineligible("no topic above threshold")
		}
		return Accept()
	})
}

func TestSelect(t *testing.T) {
	done := types.NewPaper("done")
	done.Status.Embedding = types.StatusCompleted
	done.Status.Validation = types.StatusCompleted

	papers := map[string]*types.Paper{
		"e1":      embedded("e1", types.StatusCompleted, map[string]float64{"T": 0.42}),
		"e2":      embedded("e2", types.StatusCompleted, map[string]float64{"T": 0.1}),
		"equal":   embedded("equal", types.StatusCompleted, map[string]float64{"T": 0.4}),
		"null":    embedded("null", types.StatusCompleted, nil),
		"waiting": embedded("waiting", types.StatusPending, nil),
		"broken":  embedded("broken", types.StatusFailed, nil),
		"done":    done,
	}

	var noted []string
	sel := Select(papers, types.StageValidation, thresholdAdmit(0.4), func(p *types.Paper) {
		noted = append(noted, p.ID)
	})

	ids := make([]string, 0, len(sel.ToProcess))
	for _, p := range sel.ToProcess {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"e1", "equal"}, ids)

	assert.Equal(t, 3, sel.NotEligible)
	assert.Equal(t, map[string]int{
		ReasonAlreadyProcessed:     1,
		ReasonUpstreamIncomplete:   1,
		"no topic above threshold": 2,
		"embedding failed":         1,
	}, sel.Skipped)
	assert.ElementsMatch(t, []string{"e2", "null", "broken"}, noted)

	assert.Equal(t, types.StatusNotEligible, papers["e2"].Status.Validation)
	assert.Equal(t, types.StatusNotEligible, papers["null"].Status.Validation)
	assert.Equal(t, types.StatusPending, papers["waiting"].Status.Validation)
	assert.Equal(t, types.StatusPending, papers["e1"].Status.Validation)
}

func TestSelectIsIdempotent(t *testing.T) {
	papers := map[string]*types.Paper{
		"e2": embedded("e2", types.StatusCompleted, map[string]float64{"T": 0.1}),
	}
	first := Select(papers, types.StageValidation, thresholdAdmit(0.4), nil)
	require.Equal(t, 1, first.NotEligible)

	second := Select(papers, types.StageValidation, thresholdAdmit(0.4), nil)
	assert.Empty(t, second.ToProcess)
	assert.Equal(t, 0, second.NotEligible)
	assert.Equal(t, map[string]int{ReasonAlreadyProcessed: 1}, second.Skipped)
}

func TestAfterTerminal(t *testing.T) {
	admit := AfterTerminal(types.StageContent, nil)

	p := types.NewPaper("a")
	assert.Equal(t, Wait(ReasonUpstreamIncomplete), admit(p))

	p.Status.Content = types.StatusNotEligible
	assert.True(t, admit(p).Admit)
}

func TestSelectNilAdmitAcceptsPending(t *testing.T) {
	papers := map[string]*types.Paper{"a": types.NewPaper("a"), "b": types.NewPaper("b")}
	sel := Select(papers, types.StageMetadata, nil, nil)
	assert.Len(t, sel.ToProcess, 2)
	assert.Empty(t, sel.Skipped)
}
