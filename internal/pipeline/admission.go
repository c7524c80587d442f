// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"math"
	"sort"

	"github.com/pdiddy/paper-triage/pkg/types"
)

// Skip reasons shared by every stage.
const (
	ReasonAlreadyProcessed   = "already processed"
	ReasonUpstreamIncomplete = "upstream incomplete"
)

// Decision is an admission predicate's verdict for one paper.
type Decision struct {
	// Admit sends the paper to the stage's worker.
	Admit bool

	// Reason explains a paper that was not admitted.
	Reason string

	// NotEligible writes the stage status directly to not_eligible
	// without doing the unit of work.
	NotEligible bool
}

// Admit decides whether a paper needs a stage. It is only consulted for
// papers whose stage status is still pending.
type Admit func(p *types.Paper) Decision

// Accept admits the paper.
func Accept() Decision { return Decision{Admit: true} }

// Wait skips the paper silently; a later run may admit it.
func Wait(reason string) Decision { return Decision{Reason: reason} }

// Ineligible records a no-op terminal for the paper.
func Ineligible(reason string) Decision { return Decision{Reason: reason, NotEligible: true} }

// Requires wraps next so that it only runs once upstream is completed. An
// upstream stage that has not finished yet defers the paper; one that
// ended in any other terminal status makes it not eligible. A nil next
// admits every paper that passes the upstream check.
func Requires(upstream types.Stage, next Admit) Admit {
	return func(p *types.Paper) Decision {
		switch st := p.StatusOf(upstream); {
		case !st.IsTerminal():
			return Wait(ReasonUpstreamIncomplete)
		case st != types.StatusCompleted:
			return Ineligible(fmt.Sprintf("%s %s", upstream, st))
		}
		if next == nil {
			return Accept()
		}
		return next(p)
	}
}

// AfterTerminal defers papers until upstream reached any terminal status,
// then applies next (nil admits).
func AfterTerminal(upstream types.Stage, next Admit) Admit {
	return func(p *types.Paper) Decision {
		if !p.StatusOf(upstream).IsTerminal() {
			return Wait(ReasonUpstreamIncomplete)
		}
		if next == nil {
			return Accept()
		}
		return next(p)
	}
}

// AtLeast reports whether score reaches threshold. A nil or NaN score never
// passes.
func AtLeast(score *float64, threshold float64) bool {
	if score == nil || math.IsNaN(*score) {
		return false
	}
	return *score >= threshold
}

// TopicsAtLeast returns the topics whose score reaches threshold, sorted by
// name. Topics missing from scores have no score and never pass.
func TopicsAtLeast(scores map[string]float64, topics []string, threshold float64) []string {
	var out []string
	for _, t := range topics {
		var score *float64
		if v, ok := scores[t]; ok {
			score = &v
		}
		if AtLeast(score, threshold) {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// Selection is the outcome of admission for one stage.
type Selection struct {
	// ToProcess holds the admitted papers, ordered by ID.
	ToProcess []*types.Paper

	// Skipped counts papers not admitted, by reason. No-op terminals are
	// included under their reason.
	Skipped map[string]int

	// NotEligible counts papers whose status was set to not_eligible
	// during admission.
	NotEligible int
}

// Select partitions papers for stage. Papers already terminal are skipped
// first; the rest are handed to admit. When admit returns a no-op terminal,
// the stage status is written immediately and onNotEligible (if non-nil)
// records any accompanying result fields.
func Select(papers map[string]*types.Paper, stage types.Stage, admit Admit, onNotEligible func(*types.Paper)) Selection {
	sel := Selection{Skipped: make(map[string]int)}

	ids := make([]string, 0, len(papers))
	for id := range papers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		p := papers[id]
		if p.StatusOf(stage).IsTerminal() {
			sel.Skipped[ReasonAlreadyProcessed]++
			continue
		}

		d := Accept()
		if admit != nil {
			d = admit(p)
		}

		switch {
		case d.Admit:
			sel.ToProcess = append(sel.ToProcess, p)
		case d.NotEligible:
			if err := p.SetStatus(stage, types.StatusNotEligible); err != nil {
				// Unreachable for a pending status; keep the paper out of
				// the stage either way.
				sel.Skipped[err.Error()]++
				continue
			}
			if onNotEligible != nil {
				onNotEligible(p)
			}
			sel.NotEligible++
			sel.Skipped[d.Reason]++
		default:
			sel.Skipped[d.Reason]++
		}
	}
	return sel
}
