// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// Stage names one status-owning step of the enrichment pipeline.
type Stage string

const (
	StageMetadata   Stage = "metadata"
	StageContent    Stage = "content"
	StageEmbedding  Stage = "embedding"
	StageValidation Stage = "validation"
	StageScoring    Stage = "scoring"
	StageReputation Stage = "reputation"
)

// Stages lists the status-owning stages in pipeline order.
var Stages = []Stage{
	StageMetadata,
	StageContent,
	StageEmbedding,
	StageValidation,
	StageScoring,
	StageReputation,
}

// ParseStage returns the Stage named s.
func ParseStage(s string) (Stage, error) {
	for _, st := range Stages {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Index returns the position of the stage in pipeline order, or -1.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// StageStatus is the per-stage status shared by every stage.
type StageStatus string

const (
	StatusPending     StageStatus = "pending"
	StatusCompleted   StageStatus = "completed"
	StatusFailed      StageStatus = "failed"
	StatusNotEligible StageStatus = "not_eligible"
)

// transitions holds the allowed forward moves. Terminal statuses have no
// outgoing edges; only Reset can move them back to pending.
var transitions = map[StageStatus]map[StageStatus]bool{
	StatusPending: {
		StatusCompleted:   true,
		StatusFailed:      true,
		StatusNotEligible: true,
	},
	StatusCompleted:   {},
	StatusFailed:      {},
	StatusNotEligible: {},
}

// Valid reports whether s is a known status value.
func (s StageStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no further automatic processing occurs.
func (s StageStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusNotEligible
}

// CanTransition reports whether moving from s to to is allowed.
func (s StageStatus) CanTransition(to StageStatus) bool {
	return transitions[s][to]
}

// TransitionError reports a rejected status change.
type TransitionError struct {
	PaperID string
	Stage   Stage
	From    StageStatus
	To      StageStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("paper %s: stage %s cannot move from %s to %s", e.PaperID, e.Stage, e.From, e.To)
}
