// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the paper record, stage statuses and configuration
// shared across the paper-triage pipeline.
package types

import (
	"fmt"
	"time"
)

// Relevance labels returned by the validation stage.
const (
	RelevanceHigh       = "Highly Relevant"
	RelevanceModerate   = "Moderately Relevant"
	RelevanceTangential = "Tangentially Relevant"
	RelevanceNone       = "Not Relevant"

	// JustificationBelowThreshold marks topics that were not sent to the
	// validator because their similarity score missed the threshold.
	JustificationBelowThreshold = "below_threshold"
)

// Recommendation labels returned by the scoring stage.
const (
	RecommendMustRead   = "Must Read"
	RecommendShouldRead = "Should Read"
	RecommendCanSkip    = "Can Skip"
	RecommendIgnore     = "Ignore"
)

// Content sources recorded by the content stage.
const (
	ContentArxivHTML      = "arxiv_html"
	ContentNoSource       = "no_source_found"
	ContentNoIntroduction = "no_intro_found"
)

// Statuses holds one status field per stage.
type Statuses struct {
	Metadata   StageStatus `json:"metadata" yaml:"metadata"`
	Content    StageStatus `json:"content" yaml:"content"`
	Embedding  StageStatus `json:"embedding" yaml:"embedding"`
	Validation StageStatus `json:"validation" yaml:"validation"`
	Scoring    StageStatus `json:"scoring" yaml:"scoring"`
	Reputation StageStatus `json:"reputation" yaml:"reputation"`
}

// TopicVerdict is the validator's answer for one topic.
type TopicVerdict struct {
	Relevance     string `json:"relevance" yaml:"relevance"`
	Justification string `json:"justification" yaml:"justification"`
}

// AuthorHIndex is one author's Semantic Scholar profile.
type AuthorHIndex struct {
	Name       string `json:"name" yaml:"name"`
	ProfileURL string `json:"profile_url,omitempty" yaml:"profile_url,omitempty"`
	HIndex     *int   `json:"h_index,omitempty" yaml:"h_index,omitempty"`
}

// Paper is one arXiv paper tracked through the enrichment pipeline.
type Paper struct {
	// ID is the arXiv identifier (e.g. "2301.07041" or "2301.07041v2").
	ID string `json:"id" yaml:"id"`

	// Source fields, written once by the metadata stage.
	Title       string    `json:"title" yaml:"title"`
	Authors     []string  `json:"authors" yaml:"authors"`
	Categories  []string  `json:"categories" yaml:"categories"`
	Abstract    string    `json:"abstract" yaml:"abstract"`
	PublishedAt time.Time `json:"published_at" yaml:"published_at"`
	AbstractURL string    `json:"abstract_url" yaml:"abstract_url"`
	PDFURL      string    `json:"pdf_url" yaml:"pdf_url"`
	SourceURL   string    `json:"source_url" yaml:"source_url"`

	Status Statuses `json:"status" yaml:"status"`

	// Content stage results.
	Introduction  string `json:"introduction,omitempty" yaml:"introduction,omitempty"`
	ContentSource string `json:"content_source,omitempty" yaml:"content_source,omitempty"`

	// Embedding stage results. A topic absent from TopicScores has no score.
	TopicScores  map[string]float64 `json:"topic_scores,omitempty" yaml:"topic_scores,omitempty"`
	HighestTopic string             `json:"highest_topic,omitempty" yaml:"highest_topic,omitempty"`

	// Validation stage results keyed by topic name.
	Verdicts map[string]TopicVerdict `json:"verdicts,omitempty" yaml:"verdicts,omitempty"`

	// Scoring stage results.
	Summary                     string `json:"summary,omitempty" yaml:"summary,omitempty"`
	Novelty                     string `json:"novelty,omitempty" yaml:"novelty,omitempty"`
	NoveltyJustification        string `json:"novelty_justification,omitempty" yaml:"novelty_justification,omitempty"`
	Impact                      string `json:"impact,omitempty" yaml:"impact,omitempty"`
	ImpactJustification         string `json:"impact_justification,omitempty" yaml:"impact_justification,omitempty"`
	Recommendation              string `json:"recommendation,omitempty" yaml:"recommendation,omitempty"`
	RecommendationJustification string `json:"recommendation_justification,omitempty" yaml:"recommendation_justification,omitempty"`

	// Reputation stage results.
	SemanticScholarURL string         `json:"semantic_scholar_url,omitempty" yaml:"semantic_scholar_url,omitempty"`
	LookupMethod       string         `json:"lookup_method,omitempty" yaml:"lookup_method,omitempty"`
	TotalAuthors       int            `json:"total_authors,omitempty" yaml:"total_authors,omitempty"`
	AuthorsFound       int            `json:"authors_found,omitempty" yaml:"authors_found,omitempty"`
	HighestHIndex      *int           `json:"highest_h_index,omitempty" yaml:"highest_h_index,omitempty"`
	AverageHIndex      *float64       `json:"average_h_index,omitempty" yaml:"average_h_index,omitempty"`
	NotableAuthors     int            `json:"notable_authors,omitempty" yaml:"notable_authors,omitempty"`
	AuthorHIndexes     []AuthorHIndex `json:"author_h_indexes,omitempty" yaml:"author_h_indexes,omitempty"`

	// Errors accumulates human-readable failure messages. Append only.
	Errors []string `json:"errors,omitempty" yaml:"errors,omitempty"`

	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" yaml:"updated_at"`
	LastGenerated string    `json:"last_generated,omitempty" yaml:"last_generated,omitempty"`
	NotifiedAt    time.Time `json:"notified_at,omitempty" yaml:"notified_at,omitempty"`
}

// now is the clock used for UpdatedAt. Tests override it.
var now = func() time.Time { return time.Now().UTC() }

// NewPaper returns a paper with every stage pending.
func NewPaper(id string) *Paper {
	t := now()
	return &Paper{
		ID: id,
		Status: Statuses{
			Metadata:   StatusPending,
			Content:    StatusPending,
			Embedding:  StatusPending,
			Validation: StatusPending,
			Scoring:    StatusPending,
			Reputation: StatusPending,
		},
		CreatedAt: t,
		UpdatedAt: t,
	}
}

func (p *Paper) statusField(stage Stage) *StageStatus {
	switch stage {
	case StageMetadata:
		return &p.Status.Metadata
	case StageContent:
		return &p.Status.Content
	case StageEmbedding:
		return &p.Status.Embedding
	case StageValidation:
		return &p.Status.Validation
	case StageScoring:
		return &p.Status.Scoring
	case StageReputation:
		return &p.Status.Reputation
	}
	return nil
}

// StatusOf returns the paper's status for stage. An unset field reads as
// pending.
func (p *Paper) StatusOf(stage Stage) StageStatus {
	f := p.statusField(stage)
	if f == nil || *f == "" {
		return StatusPending
	}
	return *f
}

// SetStatus moves stage to status, rejecting moves the transition table
// does not allow.
func (p *Paper) SetStatus(stage Stage, status StageStatus) error {
	f := p.statusField(stage)
	if f == nil {
		return fmt.Errorf("unknown stage %q", stage)
	}
	from := p.StatusOf(stage)
	if !from.CanTransition(status) {
		return &TransitionError{PaperID: p.ID, Stage: stage, From: from, To: status}
	}
	*f = status
	p.Touch()
	return nil
}

// Reset returns stage to pending. It is the only way out of a terminal
// status and is reserved for explicit reprocessing requests.
func (p *Paper) Reset(stage Stage) error {
	f := p.statusField(stage)
	if f == nil {
		return fmt.Errorf("unknown stage %q", stage)
	}
	*f = StatusPending
	p.Touch()
	return nil
}

// AddError appends msg to the paper's error log.
func (p *Paper) AddError(msg string) {
	p.Errors = append(p.Errors, msg)
	p.Touch()
}

// Touch bumps UpdatedAt.
func (p *Paper) Touch() {
	p.UpdatedAt = now()
}

// IsValuable reports whether scoring recommended the paper for reading.
func (p *Paper) IsValuable() bool {
	return p.StatusOf(StageScoring) == StatusCompleted &&
		(p.Recommendation == RecommendMustRead || p.Recommendation == RecommendShouldRead)
}

// RelevantTopics returns the topics judged highly or moderately relevant.
func (p *Paper) RelevantTopics() []string {
	var out []string
	for topic, v := range p.Verdicts {
		if v.Relevance == RelevanceHigh || v.Relevance == RelevanceModerate {
			out = append(out, topic)
		}
	}
	return out
}
