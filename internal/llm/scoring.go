// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/xml"
	"fmt"
	"slices"
	"strings"

	"github.com/pdiddy/paper-triage/internal/pipeline"
	"github.com/pdiddy/paper-triage/pkg/types"
)

// ReasonNotRelevant is the skip reason for papers the validator found
// unrelated to every topic.
const ReasonNotRelevant = "no relevant topic"

var (
	noveltyLabels        = []string{"Groundbreaking", "Significant", "Incremental", "Minimal"}
	impactLabels         = []string{"Transformative", "Substantial", "Moderate", "Negligible"}
	recommendationLabels = []string{types.RecommendMustRead, types.RecommendShouldRead, types.RecommendCanSkip, types.RecommendIgnore}
)

// Evaluation is a parsed scoring answer.
type Evaluation struct {
	Summary                     string
	Novelty                     string
	NoveltyJustification        string
	Impact                      string
	ImpactJustification         string
	Recommendation              string
	RecommendationJustification string
}

// Scorer is the scoring stage worker.
type Scorer struct {
	Client *Client
}

// NewScorer returns a scorer configured by cfg.
func NewScorer(cfg types.ScoringConfig) *Scorer {
	return &Scorer{Client: NewClient(cfg.AIConfig)}
}

// Admit requires a completed validation with at least one topic judged
// highly, moderately or tangentially relevant.
func (s *Scorer) Admit() pipeline.Admit {
	return pipeline.Requires(types.StageValidation, func(p *types.Paper) pipeline.Decision {
		for _, v := range p.Verdicts {
			switch v.Relevance {
			case types.RelevanceHigh, types.RelevanceModerate, types.RelevanceTangential:
				return pipeline.Accept()
			}
		}
		return pipeline.Ineligible(ReasonNotRelevant)
	})
}

// Prepare fails the stage when no API key is configured.
func (s *Scorer) Prepare(ctx context.Context) error {
	return s.Client.CheckKey(ctx)
}

// Process scores one paper.
func (s *Scorer) Process(ctx context.Context, p *types.Paper) error {
	prompt, err := renderScoringPrompt(p)
	if err != nil {
		return pipeline.NonRetryable(fmt.Errorf("rendering prompt: %w", err))
	}

	text, err := s.Client.Complete(ctx, prompt)
	if err != nil {
		return err
	}

	ev, err := ParseEvaluation(text)
	if err != nil {
		return pipeline.NonRetryable(fmt.Errorf("malformed scoring response: %w", err))
	}

	p.Summary = ev.Summary
	p.Novelty = ev.Novelty
	p.NoveltyJustification = ev.NoveltyJustification
	p.Impact = ev.Impact
	p.ImpactJustification = ev.ImpactJustification
	p.Recommendation = ev.Recommendation
	p.RecommendationJustification = ev.RecommendationJustification
	p.Touch()
	return nil
}

type scoredXML struct {
	Score         string `xml:"score"`
	Justification string `xml:"justification"`
}

type evaluationXML struct {
	XMLName        xml.Name   `xml:"paper_evaluation"`
	Summary        string     `xml:"summary"`
	Novelty        *scoredXML `xml:"novelty"`
	Impact         *scoredXML `xml:"impact"`
	Recommendation *scoredXML `xml:"recommendation"`
}

// ParseEvaluation parses a <paper_evaluation> document and checks every
// score against its vocabulary.
func ParseEvaluation(text string) (Evaluation, error) {
	doc, err := extractXML(text, "paper_evaluation")
	if err != nil {
		return Evaluation{}, err
	}

	var parsed evaluationXML
	if err := xml.Unmarshal([]byte(doc), &parsed); err != nil {
		return Evaluation{}, fmt.Errorf("parsing XML: %w", err)
	}

	ev := Evaluation{Summary: strings.TrimSpace(parsed.Summary)}
	if ev.Summary == "" {
		return Evaluation{}, fmt.Errorf("missing or empty summary")
	}

	if ev.Novelty, ev.NoveltyJustification, err = scored("novelty", parsed.Novelty, noveltyLabels); err != nil {
		return Evaluation{}, err
	}
	if ev.Impact, ev.ImpactJustification, err = scored("impact", parsed.Impact, impactLabels); err != nil {
		return Evaluation{}, err
	}
	if ev.Recommendation, ev.RecommendationJustification, err = scored("recommendation", parsed.Recommendation, recommendationLabels); err != nil {
		return Evaluation{}, err
	}
	return ev, nil
}

func scored(name string, el *scoredXML, labels []string) (string, string, error) {
	if el == nil {
		return "", "", fmt.Errorf("missing %s element", name)
	}
	score := strings.TrimSpace(el.Score)
	if !slices.Contains(labels, score) {
		return "", "", fmt.Errorf("invalid %s score %q", name, score)
	}
	justification := strings.TrimSpace(el.Justification)
	if justification == "" {
		return "", "", fmt.Errorf("missing or empty %s justification", name)
	}
	return score, justification, nil
}
