// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/paper-triage/internal/pipeline"
	"github.com/pdiddy/paper-triage/pkg/types"
)

// ReasonBelowThreshold is the skip reason for papers with no topic score
// at or above the similarity threshold.
const ReasonBelowThreshold = "no topic above similarity threshold"

var relevanceLabels = map[string]bool{
	types.RelevanceHigh:       true,
	types.RelevanceModerate:   true,
	types.RelevanceTangential: true,
	types.RelevanceNone:       true,
}

// Validator is the validation stage worker. It asks Claude to judge the
// paper against every topic whose similarity reached the threshold.
type Validator struct {
	Client    *Client
	Topics    []types.Topic
	Threshold float64
}

// NewValidator returns a validator for topics configured by cfg.
func NewValidator(cfg types.ValidationConfig, topics []types.Topic) *Validator {
	return &Validator{
		Client:    NewClient(cfg.AIConfig),
		Topics:    topics,
		Threshold: cfg.SimilarityThreshold,
	}
}

// Admit requires a completed embedding stage and at least one topic at or
// above the threshold.
func (v *Validator) Admit() pipeline.Admit {
	names := v.names()
	return pipeline.Requires(types.StageEmbedding, func(p *types.Paper) pipeline.Decision {
		if len(pipeline.TopicsAtLeast(p.TopicScores, names, v.Threshold)) == 0 {
			return pipeline.Ineligible(ReasonBelowThreshold)
		}
		return pipeline.Accept()
	})
}

// MarkBelowThreshold records the below-threshold justification for every
// topic. It fills result fields of papers the stage will not call the
// model for.
func (v *Validator) MarkBelowThreshold(p *types.Paper) {
	verdicts := make(map[string]types.TopicVerdict, len(v.Topics))
	for _, t := range v.Topics {
		verdicts[t.Name] = types.TopicVerdict{Justification: types.JustificationBelowThreshold}
	}
	p.Verdicts = verdicts
	p.Touch()
}

// Prepare fails the stage when no API key is configured.
func (v *Validator) Prepare(ctx context.Context) error {
	return v.Client.CheckKey(ctx)
}

// Process validates one paper.
func (v *Validator) Process(ctx context.Context, p *types.Paper) error {
	above := pipeline.TopicsAtLeast(p.TopicScores, v.names(), v.Threshold)
	if len(above) == 0 {
		return pipeline.Skip(errors.New(ReasonBelowThreshold))
	}

	selected := make([]types.Topic, 0, len(above))
	for _, t := range v.Topics {
		for _, name := range above {
			if t.Name == name {
				selected = append(selected, t)
			}
		}
	}

	prompt, err := renderValidationPrompt(p, selected)
	if err != nil {
		return pipeline.NonRetryable(fmt.Errorf("rendering prompt: %w", err))
	}

	text, err := v.Client.Complete(ctx, prompt)
	if err != nil {
		return err
	}

	got, err := ParseValidation(text, above)
	if err != nil {
		return pipeline.NonRetryable(fmt.Errorf("malformed validation response: %w", err))
	}

	verdicts := make(map[string]types.TopicVerdict, len(v.Topics))
	for _, t := range v.Topics {
		verdicts[t.Name] = types.TopicVerdict{Justification: types.JustificationBelowThreshold}
	}
	for name, verdict := range got {
		verdicts[name] = verdict
	}
	p.Verdicts = verdicts
	p.Touch()
	return nil
}

func (v *Validator) names() []string {
	out := make([]string, len(v.Topics))
	for i, t := range v.Topics {
		out[i] = t.Name
	}
	return out
}

type validationXML struct {
	XMLName xml.Name `xml:"validation_response"`
	Topics  []struct {
		Name          string `xml:"name,attr"`
		Conclusion    string `xml:"conclusion"`
		Justification string `xml:"justification"`
	} `xml:"topic"`
}

// ParseValidation parses a <validation_response> document. Every expected
// topic must appear exactly once with a known conclusion and a non-empty
// justification.
func ParseValidation(text string, expected []string) (map[string]types.TopicVerdict, error) {
	doc, err := extractXML(text, "validation_response")
	if err != nil {
		return nil, err
	}

	var parsed validationXML
	if err := xml.Unmarshal([]byte(doc), &parsed); err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}

	want := make(map[string]bool, len(expected))
	for _, name := range expected {
		want[name] = true
	}

	out := make(map[string]types.TopicVerdict, len(parsed.Topics))
	for _, t := range parsed.Topics {
		name := strings.TrimSpace(t.Name)
		switch {
		case name == "":
			return nil, errors.New("topic missing name attribute")
		case !want[name]:
			return nil, fmt.Errorf("unexpected topic %q", name)
		}
		conclusion := strings.TrimSpace(t.Conclusion)
		if !relevanceLabels[conclusion] {
			return nil, fmt.Errorf("invalid conclusion %q for topic %q", conclusion, name)
		}
		justification := strings.TrimSpace(t.Justification)
		if justification == "" {
			return nil, fmt.Errorf("empty justification for topic %q", name)
		}
		out[name] = types.TopicVerdict{Relevance: conclusion, Justification: justification}
	}

	var missing []string
	for _, name := range expected {
		if _, ok := out[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing topics: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
