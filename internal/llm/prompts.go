// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"text/template"

	"github.com/pdiddy/paper-triage/pkg/types"
)

// validationPromptTmpl asks for one relevance verdict per topic.
var validationPromptTmpl = template.Must(template.New("validation").Parse(`You are an expert AI researcher evaluating paper relevance to research topics.

Paper Information:
{{template "paper" .Paper}}

Topics to evaluate:
{{range .Topics}}- {{.Name}}: {{.Description}}
{{end}}
Step-by-step instructions:
1. Read the paper's text. Fully understand the paper's main contribution.
2. Evaluate if the paper's main contribution is relevant to any of the topics presented.
3. Respond ONLY in this exact XML format:

<validation_response>
    <topic name="{{(index .Topics 0).Name}}">
        <conclusion>Highly Relevant|Moderately Relevant|Tangentially Relevant|Not Relevant</conclusion>
        <justification><![CDATA[Your detailed reasoning here]]></justification>
    </topic>
    [Include similar structure for each topic listed above]
</validation_response>

Evaluate ALL {{len .Topics}} topics listed and use only the four conclusion options provided. Keep justifications clear and concise. Wrap all justification text in CDATA tags.
`))

// scoringPromptTmpl asks for a summary and the three rubric scores.
var scoringPromptTmpl = template.Must(template.New("scoring").Parse(`You are an expert AI Research Analyst. Assess the academic paper below based on its title, abstract, and introduction (if any). Your evaluation must be objective and insightful.

1. Read the paper's text and understand it.
2. Write a single concise paragraph that synthesizes the paper's core objectives, methodology, and key findings.
3. Score the paper on the three dimensions below. For each, select the single most fitting category and give a one or two sentence justification.

Novelty: the nature of the paper's contribution.
- Groundbreaking: introduces a fundamentally new problem, paradigm, or breakthrough technique.
- Significant: a novel architecture, method, or formulation that meaningfully advances current approaches.
- Incremental: refinements, extensions, or clever combinations of existing methods.
- Minimal: largely derivative work offering little new insight.

Potential Impact: the likely influence of the work.
- Transformative: could reshape the field or enable new research directions across domains.
- Substantial: likely to influence a broad range of work within the field.
- Moderate: will be built upon within its specific subfield.
- Negligible: unlikely to influence future research or applications.

Final Recommendation: the action an informed reader should take.
- Must Read: high-quality work with significant contributions; prioritize reading.
- Should Read: solid work with valuable contributions, worth reading when time allows.
- Can Skip: interesting but not essential; incremental or niche.
- Ignore: lacks substance or relevance, or is poorly presented.

Paper Information:
{{template "paper" .Paper}}

Respond ONLY in this exact XML format:

<paper_evaluation>
    <summary><![CDATA[Your single paragraph summary here]]></summary>
    <novelty>
        <score>Groundbreaking|Significant|Incremental|Minimal</score>
        <justification><![CDATA[1-2 sentences explaining your choice]]></justification>
    </novelty>
    <impact>
        <score>Transformative|Substantial|Moderate|Negligible</score>
        <justification><![CDATA[1-2 sentences explaining your choice]]></justification>
    </impact>
    <recommendation>
        <score>Must Read|Should Read|Can Skip|Ignore</score>
        <justification><![CDATA[1-2 sentences explaining your choice]]></justification>
    </recommendation>
</paper_evaluation>
`))

const paperBlock = `{{define "paper"}}Title: {{or .Title "No title available"}}
Abstract: {{or .Abstract "No abstract available"}}{{if .Introduction}}
Introduction: {{.Introduction}}{{end}}{{end}}`

func init() {
	template.Must(validationPromptTmpl.Parse(paperBlock))
	template.Must(scoringPromptTmpl.Parse(paperBlock))
}

// renderValidationPrompt builds the validation prompt for p over topics.
func renderValidationPrompt(p *types.Paper, topics []types.Topic) (string, error) {
	var buf bytes.Buffer
	err := validationPromptTmpl.Execute(&buf, struct {
		Paper  *types.Paper
		Topics []types.Topic
	}{p, topics})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// renderScoringPrompt builds the scoring prompt for p.
func renderScoringPrompt(p *types.Paper) (string, error) {
	var buf bytes.Buffer
	if err := scoringPromptTmpl.Execute(&buf, struct{ Paper *types.Paper }{p}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
