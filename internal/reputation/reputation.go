// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reputation looks up author h-indexes on Semantic Scholar for
// papers worth reading.
package reputation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"github.com/pdiddy/paper-triage/internal/arxiv"
	"github.com/pdiddy/paper-triage/internal/httputil"
	"github.com/pdiddy/paper-triage/internal/pipeline"
	"github.com/pdiddy/paper-triage/pkg/types"
)

// semanticAPIBase is the Semantic Scholar graph API root. Declared as a
// var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1"

const paperFields = "url,authors.name,authors.url,authors.hIndex"

// Lookup methods recorded on the paper.
const (
	MethodArxivID     = "arxiv_id"
	MethodArxivBaseID = "arxiv_base_id"
	MethodTitleSearch = "title_search"
)

// ReasonNotRecommended is the skip reason for papers scoring did not
// recommend reading.
const ReasonNotRecommended = "not recommended"

var errNotFound = errors.New("paper not found on Semantic Scholar")

// Lookup is the reputation stage worker.
type Lookup struct {
	Client *http.Client
	Config types.ReputationConfig
}

// NewLookup returns a lookup using cfg's timeout.
func NewLookup(cfg types.ReputationConfig) *Lookup {
	return &Lookup{Client: &http.Client{Timeout: cfg.Timeout}, Config: cfg}
}

// Admit requires a completed scoring stage that recommended the paper.
func Admit() pipeline.Admit {
	return pipeline.Requires(types.StageScoring, func(p *types.Paper) pipeline.Decision {
		if p.Recommendation == types.RecommendMustRead || p.Recommendation == types.RecommendShouldRead {
			return pipeline.Accept()
		}
		return pipeline.Ineligible(ReasonNotRecommended)
	})
}

type s2Author struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	HIndex *int   `json:"hIndex"`
}

type s2Paper struct {
	URL     string     `json:"url"`
	Authors []s2Author `json:"authors"`
}

type s2Search struct {
	Data []s2Paper `json:"data"`
}

// Process finds the paper on Semantic Scholar by arXiv id, then by base id,
// then by title, and records its authors' h-index statistics.
func (l *Lookup) Process(ctx context.Context, p *types.Paper) error {
	found, method, err := l.find(ctx, p)
	if err != nil {
		return err
	}
	apply(p, found, method, l.Config.NotableHIndex)
	return nil
}

func (l *Lookup) find(ctx context.Context, p *types.Paper) (*s2Paper, string, error) {
	candidates := []struct{ id, method string }{{p.ID, MethodArxivID}}
	if base := arxiv.BaseID(p.ID); base != p.ID {
		candidates = append(candidates, struct{ id, method string }{base, MethodArxivBaseID})
	}

	for _, c := range candidates {
		var sp s2Paper
		err := l.get(ctx, "/paper/arXiv:"+url.PathEscape(c.id), url.Values{"fields": {paperFields}}, &sp)
		if err == nil {
			return &sp, c.method, nil
		}
		if !isNotFound(err) {
			return nil, "", err
		}
	}

	if p.Title == "" {
		return nil, "", pipeline.NonRetryable(errNotFound)
	}
	var sr s2Search
	q := url.Values{"query": {p.Title}, "limit": {"1"}, "fields": {paperFields}}
	if err := l.get(ctx, "/paper/search", q, &sr); err != nil {
		if isNotFound(err) {
			return nil, "", pipeline.NonRetryable(errNotFound)
		}
		return nil, "", err
	}
	if len(sr.Data) == 0 {
		return nil, "", pipeline.NonRetryable(errNotFound)
	}
	return &sr.Data[0], MethodTitleSearch, nil
}

func (l *Lookup) get(ctx context.Context, path string, params url.Values, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, semanticAPIBase+path+"?"+params.Encode(), nil)
	if err != nil {
		return pipeline.NonRetryable(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", l.Config.UserAgent)
	if l.Config.APIKey != "" {
		req.Header.Set("x-api-key", l.Config.APIKey)
	}

	resp, err := l.Client.Do(req)
	if err != nil {
		return fmt.Errorf("Semantic Scholar API request: %w", err)
	}
	if err := httputil.CheckResponse("semantic_scholar", resp); err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decoding Semantic Scholar response: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var se *httputil.StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// apply copies the author statistics of sp onto p. Authors without an
// h-index count toward TotalAuthors only.
func apply(p *types.Paper, sp *s2Paper, method string, notable int) {
	p.SemanticScholarURL = sp.URL
	p.LookupMethod = method
	p.TotalAuthors = len(sp.Authors)
	p.AuthorHIndexes = make([]types.AuthorHIndex, 0, len(sp.Authors))

	found, sum, highest, notableCount := 0, 0, 0, 0
	for _, a := range sp.Authors {
		p.AuthorHIndexes = append(p.AuthorHIndexes, types.AuthorHIndex{Name: a.Name, ProfileURL: a.URL, HIndex: a.HIndex})
		if a.HIndex == nil {
			continue
		}
		h := *a.HIndex
		found++
		sum += h
		highest = max(highest, h)
		if h > notable {
			notableCount++
		}
	}

	p.AuthorsFound = found
	p.NotableAuthors = notableCount
	p.HighestHIndex, p.AverageHIndex = nil, nil
	if found > 0 {
		avg := math.Round(float64(sum)/float64(found)*10) / 10
		p.HighestHIndex = &highest
		p.AverageHIndex = &avg
	}
	p.Touch()
}
