// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embedding scores papers against research topics by cosine
// similarity of OpenAI-compatible embeddings.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-triage/internal/httputil"
	"github.com/pdiddy/paper-triage/internal/pipeline"
	"github.com/pdiddy/paper-triage/pkg/types"
)

var (
	// ErrMissingAPIKey is returned by Prepare when no key is configured.
	ErrMissingAPIKey = errors.New("embedding API key not configured")

	errTokenLimit = errors.New("embedding_token_limit_exceeded")
)

// TopicCache persists topic vectors per embedding model.
type TopicCache interface {
	TopicEmbedding(ctx context.Context, topic, model string) ([]float64, bool, error)
	SaveTopicEmbedding(ctx context.Context, topic, model string, vec []float64) error
}

// Scorer is the embedding stage. Prepare must succeed before Batch is
// called.
type Scorer struct {
	Client *http.Client
	Config types.EmbeddingConfig
	Topics []types.Topic
	Cache  TopicCache
	Logger zerolog.Logger

	vectors map[string][]float64
}

// NewScorer returns a scorer for topics using cfg's timeout.
func NewScorer(cfg types.EmbeddingConfig, topics []types.Topic, cache TopicCache, logger zerolog.Logger) *Scorer {
	return &Scorer{
		Client: &http.Client{Timeout: cfg.Timeout},
		Config: cfg,
		Topics: topics,
		Cache:  cache,
		Logger: logger,
	}
}

// Prepare loads topic vectors from the cache and embeds the missing ones.
// The embedding call is retried under the stage's policy; any failure left
// after that is fatal for the stage. Nothing is cached unless every missing
// topic got a vector.
func (s *Scorer) Prepare(ctx context.Context) error {
	if s.Config.APIKey == "" {
		return ErrMissingAPIKey
	}

	vectors := make(map[string][]float64, len(s.Topics))
	var missing []types.Topic
	for _, t := range s.Topics {
		vec, ok, err := s.Cache.TopicEmbedding(ctx, t.Name, s.Config.Model)
		if err != nil {
			return fmt.Errorf("reading cached embedding for %q: %w", t.Name, err)
		}
		if ok {
			vectors[t.Name] = vec
			continue
		}
		missing = append(missing, t)
	}

	if len(missing) > 0 {
		inputs := make([]string, len(missing))
		for i, t := range missing {
			inputs[i] = t.Description
		}
		exec := pipeline.Executor{Stage: types.StageEmbedding, Retry: s.Config.Retry, Logger: s.Logger}
		var vecs [][]float64
		err := exec.Do(ctx, func(ctx context.Context) error {
			var err error
			vecs, err = s.embed(ctx, inputs)
			return err
		})
		if err != nil {
			return fmt.Errorf("embedding topics: %w", err)
		}
		for i, t := range missing {
			if len(vecs[i]) == 0 {
				return fmt.Errorf("embedding topics: no vector returned for %q", t.Name)
			}
		}
		for i, t := range missing {
			if err := s.Cache.SaveTopicEmbedding(ctx, t.Name, s.Config.Model, vecs[i]); err != nil {
				return fmt.Errorf("caching embedding for %q: %w", t.Name, err)
			}
			vectors[t.Name] = vecs[i]
		}
	}

	s.vectors = vectors
	s.Logger.Info().
		Int("topics", len(vectors)).
		Int("computed", len(missing)).
		Str("model", s.Config.Model).
		Msg("topic embeddings ready")
	return nil
}

// Batch embeds every paper in batch with one API call and records its
// topic scores.
func (s *Scorer) Batch(ctx context.Context, batch []*types.Paper) error {
	if s.vectors == nil {
		return pipeline.NonRetryable(errors.New("topic embeddings not prepared"))
	}

	inputs := make([]string, len(batch))
	for i, p := range batch {
		inputs[i] = PaperText(p)
	}

	vecs, err := s.embed(ctx, inputs)
	if err != nil {
		return err
	}

	for i, p := range batch {
		if len(vecs[i]) == 0 {
			pipeline.MarkFailed(p, types.StageEmbedding, errors.New("empty embedding in response"))
			continue
		}
		s.score(p, vecs[i])
	}
	return nil
}

func (s *Scorer) score(p *types.Paper, vec []float64) {
	scores := make(map[string]float64, len(s.vectors))
	best, bestScore := "", math.Inf(-1)
	for _, t := range s.Topics {
		tv, ok := s.vectors[t.Name]
		if !ok {
			continue
		}
		sim, ok := Cosine(vec, tv)
		if !ok {
			continue
		}
		sim = RoundSig(sim, 3)
		scores[t.Name] = sim
		if sim > bestScore {
			best, bestScore = t.Name, sim
		}
	}
	p.TopicScores = scores
	p.HighestTopic = best
	p.Touch()
}

// PaperText is the text embedded for a paper.
func PaperText(p *types.Paper) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s Authors: %s Categories: %s Abstract: %s",
		p.Title, strings.Join(p.Authors, ", "), strings.Join(p.Categories, ", "), p.Abstract)
	if p.Introduction != "" {
		fmt.Fprintf(&b, " Introduction: %s", p.Introduction)
	}
	return b.String()
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// embed returns one vector per input, in input order.
func (s *Scorer) embed(ctx context.Context, inputs []string) ([][]float64, error) {
	body, err := json.Marshal(embeddingRequest{Model: s.Config.Model, Input: inputs})
	if err != nil {
		return nil, pipeline.NonRetryable(fmt.Errorf("marshaling request: %w", err))
	}

	url := strings.TrimSuffix(s.Config.BaseURL, "/") + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, pipeline.NonRetryable(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.Config.APIKey)
	if s.Config.UserAgent != "" {
		req.Header.Set("User-Agent", s.Config.UserAgent)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling embeddings API: %w", err)
	}
	if err := httputil.CheckResponse("embeddings", resp); err != nil {
		var se *httputil.StatusError
		if errors.As(err, &se) && !se.IsTransient() && strings.Contains(strings.ToLower(se.Body), "token") {
			return nil, pipeline.NonRetryable(fmt.Errorf("%w: %w", errTokenLimit, err))
		}
		return nil, err
	}
	defer resp.Body.Close()

	var er embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("decoding embeddings response: %w", err)
	}

	out := make([][]float64, len(inputs))
	for i, d := range er.Data {
		idx := d.Index
		if idx < 0 || idx >= len(inputs) {
			idx = i
		}
		if idx < len(out) {
			out[idx] = d.Embedding
		}
	}
	return out, nil
}

// Cosine returns the cosine similarity of a and b. It reports false when
// the vectors differ in length or either has zero norm.
func Cosine(a, b []float64) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}

// RoundSig rounds v to n significant figures.
func RoundSig(v float64, n int) float64 {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	magnitude := math.Floor(math.Log10(math.Abs(v)))
	factor := math.Pow(10, float64(n-1)-magnitude)
	return math.Round(v*factor) / factor
}
