package arxiv

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/paper-triage/internal/httputil"
	"github.com/pdiddy/paper-triage/internal/pipeline"
	"github.com/pdiddy/paper-triage/pkg/types"
)

// errNotInResponse fails a paper the API did not return.
var errNotInResponse = errors.New("not found in arXiv response")

// Metadata fills source fields for batches of papers.
type Metadata struct {
	Client *http.Client
	Config types.ArxivConfig
}

// NewMetadata returns a metadata fetcher using cfg's timeout.
func NewMetadata(cfg types.ArxivConfig) *Metadata {
	return &Metadata{Client: &http.Client{Timeout: cfg.Timeout}, Config: cfg}
}

// Batch queries the API for every paper in batch with one id_list
// request. Papers absent from a successful response fail individually.
func (m *Metadata) Batch(ctx context.Context, batch []*types.Paper) error {
	ids := make([]string, len(batch))
	for i, p := range batch {
		ids[i] = p.ID
	}

	f, err := m.query(ctx, ids)
	if err != nil {
		return err
	}

	byID := make(map[string]entry, len(f.Entries))
	for _, e := range f.Entries {
		if id := idFromEntry(e.ID); id != "" {
			byID[id] = e
		}
	}

	for _, p := range batch {
		e, ok := byID[BaseID(p.ID)]
		if !ok {
			pipeline.MarkFailed(p, types.StageMetadata, errNotInResponse)
			continue
		}
		applyEntry(p, e)
	}
	return nil
}

func (m *Metadata) query(ctx context.Context, ids []string) (*feed, error) {
	q := url.Values{}
	q.Set("id_list", strings.Join(ids, ","))
	q.Set("max_results", strconv.Itoa(len(ids)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"?"+q.Encode(), nil)
	if err != nil {
		return nil, pipeline.NonRetryable(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", m.Config.UserAgent)

	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	if err := httputil.CheckResponse("arxiv", resp); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var f feed
	if err := xml.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}
	return &f, nil
}
