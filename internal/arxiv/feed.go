// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package arxiv

import (
	"bufio"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-triage/internal/httputil"
	"github.com/pdiddy/paper-triage/pkg/types"
)

// ErrTooManyPapers is returned when a selection exceeds MaxPapers.
var ErrTooManyPapers = errors.New("paper count exceeds limit")

// DateLayout is the accepted --date format.
const DateLayout = "2006-01-02"

// Feed lists the ids that make up a run.
type Feed struct {
	Client *http.Client
	Config types.ArxivConfig
}

// NewFeed returns a feed using cfg's timeout.
func NewFeed(cfg types.ArxivConfig) *Feed {
	return &Feed{Client: &http.Client{Timeout: cfg.Timeout}, Config: cfg}
}

// SearchQuery builds the submittedDate window query for day across cats.
func SearchQuery(day time.Time, cats []string) string {
	start := day.Format("20060102") + "000000"
	end := day.Format("20060102") + "235959"

	terms := make([]string, len(cats))
	for i, c := range cats {
		terms[i] = "cat:" + c
	}
	return fmt.Sprintf("submittedDate:[%s TO %s] AND (%s)", start, end, strings.Join(terms, " OR "))
}

// IDsForDate returns the ids submitted on day in the configured
// categories, paging through the results. It fails before paging when the
// reported total exceeds MaxPapers.
func (f *Feed) IDsForDate(ctx context.Context, day time.Time) ([]string, error) {
	log := zerolog.Ctx(ctx)
	query := SearchQuery(day, f.Config.Categories)
	pageSize := max(f.Config.PageSize, 1)

	var ids []string
	seen := make(map[string]bool)
	for start := 0; ; start += pageSize {
		page, err := f.page(ctx, query, start, pageSize)
		if err != nil {
			return nil, err
		}
		if start == 0 {
			if err := CheckLimit(page.TotalResults, f.Config.MaxPapers); err != nil {
				return nil, err
			}
			log.Info().Str("date", day.Format(DateLayout)).Int("total", page.TotalResults).Msg("arXiv listing")
		}

		for _, e := range page.Entries {
			id := idFromEntry(e.ID)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}

		if len(page.Entries) < pageSize || start+pageSize >= page.TotalResults {
			break
		}
	}
	if err := CheckLimit(len(ids), f.Config.MaxPapers); err != nil {
		return nil, err
	}
	return ids, nil
}

func (f *Feed) page(ctx context.Context, query string, start, size int) (*feed, error) {
	q := url.Values{}
	q.Set("search_query", query)
	q.Set("start", strconv.Itoa(start))
	q.Set("max_results", strconv.Itoa(size))
	q.Set("sortBy", "submittedDate")
	q.Set("sortOrder", "ascending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.Config.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, f.Client, req, f.Config.FeedRetries)
	if err != nil {
		return nil, fmt.Errorf("arXiv listing request: %w", err)
	}
	if err := httputil.CheckResponse("arxiv", resp); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var page feed
	if err := xml.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("parsing arXiv listing: %w", err)
	}
	return &page, nil
}

// ReadIDsFile reads one arXiv id per line. Blank lines and lines starting
// with # are ignored; duplicates keep their first position.
func ReadIDsFile(path string) ([]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ids file: %w", err)
	}
	defer fh.Close()

	var ids []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "arXiv:")
		if seen[line] {
			continue
		}
		seen[line] = true
		ids = append(ids, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ids file: %w", err)
	}
	return ids, nil
}

// CheckLimit rejects selections larger than limit.
func CheckLimit(n, limit int) error {
	if limit > 0 && n > limit {
		return fmt.Errorf("%w: %d papers, limit %d", ErrTooManyPapers, n, limit)
	}
	return nil
}
