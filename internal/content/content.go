// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package content extracts paper introductions from arXiv's HTML
// renderings.
package content

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/paper-triage/internal/httputil"
	"github.com/pdiddy/paper-triage/internal/pipeline"
	"github.com/pdiddy/paper-triage/pkg/types"
)

// htmlBase is the arXiv HTML rendering root. Declared as a var so tests
// can substitute an httptest server.
var htmlBase = "https://arxiv.org/html"

var (
	errNoSource       = errors.New("no HTML rendering available")
	errNoIntroduction = errors.New("no introduction section found")
)

// introTitle matches section headings such as "1 Introduction" or
// "I. INTRO".
var introTitle = regexp.MustCompile(`(?i)\bintro(duction)?\b`)

// Extractor is the content stage worker.
type Extractor struct {
	Client *http.Client
	Config types.ContentConfig
}

// NewExtractor returns an extractor using cfg's timeout.
func NewExtractor(cfg types.ContentConfig) *Extractor {
	return &Extractor{Client: &http.Client{Timeout: cfg.Timeout}, Config: cfg}
}

// Process fetches the paper's HTML and stores its introduction. A missing
// rendering or introduction makes the paper not eligible, with
// ContentSource recording which.
func (e *Extractor) Process(ctx context.Context, p *types.Paper) error {
	doc, err := e.fetch(ctx, p.ID)
	if err != nil {
		var se *httputil.StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusGone) {
			p.ContentSource = types.ContentNoSource
			return pipeline.Skip(fmt.Errorf("%w: %w", errNoSource, err))
		}
		return err
	}

	intro := Introduction(doc)
	if intro == "" || utf8.RuneCountInString(intro) < e.Config.MinLength {
		p.ContentSource = types.ContentNoIntroduction
		return pipeline.Skip(errNoIntroduction)
	}

	p.Introduction = Truncate(intro, e.Config.MaxLength)
	p.ContentSource = types.ContentArxivHTML
	return nil
}

func (e *Extractor) fetch(ctx context.Context, id string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, htmlBase+"/"+id, nil)
	if err != nil {
		return nil, pipeline.NonRetryable(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", e.Config.UserAgent)

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching HTML: %w", err)
	}
	if err := httputil.CheckResponse("arxiv-html", resp); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc, nil
}

// Introduction returns the plain text of the first section whose heading
// names an introduction, with citations, footnotes and equations' markup
// dropped. It returns "" when there is none.
func Introduction(doc *goquery.Document) string {
	var text string
	doc.Find("section").EachWithBreak(func(_ int, sec *goquery.Selection) bool {
		heading := sec.ChildrenFiltered("h1, h2, h3, h4").First()
		if heading.Length() == 0 || !introTitle.MatchString(heading.Text()) {
			return true
		}

		body := sec.Clone()
		body.Find("h1, h2, h3, h4, .ltx_note, .ltx_cite, cite, figure, table, script, style").Remove()

		var paras []string
		body.Find("p").Each(func(_ int, para *goquery.Selection) {
			if t := collapse(para.Text()); t != "" {
				paras = append(paras, t)
			}
		})
		if len(paras) == 0 {
			if t := collapse(body.Text()); t != "" {
				paras = append(paras, t)
			}
		}
		text = strings.Join(paras, "\n\n")
		return false
	})
	return text
}

// Truncate cuts s to at most n runes, backing up to the last space when
// one is near the cut.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)[:n]
	cut := string(r)
	if i := strings.LastIndexAny(cut, " \n"); i > len(cut)*9/10 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
