// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package content

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-triage/internal/pipeline"
	"github.com/pdiddy/paper-triage/pkg/types"
)

const paperHTML = `<!DOCTYPE html><html><body><article class="ltx_document">
<div class="ltx_abstract"><h6>Abstract</h6><p>We study things.</p></div>
<section class="ltx_section" id="S1">
  <h2 class="ltx_title ltx_title_section"><span class="ltx_tag">1 </span>Introduction</h2>
  <div class="ltx_para"><p class="ltx_p">Large models are   everywhere
    <cite class="ltx_cite">[1, 2]</cite>. We propose a method.</p></div>
  <div class="ltx_para"><p class="ltx_p">Our contribution is twofold.<span class="ltx_note">Footnote text.</span></p></div>
  <section class="ltx_subsection"><h3>1.1 Outline</h3><div class="ltx_para"><p>The rest follows.</p></div></section>
</section>
<section class="ltx_section" id="S2">
  <h2 class="ltx_title ltx_title_section">2 Related Work</h2>
  <div class="ltx_para"><p>Prior art.</p></div>
</section>
</article></body></html>`

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d
}

func TestIntroduction(t *testing.T) {
	got := Introduction(doc(t, paperHTML))
	assert.Equal(t,
		"Large models are everywhere . We propose a method.\n\nOur contribution is twofold.\n\nThe rest follows.",
		got)
}

func TestIntroductionMissing(t *testing.T) {
	html := `<html><body><section><h2>1 Background</h2><p>Text.</p></section></body></html>`
	assert.Empty(t, Introduction(doc(t, html)))
}

func TestIntroductionUppercaseHeading(t *testing.T) {
	html := `<html><body><section><h2>I. INTRODUCTION</h2><p>Hello world.</p></section></body></html>`
	assert.Equal(t, "Hello world.", Introduction(doc(t, html)))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 100))
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "one two three", Truncate("one two three four", 14))
	assert.Equal(t, "héllo", Truncate("héllo wörld", 5), "counts runes, not bytes")
	assert.Equal(t, "unbounded", Truncate("unbounded", 0))
}

func testConfig() types.ContentConfig {
	return types.ContentConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "test/0.1"},
		MaxLength:  40,
		MinLength:  10,
	}
}

func withServer(t *testing.T, h http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	old := htmlBase
	htmlBase = srv.URL
	t.Cleanup(func() { htmlBase = old })
}

func TestProcess(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/2603.00001":
			fmt.Fprint(w, paperHTML)
		case "/2603.00002":
			fmt.Fprint(w, `<html><body><section><h2>Methods</h2><p>x</p></section></body></html>`)
		case "/2603.00003":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	})
	ex := NewExtractor(testConfig())
	ctx := context.Background()

	t.Run("extracts and truncates", func(t *testing.T) {
		p := types.NewPaper("2603.00001")
		require.NoError(t, ex.Process(ctx, p))
		assert.Equal(t, types.ContentArxivHTML, p.ContentSource)
		assert.LessOrEqual(t, len([]rune(p.Introduction)), 40)
		assert.True(t, strings.HasPrefix(p.Introduction, "Large models are everywhere"))
	})

	t.Run("no introduction is skipped", func(t *testing.T) {
		p := types.NewPaper("2603.00002")
		err := ex.Process(ctx, p)
		assert.Equal(t, pipeline.ClassSkip, pipeline.Classify(err))
		assert.Equal(t, types.ContentNoIntroduction, p.ContentSource)
	})

	t.Run("missing rendering is skipped", func(t *testing.T) {
		p := types.NewPaper("2603.00404")
		err := ex.Process(ctx, p)
		assert.Equal(t, pipeline.ClassSkip, pipeline.Classify(err))
		assert.Equal(t, types.ContentNoSource, p.ContentSource)
	})

	t.Run("server error is retryable", func(t *testing.T) {
		p := types.NewPaper("2603.00003")
		err := ex.Process(ctx, p)
		assert.Equal(t, pipeline.ClassRetryable, pipeline.Classify(err))
		assert.Empty(t, p.ContentSource)
	})
}
