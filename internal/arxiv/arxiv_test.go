package arxiv

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-triage/internal/httputil"
	"github.com/pdiddy/paper-triage/internal/pipeline"
	"github.com/pdiddy/paper-triage/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

func entryXML(id, title string) string {
	return fmt.Sprintf(`<entry>
    <id>http://arxiv.org/abs/%[1]sv1</id>
    <published>2026-03-02T17:59:01Z</published>
    <title>%[2]s
      continued</title>
    <summary>  An abstract
      over two lines. </summary>
    <author><name>Ada Lovelace</name></author>
    <author><name> Grace Hopper </name></author>
    <link href="http://arxiv.org/abs/%[1]sv1" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/%[1]sv1" rel="related" type="application/pdf"/>
    <arxiv:primary_category xmlns:arxiv="http://arxiv.org/schemas/atom" term="cs.LG" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.LG" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cond-mat.str-el" scheme="http://arxiv.org/schemas/atom"/>
    <category term="I.2.7" scheme="http://arxiv.org/schemas/atom"/>
    <category term="68T05" scheme="http://arxiv.org/schemas/atom"/>
  </entry>`, id, title)
}

func feedXML(total int, entries ...string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/">
  <title type="html">ArXiv Query</title>
  <opensearch:totalResults>%d</opensearch:totalResults>
  %s
</feed>`, total, strings.Join(entries, "\n"))
}

func withServer(t *testing.T, h http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	old := apiBase
	apiBase = srv.URL
	t.Cleanup(func() { apiBase = old })
}

func testConfig() types.ArxivConfig {
	return types.ArxivConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "test/0.1"},
		Categories: []string{"cs.AI", "cs.LG"},
		MaxPapers:  10,
		PageSize:   2,
		BatchSize:  5,
	}
}

func TestMetadataBatchFillsAndFailsMissing(t *testing.T) {
	var gotIDs string
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotIDs = r.URL.Query().Get("id_list")
		assert.Equal(t, "test/0.1", r.Header.Get("User-Agent"))
		fmt.Fprint(w, feedXML(1, entryXML("2603.00001", "Scaling Laws")))
	})

	found := types.NewPaper("2603.00001v2")
	missing := types.NewPaper("2603.00009")
	m := NewMetadata(testConfig())

	require.NoError(t, m.Batch(context.Background(), []*types.Paper{found, missing}))
	assert.Equal(t, "2603.00001v2,2603.00009", gotIDs)

	assert.Equal(t, "Scaling Laws continued", found.Title)
	assert.Equal(t, "An abstract over two lines.", found.Abstract)
	assert.Equal(t, []string{"Ada Lovelace", "Grace Hopper"}, found.Authors)
	assert.Equal(t, []string{"cs.LG", "cond-mat.str-el"}, found.Categories)
	assert.Equal(t, time.Date(2026, 3, 2, 17, 59, 1, 0, time.UTC), found.PublishedAt)
	assert.Equal(t, "http://arxiv.org/abs/2603.00001v1", found.AbstractURL)
	assert.Equal(t, "http://arxiv.org/pdf/2603.00001v1", found.PDFURL)
	assert.Equal(t, "https://arxiv.org/html/2603.00001", found.SourceURL)
	assert.Equal(t, types.StatusPending, found.Status.Metadata, "executor marks completion")

	assert.Equal(t, types.StatusFailed, missing.Status.Metadata)
	require.Len(t, missing.Errors, 1)
	assert.Contains(t, missing.Errors[0], "not found in arXiv response")
}

func TestMetadataBatchHTTPErrorIsClassified(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	err := NewMetadata(testConfig()).Batch(context.Background(), []*types.Paper{types.NewPaper("a")})
	require.Error(t, err)
	assert.Equal(t, pipeline.ClassRateLimited, pipeline.Classify(err))
}

func TestMetadataThroughExecutor(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML(1, entryXML("2603.00001", "T")))
	})

	papers := []*types.Paper{types.NewPaper("2603.00001"), types.NewPaper("2603.00002")}
	exec := &pipeline.Executor{Stage: types.StageMetadata, Concurrency: 1, Logger: zerolog.Nop()}
	res := exec.RunBatches(context.Background(), papers, 5, NewMetadata(testConfig()).Batch)

	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, types.StatusCompleted, papers[0].Status.Metadata)
	assert.Equal(t, types.StatusFailed, papers[1].Status.Metadata)
}

func TestIDsForDatePaginates(t *testing.T) {
	var calls atomic.Int32
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "submittedDate:[20260302000000 TO 20260302235959] AND (cat:cs.AI OR cat:cs.LG)", q.Get("search_query"))
		switch q.Get("start") {
		case "0":
			fmt.Fprint(w, feedXML(3, entryXML("2603.00001", "a"), entryXML("2603.00002", "b")))
		case "2":
			fmt.Fprint(w, feedXML(3, entryXML("2603.00003", "c")))
		default:
			t.Errorf("unexpected start %q", q.Get("start"))
		}
	})

	ids, err := NewFeed(testConfig()).IDsForDate(context.Background(), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"2603.00001", "2603.00002", "2603.00003"}, ids)
	assert.Equal(t, int32(2), calls.Load())
}

func TestIDsForDateEnforcesLimit(t *testing.T) {
	var calls atomic.Int32
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, feedXML(50, entryXML("2603.00001", "a"), entryXML("2603.00002", "b")))
	})

	_, err := NewFeed(testConfig()).IDsForDate(context.Background(), time.Now())
	require.ErrorIs(t, err, ErrTooManyPapers)
	assert.Equal(t, int32(1), calls.Load(), "no paging past an oversized listing")
}

func TestIDsForDateRetriesThrottling(t *testing.T) {
	var calls atomic.Int32
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, feedXML(1, entryXML("2603.00001", "a")))
	})

	ids, err := NewFeed(testConfig()).IDsForDate(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"2603.00001"}, ids)
}

func TestReadIDsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.txt")
	require.NoError(t, os.WriteFile(path, []byte("# weekly picks\n2603.00001\n\n arXiv:2603.00002 \n2603.00001\n"), 0o644))

	ids, err := ReadIDsFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"2603.00001", "2603.00002"}, ids)

	_, err = ReadIDsFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestBaseID(t *testing.T) {
	tests := map[string]string{
		"2301.07041v2":    "2301.07041",
		"2301.07041":      "2301.07041",
		"hep-th/9901001v1": "hep-th/9901001",
		"solv-int/9901":   "solv-int/9901",
	}
	for in, want := range tests {
		assert.Equal(t, want, BaseID(in), in)
	}
}

func TestCheckLimit(t *testing.T) {
	assert.NoError(t, CheckLimit(10, 10))
	assert.ErrorIs(t, CheckLimit(11, 10), ErrTooManyPapers)
	assert.NoError(t, CheckLimit(1000, 0))
}
