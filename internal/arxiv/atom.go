// Package arxiv talks to the arXiv export API: it lists the ids submitted
// on a date and fills paper metadata from batched id_list queries.
package arxiv

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/paper-triage/pkg/types"
)

// apiBase is the arXiv query endpoint. Declared as a var so tests can
// substitute an httptest server.
var apiBase = "https://export.arxiv.org/api/query"

type feed struct {
	TotalResults int     `xml:"totalResults"`
	Entries      []entry `xml:"entry"`
}

type entry struct {
	ID         string     `xml:"id"`
	Title      string     `xml:"title"`
	Summary    string     `xml:"summary"`
	Published  string     `xml:"published"`
	Authors    []author   `xml:"author"`
	Categories []category `xml:"category"`
	Links      []link     `xml:"link"`
}

type author struct {
	Name string `xml:"name"`
}

type category struct {
	Term string `xml:"term,attr"`
}

type link struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

// idFromEntry pulls the versionless arXiv id from an entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041"). Error
// entries, which carry no /abs/ path, yield "".
func idFromEntry(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	return BaseID(idURL[idx+len(prefix):])
}

// BaseID strips a trailing version suffix ("2301.07041v2" -> "2301.07041").
func BaseID(id string) string {
	id = strings.TrimSpace(id)
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			return id[:vIdx]
		}
	}
	return id
}

// categoryPattern matches arXiv taxonomy terms (cs.AI, cond-mat.str-el,
// quant-ph) and rejects ACM and MSC codes that share the category element.
var categoryPattern = regexp.MustCompile(`^[a-z]+(-[a-z]+)?(\.[A-Za-z]{2,}(-[a-z]+)?)?$`)

// applyEntry copies the entry's source fields onto p.
func applyEntry(p *types.Paper, e entry) {
	p.Title = collapse(e.Title)
	p.Abstract = collapse(e.Summary)

	p.Authors = p.Authors[:0]
	for _, a := range e.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}

	p.Categories = p.Categories[:0]
	for _, c := range e.Categories {
		if categoryPattern.MatchString(c.Term) {
			p.Categories = append(p.Categories, c.Term)
		}
	}

	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); err == nil {
		p.PublishedAt = t.UTC()
	}

	for _, l := range e.Links {
		switch {
		case l.Rel == "alternate":
			p.AbstractURL = l.Href
		case l.Title == "pdf" || l.Type == "application/pdf":
			p.PDFURL = l.Href
		}
	}
	p.SourceURL = "https://arxiv.org/html/" + BaseID(p.ID)
}

// collapse folds the line breaks arXiv inserts into titles and abstracts.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
