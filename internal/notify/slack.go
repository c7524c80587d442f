// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package notify posts a Slack digest of papers worth reading.
package notify

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-triage/internal/httputil"
	"github.com/pdiddy/paper-triage/pkg/types"
)

// slackAPIURL is the chat.postMessage endpoint. Package-level var for test
// substitution.
var slackAPIURL = "https://slack.com/api/chat.postMessage"

// maxListed caps the papers listed individually in one digest.
const maxListed = 20

// ErrMissingToken is returned when no Slack bot token is configured.
var ErrMissingToken = errors.New("slack bot token not configured")

// Notifier is the notification maintenance step.
type Notifier struct {
	Client *http.Client
	Config types.NotifyConfig
	Logger zerolog.Logger

	now func() time.Time
}

// NewNotifier returns a notifier using cfg's timeout.
func NewNotifier(cfg types.NotifyConfig, logger zerolog.Logger) *Notifier {
	return &Notifier{
		Client: &http.Client{Timeout: cfg.Timeout},
		Config: cfg,
		Logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Pending returns the valuable papers not yet notified, Must Read first.
func Pending(papers map[string]*types.Paper) []*types.Paper {
	var out []*types.Paper
	for _, p := range papers {
		if p.IsValuable() && p.NotifiedAt.IsZero() {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b *types.Paper) int {
		return cmp.Or(
			cmp.Compare(rank(a.Recommendation), rank(b.Recommendation)),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out
}

func rank(rec string) int {
	if rec == types.RecommendMustRead {
		return 0
	}
	return 1
}

// Maintain posts one digest covering every pending paper and marks them
// notified. Nothing is sent when no paper is pending.
func (n *Notifier) Maintain(ctx context.Context, papers map[string]*types.Paper) error {
	pending := Pending(papers)
	if len(pending) == 0 {
		n.Logger.Info().Msg("no new papers to notify")
		return nil
	}
	if n.Config.Token == "" {
		return ErrMissingToken
	}

	sent := n.now()
	msg := Digest(n.Config.Channel, len(papers), pending, sent)
	if err := n.post(ctx, msg); err != nil {
		return err
	}

	for _, p := range pending {
		p.NotifiedAt = sent
		p.Touch()
	}
	n.Logger.Info().Int("papers", len(pending)).Str("channel", n.Config.Channel).Msg("slack digest sent")
	return nil
}

// Message is a chat.postMessage request body.
type Message struct {
	Channel string  `json:"channel"`
	Text    string  `json:"text"`
	Blocks  []Block `json:"blocks"`
}

// Block is a Slack Block Kit block.
type Block struct {
	Type string     `json:"type"`
	Text *BlockText `json:"text,omitempty"`
}

// BlockText is the text object of a block.
type BlockText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Digest builds the message for pending papers out of total run papers.
func Digest(channel string, total int, pending []*types.Paper, at time.Time) Message {
	must := 0
	for _, p := range pending {
		if p.Recommendation == types.RecommendMustRead {
			must++
		}
	}
	header := fmt.Sprintf("paper-triage digest | Run date: %s", at.Format("2006-01-02"))
	counts := fmt.Sprintf("%d papers processed\nMust Read: %d | Should Read: %d", total, must, len(pending)-must)

	blocks := []Block{
		{Type: "header", Text: &BlockText{Type: "plain_text", Text: header}},
		{Type: "section", Text: &BlockText{Type: "mrkdwn", Text: counts}},
		{Type: "divider"},
	}
	for i, p := range pending {
		if i == maxListed {
			blocks = append(blocks, Block{Type: "section", Text: &BlockText{
				Type: "mrkdwn", Text: fmt.Sprintf("_and %d more_", len(pending)-maxListed),
			}})
			break
		}
		blocks = append(blocks, Block{Type: "section", Text: &BlockText{Type: "mrkdwn", Text: paperLine(p)}})
	}

	return Message{Channel: channel, Text: header, Blocks: blocks}
}

func paperLine(p *types.Paper) string {
	title := p.Title
	if title == "" {
		title = p.ID
	}
	link := p.AbstractURL
	if link == "" {
		link = "https://arxiv.org/abs/" + p.ID
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*<%s|%s>*\n%s", link, escape(title), p.Recommendation)
	if topics := p.RelevantTopics(); len(topics) > 0 {
		slices.Sort(topics)
		fmt.Fprintf(&b, " | %s", strings.Join(topics, ", "))
	}
	if p.HighestHIndex != nil {
		fmt.Fprintf(&b, " | top h-index %d", *p.HighestHIndex)
	}
	return b.String()
}

// escape applies Slack's mrkdwn escaping.
func escape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (n *Notifier) post(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling slack message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, slackAPIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+n.Config.Token)

	resp, err := httputil.DoWithRetry(ctx, n.Client, req, 0)
	if err != nil {
		return fmt.Errorf("calling slack: %w", err)
	}
	if err := httputil.CheckResponse("slack", resp); err != nil {
		return err
	}
	defer resp.Body.Close()

	var sr slackResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return fmt.Errorf("decoding slack response: %w", err)
	}
	if !sr.OK {
		return fmt.Errorf("slack rejected message: %s", sr.Error)
	}
	return nil
}
