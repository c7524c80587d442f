// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-triage/pkg/types"
)

var sentAt = time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)

func scored(id, rec string) *types.Paper {
	p := types.NewPaper(id)
	p.Title = "Paper " + id
	p.Status.Scoring = types.StatusCompleted
	p.Recommendation = rec
	return p
}

func slackServer(t *testing.T, reply string, got *Message) *atomic.Int32 {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer xoxb-test", r.Header.Get("Authorization"))
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		fmt.Fprint(w, reply)
	}))
	t.Cleanup(srv.Close)

	orig := slackAPIURL
	slackAPIURL = srv.URL
	t.Cleanup(func() { slackAPIURL = orig })
	return &calls
}

func newTestNotifier() *Notifier {
	n := NewNotifier(types.NotifyConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second},
		Enabled:    true,
		Channel:    "#papers",
		Token:      "xoxb-test",
	}, zerolog.Nop())
	n.now = func() time.Time { return sentAt }
	return n
}

func TestNotifierSendsOnce(t *testing.T) {
	var msg Message
	calls := slackServer(t, `{"ok": true}`, &msg)

	papers := map[string]*types.Paper{
		"s":    scored("s", types.RecommendShouldRead),
		"m":    scored("m", types.RecommendMustRead),
		"skip": scored("skip", types.RecommendCanSkip),
	}
	n := newTestNotifier()
	require.NoError(t, n.Maintain(context.Background(), papers))

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "#papers", msg.Channel)
	require.Len(t, msg.Blocks, 5)
	assert.Contains(t, msg.Blocks[1].Text.Text, "3 papers processed")
	assert.Contains(t, msg.Blocks[1].Text.Text, "Must Read: 1 | Should Read: 1")
	assert.Contains(t, msg.Blocks[3].Text.Text, "Paper m", "Must Read listed first")
	assert.Contains(t, msg.Blocks[4].Text.Text, "Paper s")

	assert.Equal(t, sentAt, papers["m"].NotifiedAt)
	assert.Equal(t, sentAt, papers["s"].NotifiedAt)
	assert.True(t, papers["skip"].NotifiedAt.IsZero())

	// A resumed run does not resend.
	require.NoError(t, n.Maintain(context.Background(), papers))
	assert.Equal(t, int32(1), calls.Load())
}

func TestNotifierSlackError(t *testing.T) {
	slackServer(t, `{"ok": false, "error": "channel_not_found"}`, nil)

	papers := map[string]*types.Paper{"m": scored("m", types.RecommendMustRead)}
	err := newTestNotifier().Maintain(context.Background(), papers)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
	assert.True(t, papers["m"].NotifiedAt.IsZero())
}

func TestNotifierMissingToken(t *testing.T) {
	n := newTestNotifier()
	n.Config.Token = ""
	err := n.Maintain(context.Background(), map[string]*types.Paper{"m": scored("m", types.RecommendMustRead)})
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestDigest(t *testing.T) {
	var pending []*types.Paper
	for i := range maxListed + 3 {
		pending = append(pending, scored(fmt.Sprintf("%02d", i), types.RecommendShouldRead))
	}
	p := pending[0]
	p.Title = "A <b> & c"
	p.AbstractURL = "https://arxiv.org/abs/00"
	h := 42
	p.HighestHIndex = &h
	p.Verdicts = map[string]types.TopicVerdict{"RLHF": {Relevance: types.RelevanceHigh}}

	msg := Digest("#c", 50, pending, sentAt)
	assert.Equal(t, "paper-triage digest | Run date: 2026-03-15", msg.Text)
	assert.Len(t, msg.Blocks, 3+maxListed+1)
	assert.Equal(t, "*<https://arxiv.org/abs/00|A &lt;b&gt; &amp; c>*\nShould Read | RLHF | top h-index 42", msg.Blocks[3].Text.Text)
	assert.Equal(t, "_and 3 more_", msg.Blocks[len(msg.Blocks)-1].Text.Text)
}
