// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-triage/internal/secrets"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paper-triage.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	v, err := New("")
	require.NoError(t, err)

	cfg, err := Build(v, nil)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 0.4, cfg.Validation.SimilarityThreshold)
	assert.Equal(t, 3, cfg.Validation.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Validation.Retry.BaseDelay)
	assert.Equal(t, 3*time.Second, cfg.Validation.Retry.RateLimitMax)
	assert.Equal(t, 14, cfg.Retention.Days)
	assert.Equal(t, 30, cfg.Reputation.NotableHIndex)
	assert.Equal(t, "paper-triage/0.1", cfg.Content.UserAgent)
	assert.Equal(t, 30*time.Second, cfg.Arxiv.Timeout)
}

func TestFileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
store:
  path: /tmp/x.db
validation:
  similarity_threshold: 0.55
  concurrency: 8
  retry:
    base_delay: 250ms
arxiv:
  categories: [cs.AI]
`)
	t.Setenv("PAPER_TRIAGE_SCORING_CONCURRENCY", "2")
	t.Setenv("PAPER_TRIAGE_RETENTION_DAYS", "30")

	v, err := New(path)
	require.NoError(t, err)
	cfg, err := Build(v, nil)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/x.db", cfg.Store.Path)
	assert.Equal(t, 0.55, cfg.Validation.SimilarityThreshold)
	assert.Equal(t, 8, cfg.Validation.Concurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.Validation.Retry.BaseDelay)
	assert.Equal(t, []string{"cs.AI"}, cfg.Arxiv.Categories)
	assert.Equal(t, 2, cfg.Scoring.Concurrency)
	assert.Equal(t, 30, cfg.Retention.Days)
}

func TestExplicitFileMustExist(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplySecrets(t *testing.T) {
	t.Chdir(t.TempDir())
	v, err := New("")
	require.NoError(t, err)

	cfg, err := Build(v, map[string]string{
		secrets.AnthropicAPIKey:       "ak",
		secrets.OpenAIAPIKey:          "sk",
		secrets.SemanticScholarAPIKey: "s2",
		secrets.SlackBotToken:         "xoxb",
	})
	require.NoError(t, err)
	assert.Equal(t, "ak", cfg.Validation.APIKey)
	assert.Equal(t, "ak", cfg.Scoring.APIKey)
	assert.Equal(t, "sk", cfg.Embedding.APIKey)
	assert.Equal(t, "s2", cfg.Reputation.APIKey)
	assert.Equal(t, "xoxb", cfg.Notify.Token)
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		secrets map[string]string
		errMsg  string
	}{
		{
			name:   "threshold out of range",
			yaml:   "validation:\n  similarity_threshold: 1.5\n",
			errMsg: "SimilarityThreshold",
		},
		{
			name:   "zero concurrency",
			yaml:   "scoring:\n  concurrency: 0\n",
			errMsg: "Concurrency",
		},
		{
			name:   "unknown driver",
			yaml:   "store:\n  driver: mongo\n",
			errMsg: "Driver",
		},
		{
			name:   "rate limit window inverted",
			yaml:   "content:\n  retry:\n    rate_limit_min: 5s\n    rate_limit_max: 1s\n",
			errMsg: "RateLimitMax",
		},
		{
			name:   "postgres without dsn",
			yaml:   "store:\n  driver: postgres\n",
			errMsg: secrets.PostgresDSN,
		},
		{
			name:   "notify without channel",
			yaml:   "notify:\n  enabled: true\n",
			errMsg: "Channel",
		},
		{
			name:   "notify without token",
			yaml:   "notify:\n  enabled: true\n  channel: '#papers'\n",
			errMsg: secrets.SlackBotToken,
		},
		{
			name:   "kafka without topic",
			yaml:   "summary:\n  kafka_brokers: [localhost:9092]\n",
			errMsg: "kafka_topic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := New(writeConfig(t, tt.yaml))
			require.NoError(t, err)
			_, err = Build(v, tt.secrets)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
