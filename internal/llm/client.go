// Package llm implements the validation and scoring stages on top of the
// Claude Messages API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/paper-triage/internal/httputil"
	"github.com/pdiddy/paper-triage/internal/pipeline"
	"github.com/pdiddy/paper-triage/pkg/types"
)

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

const anthropicVersion = "2023-06-01"

// temperature keeps verdicts stable across retries.
const temperature = 0.1

// ErrMissingAPIKey is returned when no Anthropic key is configured.
var ErrMissingAPIKey = errors.New("anthropic API key not configured")

// Client sends single-turn prompts to Claude.
type Client struct {
	HTTP   *http.Client
	Config types.AIConfig
}

// NewClient returns a client using cfg's timeout.
func NewClient(cfg types.AIConfig) *Client {
	return &Client{HTTP: &http.Client{Timeout: cfg.Timeout}, Config: cfg}
}

// CheckKey fails when no API key is configured.
func (c *Client) CheckKey(context.Context) error {
	if c.Config.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content    []claudeContent `json:"content"`
	StopReason string          `json:"stop_reason"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Complete sends prompt and returns the first text block of the answer.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(claudeRequest{
		Model:       c.Config.Model,
		MaxTokens:   c.Config.MaxTokens,
		Temperature: temperature,
		Messages:    []claudeMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", pipeline.NonRetryable(fmt.Errorf("marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(body))
	if err != nil {
		return "", pipeline.NonRetryable(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.Config.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	if c.Config.UserAgent != "" {
		req.Header.Set("User-Agent", c.Config.UserAgent)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	if err := httputil.CheckResponse("claude", resp); err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var cr claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decoding Claude response: %w", err)
	}

	for _, block := range cr.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return block.Text, nil
		}
	}
	return "", pipeline.NonRetryable(errors.New("no text content in Claude API response"))
}

// extractXML returns the <root>...</root> element embedded in text,
// ignoring any prose or code fences around it.
func extractXML(text, root string) (string, error) {
	open, closing := "<"+root, "</"+root+">"
	start := strings.Index(text, open)
	end := strings.LastIndex(text, closing)
	if start < 0 || end < start {
		return "", fmt.Errorf("response has no <%s> element", root)
	}
	return text[start : end+len(closing)], nil
}
