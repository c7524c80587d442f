// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/paper-triage/internal/httputil"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"tagged skip", Skip(errors.New("no source")), ClassSkip},
		{"tagged non-retryable wrapped", fmt.Errorf("parse: %w", NonRetryable(errors.New("bad xml"))), ClassNonRetryable},
		{"tagged retryable wins over message", Retryable(errors.New("token limit exceeded")), ClassRetryable},
		{"http 429", &httputil.StatusError{Service: "claude", StatusCode: http.StatusTooManyRequests}, ClassRateLimited},
		{"http 413", &httputil.StatusError{Service: "openai", StatusCode: http.StatusRequestEntityTooLarge}, ClassNonRetryable},
		{"http 503", &httputil.StatusError{Service: "s2", StatusCode: http.StatusServiceUnavailable}, ClassRetryable},
		{"http 400", &httputil.StatusError{Service: "claude", StatusCode: http.StatusBadRequest}, ClassNonRetryable},
		{"wrapped status", fmt.Errorf("calling: %w", &httputil.StatusError{StatusCode: 502}), ClassRetryable},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), ClassRetryable},
		{"message rate limit", errors.New("Rate limit reached for requests"), ClassRateLimited},
		{"message 429", errors.New("server said 429"), ClassRateLimited},
		{"message token limit", errors.New("maximum context length exceeded: too many tokens"), ClassNonRetryable},
		{"message context length", errors.New("context_length_exceeded"), ClassNonRetryable},
		{"unknown", errors.New("connection reset by peer"), ClassRetryable},
		{"panic", errors.New("worker panic: nil map"), ClassRetryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestItemErrorUnwrap(t *testing.T) {
	base := errors.New("base")
	err := NonRetryable(base)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "base", err.Error())
	assert.Equal(t, "non_retryable", ClassNonRetryable.String())
}
