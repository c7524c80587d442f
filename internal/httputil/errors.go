// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxErrorBody caps how much of a failed response body is kept.
const maxErrorBody = 2048

// StatusError is returned when a service answers with a non-2xx status.
type StatusError struct {
	// Service names the remote API (e.g. "arxiv", "claude").
	Service string

	// StatusCode is the HTTP status code returned by the API.
	StatusCode int

	// Body is the (truncated) response body.
	Body string

	// RetryAfter is the server-requested delay, zero when absent.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned HTTP %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Service, e.StatusCode, e.Body)
}

// RateLimited reports an HTTP 429.
func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// PayloadTooLarge reports an HTTP 413.
func (e *StatusError) PayloadTooLarge() bool {
	return e.StatusCode == http.StatusRequestEntityTooLarge
}

// IsTransient returns true for statuses that may succeed on retry: rate
// limiting, request timeouts, and server errors.
func (e *StatusError) IsTransient() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode >= 500
}

// CheckResponse returns nil for 2xx responses. Otherwise it drains and closes
// the body and returns a *StatusError.
func CheckResponse(service string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	io.Copy(io.Discard, resp.Body)

	return &StatusError{
		Service:    service,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

// parseRetryAfter accepts the delay-seconds form of Retry-After.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
