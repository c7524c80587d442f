// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/pdiddy/paper-triage/internal/httputil"
)

// Class tells the executor what to do with a failed attempt.
type Class int

const (
	// ClassRetryable errors are retried with backoff.
	ClassRetryable Class = iota
	// ClassRateLimited errors are retried with backoff plus an extra
	// randomized delay.
	ClassRateLimited
	// ClassNonRetryable errors fail the item immediately.
	ClassNonRetryable
	// ClassSkip errors mark the item not eligible without retrying.
	ClassSkip
)

func (c Class) String() string {
	switch c {
	case ClassRetryable:
		return "retryable"
	case ClassRateLimited:
		return "rate_limited"
	case ClassNonRetryable:
		return "non_retryable"
	case ClassSkip:
		return "skip"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

var (
	// ErrCheckpoint wraps every failure to persist the entity set.
	ErrCheckpoint = errors.New("checkpoint failed")

	// ErrStageFatal wraps failures that abort a whole stage.
	ErrStageFatal = errors.New("stage failed")
)

// ItemError tags a worker error with an explicit class.
type ItemError struct {
	Class Class
	Err   error
}

func (e *ItemError) Error() string { return e.Err.Error() }

func (e *ItemError) Unwrap() error { return e.Err }

// Retryable tags err as a transient failure.
func Retryable(err error) error { return &ItemError{Class: ClassRetryable, Err: err} }

// NonRetryable tags err as a failure retrying cannot fix.
func NonRetryable(err error) error { return &ItemError{Class: ClassNonRetryable, Err: err} }

// Skip tags err as a reason the item does not need this stage.
func Skip(err error) error { return &ItemError{Class: ClassSkip, Err: err} }

// Classify maps an error to the executor's retry decision. Explicit tags
// win, then HTTP status codes, then network timeouts. Untyped errors fall
// back to message matching and default to retryable.
func Classify(err error) Class {
	if err == nil {
		return ClassRetryable
	}

	var ie *ItemError
	if errors.As(err, &ie) {
		return ie.Class
	}

	var se *httputil.StatusError
	if errors.As(err, &se) {
		switch {
		case se.RateLimited():
			return ClassRateLimited
		case se.PayloadTooLarge():
			return ClassNonRetryable
		case se.IsTransient():
			return ClassRetryable
		default:
			return ClassNonRetryable
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassRetryable
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ClassRetryable
	}

	return classifyMessage(err.Error())
}

// classifyMessage keeps the substring checks used for errors that carry no
// type information.
func classifyMessage(msg string) Class {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "429"),
		strings.Contains(m, "rate limit"),
		strings.Contains(m, "too many requests"):
		return ClassRateLimited
	case tokenLimit(m),
		strings.Contains(m, "payload too large"),
		strings.Contains(m, "413"):
		return ClassNonRetryable
	}
	return ClassRetryable
}

func tokenLimit(m string) bool {
	if strings.Contains(m, "context_length_exceeded") || strings.Contains(m, "prompt is too long") {
		return true
	}
	return strings.Contains(m, "token") &&
		(strings.Contains(m, "limit") || strings.Contains(m, "exceed") || strings.Contains(m, "maximum"))
}
