// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckResponse(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		retryAfter    string
		wantErr       bool
		wantTransient bool
		wantRateLimit bool
		wantTooLarge  bool
		wantDelay     time.Duration
	}{
		{name: "ok", status: http.StatusOK},
		{name: "created", status: http.StatusCreated},
		{name: "rate limited", status: http.StatusTooManyRequests, body: "slow down", retryAfter: "7",
			wantErr: true, wantTransient: true, wantRateLimit: true, wantDelay: 7 * time.Second},
		{name: "server error", status: http.StatusBadGateway, wantErr: true, wantTransient: true},
		{name: "payload too large", status: http.StatusRequestEntityTooLarge, wantErr: true, wantTooLarge: true},
		{name: "not found", status: http.StatusNotFound, wantErr: true},
		{name: "bad retry-after ignored", status: http.StatusTooManyRequests, retryAfter: "soon",
			wantErr: true, wantTransient: true, wantRateLimit: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			if tt.retryAfter != "" {
				rec.Header().Set("Retry-After", tt.retryAfter)
			}
			rec.WriteHeader(tt.status)
			io.WriteString(rec, tt.body)

			err := CheckResponse("svc", rec.Result())
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, tt.body, se.Body)
			assert.Equal(t, tt.wantTransient, se.IsTransient())
			assert.Equal(t, tt.wantRateLimit, se.RateLimited())
			assert.Equal(t, tt.wantTooLarge, se.PayloadTooLarge())
			assert.Equal(t, tt.wantDelay, se.RetryAfter)
			assert.Contains(t, se.Error(), "svc returned HTTP")
		})
	}
}

func TestCheckResponseTruncatesBody(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusInternalServerError)
	io.WriteString(rec, strings.Repeat("x", 3*maxErrorBody))

	err := CheckResponse("svc", rec.Result())
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Len(t, se.Body, maxErrorBody)
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, NewLimiter(0))
	assert.Nil(t, NewLimiter(-1))

	l := NewLimiter(2.5)
	require.NotNil(t, l)
	assert.Equal(t, 3, l.Burst())

	l = NewLimiter(0.2)
	require.NotNil(t, l)
	assert.Equal(t, 1, l.Burst())
}
