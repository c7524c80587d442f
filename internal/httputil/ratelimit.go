// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"math"

	"golang.org/x/time/rate"
)

// NewLimiter returns a token bucket pacing calls to ratePerSecond, or nil
// when pacing is disabled (ratePerSecond <= 0). The burst equals the rate
// rounded up, with a minimum of one.
func NewLimiter(ratePerSecond float64) *rate.Limiter {
	if ratePerSecond <= 0 {
		return nil
	}
	burst := int(math.Ceil(ratePerSecond))
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(ratePerSecond), burst)
}
