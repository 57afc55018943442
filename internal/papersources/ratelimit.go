// Package papersources provides rate-limited, retrying HTTP access to the
// external services the citation pipeline depends on.
package papersources

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket limiter shared by every request a client makes.
// It is safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing ratePerSecond sustained requests
// with bursts of up to burst.
//
// The arXiv API asks clients to stay at or below one request every three
// seconds; NewRateLimiter(1.0/3, 1) expresses that.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Wait blocks until a request is allowed or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow reports whether a request may happen now, consuming a token if so.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Tokens returns the number of tokens currently available.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
