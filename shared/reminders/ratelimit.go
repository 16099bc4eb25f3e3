package reminders

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig holds configuration for outbound mail pacing.
type RateLimiterConfig struct {
	// Rate is the number of messages allowed per second.
	Rate float64
	// Burst is the maximum number of messages sent back to back.
	Burst int
	// JitterMin is the minimum jitter delay in milliseconds.
	JitterMin int
	// JitterMax is the maximum jitter delay in milliseconds.
	JitterMax int
}

// DefaultRateLimiterConfig returns the default configuration.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:      5,
		Burst:     10,
		JitterMin: 0,
		JitterMax: 50,
	}
}

// RateLimiter is a token bucket with a small random delay in front of it.
type RateLimiter struct {
	config  RateLimiterConfig
	limiter *rate.Limiter
}

// NewRateLimiter creates a new rate limiter with the given configuration.
// A non-positive rate disables limiting.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	limit := rate.Limit(config.Rate)
	if config.Rate <= 0 {
		limit = rate.Inf
	}
	burst := config.Burst
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		config:  config,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Wait blocks until a message may be sent or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if jitter := r.jitter(); jitter > 0 {
		t := time.NewTimer(jitter)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
	return r.limiter.Wait(ctx)
}

func (r *RateLimiter) jitter() time.Duration {
	if r.config.JitterMax <= r.config.JitterMin {
		return time.Duration(r.config.JitterMin) * time.Millisecond
	}
	ms := r.config.JitterMin + rand.Intn(r.config.JitterMax-r.config.JitterMin)
	return time.Duration(ms) * time.Millisecond
}
