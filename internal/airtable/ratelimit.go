package airtable

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultRequestsPerSecond stays at Airtable's documented per-base limit.
	DefaultRequestsPerSecond = 5.0
	// DefaultBurst is the token bucket size.
	DefaultBurst = 5
	// defaultBackoff applies when a 429 carries no usable Retry-After header.
	defaultBackoff = 30 * time.Second
)

// ErrBackoffTooLong is returned by Wait when the back-off window of a 429
// outlasts the time a caller may wait.
var ErrBackoffTooLong = errors.New("rate limit back-off exceeds request timeout")

// RateLimiter throttles outgoing API requests with a token bucket and honours
// the back-off window of the last 429 response.
type RateLimiter struct {
	mu           sync.Mutex
	limiter      *rate.Limiter
	backoffUntil time.Time
	maxWait      time.Duration
	now          func() time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second. Wait
// never blocks for longer than maxWait.
func NewRateLimiter(rps float64, burst int, maxWait time.Duration) *RateLimiter {
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	if maxWait <= 0 {
		maxWait = DefaultTimeout
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		maxWait: maxWait,
		now:     time.Now,
	}
}

// Wait blocks until a request may be sent, ctx is done or maxWait elapses.
// A back-off window longer than maxWait fails at once with ErrBackoffTooLong.
func (r *RateLimiter) Wait(ctx context.Context) error {
	wait := r.retryAt().Sub(r.now())
	if wait > r.maxWait {
		return ErrBackoffTooLong
	}

	ctx, cancel := context.WithTimeout(ctx, r.maxWait)
	defer cancel()

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return r.limiter.Wait(ctx)
}

// RecordRateLimited starts a back-off window from a Retry-After header value.
func (r *RateLimiter) RecordRateLimited(retryAfter string) {
	backoff := defaultBackoff
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
		backoff = time.Duration(secs) * time.Second
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if until := r.now().Add(backoff); until.After(r.backoffUntil) {
		r.backoffUntil = until
	}
}

func (r *RateLimiter) retryAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backoffUntil
}
