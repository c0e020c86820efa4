// Package limiter throttles calls against rate limited providers. The
// orchestrator waits on an Interval limiter between live contract fetches
// and explorer HTTP clients go through a TokenBucket backed transport.
package limiter

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Limiter is a minimal interface implemented by rate limiters.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Noop never blocks. Tests inject it to remove inter-contract delays.
type Noop struct{}

func (Noop) Wait(ctx context.Context) error {
	return ctx.Err()
}

// Interval pauses for a fixed duration on every Wait. A zero interval
// makes Wait return immediately.
type Interval struct {
	interval time.Duration
}

func NewInterval(d time.Duration) *Interval {
	return &Interval{interval: d}
}

func (l *Interval) Interval() time.Duration {
	return l.interval
}

func (l *Interval) Wait(ctx context.Context) error {
	if l.interval <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(l.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// TokenBucket issues up to rate tokens per second with a burst capacity.
type TokenBucket struct {
	mu       sync.Mutex
	rate     float64
	capacity float64
	tokens   float64
	last     time.Time
}

// NewTokenBucket panics on non positive rate or burst, both are
// programming errors.
func NewTokenBucket(rate float64, burst int) *TokenBucket {
	if rate <= 0 {
		panic("rate must be positive")
	}
	if burst <= 0 {
		panic("burst must be positive")
	}
	return &TokenBucket{
		rate:     rate,
		capacity: float64(burst),
		tokens:   float64(burst),
		last:     time.Now(),
	}
}

// Wait blocks until a single token is available or the context is cancelled.
func (l *TokenBucket) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		now := time.Now()
		l.refill(now)

		if l.tokens >= 1 {
			l.tokens--
			return nil
		}

		needed := (1 - l.tokens) / l.rate
		waitDuration := time.Duration(needed * float64(time.Second))
		if waitDuration <= 0 {
			waitDuration = time.Millisecond
		}

		timer := time.NewTimer(waitDuration)
		l.mu.Unlock()
		select {
		case <-ctx.Done():
			timer.Stop()
			l.mu.Lock()
			return ctx.Err()
		case <-timer.C:
		}
		l.mu.Lock()
	}
}

func (l *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(l.last)
	if elapsed <= 0 {
		return
	}
	l.tokens += l.rate * elapsed.Seconds()
	if l.tokens > l.capacity {
		l.tokens = l.capacity
	}
	l.last = now
}

// RateLimitedTransport wraps a RoundTripper with a limiter.
type RateLimitedTransport struct {
	Limiter Limiter
	Base    http.RoundTripper
}

// RoundTrip waits for the limiter before delegating to the base transport.
func (t *RateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Limiter != nil {
		if err := t.Limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	return t.base().RoundTrip(req)
}

func (t *RateLimitedTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// NewHTTPClient returns a client whose requests are throttled by l.
func NewHTTPClient(l Limiter, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &RateLimitedTransport{Limiter: l},
	}
}
