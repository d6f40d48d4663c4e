package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimitedProvider spaces calls to the wrapped provider with a token
// bucket holding up to one minute of requests.
type RateLimitedProvider struct {
	provider Provider
	// every is the time it takes to earn one request.
	every time.Duration
	burst float64

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewRateLimitedProvider wraps the given provider with a rate limiter
// that allows at most rpm requests per minute. A non-positive rpm
// disables limiting.
func NewRateLimitedProvider(provider Provider, rpm int) Provider {
	if rpm <= 0 {
		return provider
	}
	return &RateLimitedProvider{
		provider: provider,
		every:    time.Minute / time.Duration(rpm),
		burst:    float64(rpm),
		tokens:   float64(rpm),
		last:     time.Now(),
	}
}

func (r *RateLimitedProvider) Name() string {
	return r.provider.Name()
}

func (r *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := r.wait(ctx); err != nil {
		return nil, providerErr(r.provider.Name(), fmt.Errorf("waiting for rate limit: %w", err))
	}
	return r.provider.Complete(ctx, req)
}

// wait takes a token, sleeping until it is earned. A cancelled wait hands
// its token back.
func (r *RateLimitedProvider) wait(ctx context.Context) error {
	delay := r.reserve(time.Now())
	if delay == 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.mu.Lock()
		r.tokens++
		r.mu.Unlock()
		return ctx.Err()
	}
}

// reserve refills the bucket up to now, takes a token and returns how
// long until that token is actually available.
func (r *RateLimitedProvider) reserve(now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if elapsed := now.Sub(r.last); elapsed > 0 {
		r.tokens = min(r.burst, r.tokens+float64(elapsed)/float64(r.every))
		r.last = now
	}
	r.tokens--
	if r.tokens >= 0 {
		return 0
	}
	return time.Duration(-r.tokens * float64(r.every))
}
