// Package ratelimit wraps a model.Client with a process-local token-bucket
// rate limiter, one per llm_profile, shared across concurrent invocations
// (spec.md §5). It bounds how fast a retry storm in the reasoner's
// fetch/process/validate loop can hammer an LLM backend (spec.md §7,
// "transient backend error").
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/fractalhq/orcha/model"
)

// Limiter wraps a model.Client with a requests-per-second token bucket.
type Limiter struct {
	next    model.Client
	limiter *rate.Limiter
}

// New wraps next with a limiter allowing rps requests per second, bursting
// up to burst. A non-positive rps disables limiting (the wrapper becomes a
// passthrough), useful for tests.
func New(next model.Client, rps float64, burst int) *Limiter {
	if rps <= 0 {
		return &Limiter{next: next, limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Complete waits for a token before delegating to the wrapped client.
func (l *Limiter) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.Complete(ctx, req)
}

// Stream waits for a token before delegating to the wrapped client.
func (l *Limiter) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.Stream(ctx, req)
}

// Registry keeps one Limiter per llm_profile, so the reasoner's rate budget
// is shared across every step of every invocation using that profile
// (spec.md §5, "shared... cache for... LLM handles").
type Registry struct {
	limiters map[string]*Limiter
}

// NewRegistry constructs an empty per-profile limiter registry.
func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]*Limiter)}
}

// Wrap registers (or replaces) the limiter for a profile and returns it.
func (r *Registry) Wrap(profile string, client model.Client, rps float64, burst int) model.Client {
	lim := New(client, rps, burst)
	r.limiters[profile] = lim
	return lim
}

// Get returns the previously wrapped client for a profile.
func (r *Registry) Get(profile string) (model.Client, bool) {
	lim, ok := r.limiters[profile]
	return lim, ok
}
