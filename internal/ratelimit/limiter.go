// Package ratelimit paces outbound requests per provider so that adapters
// stay under their upstream quotas.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter manages one token bucket per provider. Providers without a bucket
// are not limited. A nil *Limiter allows everything.
type Limiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

// New creates an empty Limiter.
func New() *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

// PerMinute converts a requests-per-minute quota into a rate.Limit.
// Zero or negative means unlimited.
func PerMinute(n int) rate.Limit {
	if n <= 0 {
		return rate.Inf
	}
	return rate.Every(time.Minute / time.Duration(n))
}

// Set installs a bucket for provider allowing perMinute requests per minute
// with a burst of one. It replaces any previous bucket.
func (l *Limiter) Set(provider string, perMinute int) {
	l.mu.Lock()
	l.limiters[provider] = rate.NewLimiter(PerMinute(perMinute), 1)
	l.mu.Unlock()
}

func (l *Limiter) get(provider string) (*rate.Limiter, bool) {
	if l == nil {
		return nil, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	lim, ok := l.limiters[provider]
	return lim, ok
}

// Wait blocks until the provider's bucket permits a request.
// It returns an error if the context is canceled before the request can proceed.
func (l *Limiter) Wait(ctx context.Context, provider string) error {
	lim, ok := l.get(provider)
	if !ok {
		return nil
	}
	return lim.Wait(ctx)
}

// Allow reports whether a request for provider may happen now, consuming a
// token if so.
func (l *Limiter) Allow(provider string) bool {
	lim, ok := l.get(provider)
	if !ok {
		return true
	}
	return lim.Allow()
}
