// Package health tracks which providers recently looked rate limited.
package health

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultCooldown is how long a rate-limit flag stays set before it expires.
const DefaultCooldown = time.Hour

// Tracker records the instant each provider was last flagged as rate
// limited. A missing record means healthy. Expired records are removed
// lazily by IsRateLimited.
//
// The flag is informational: the orchestrator keeps dispatching to flagged
// providers so that one which recovered early is not skipped.
type Tracker struct {
	mu       sync.Mutex
	marked   map[string]time.Time
	cooldown time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithCooldown overrides DefaultCooldown.
func WithCooldown(d time.Duration) Option {
	return func(t *Tracker) { t.cooldown = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// NewTracker creates an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		marked:   make(map[string]time.Time),
		cooldown: DefaultCooldown,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IsRateLimited reports whether provider was flagged less than the cooldown
// ago. An expired flag is deleted and reported as not limited.
func (t *Tracker) IsRateLimited(provider string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	at, ok := t.marked[provider]
	if !ok {
		return false
	}
	if t.now().Sub(at) >= t.cooldown {
		delete(t.marked, provider)
		t.logger.Info("rate limit cooldown expired", "provider", provider)
		return false
	}
	return true
}

// MarkRateLimited (re)writes the flag for provider with the current time.
func (t *Tracker) MarkRateLimited(provider string) {
	t.mu.Lock()
	t.marked[provider] = t.now()
	t.mu.Unlock()

	t.logger.Warn("provider marked as rate limited", "provider", provider)
}

// Snapshot returns a copy of the live flags. Expired flags are left for
// IsRateLimited to remove.
func (t *Tracker) Snapshot() map[string]time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	out := make(map[string]time.Time, len(t.marked))
	for name, at := range t.marked {
		if now.Sub(at) < t.cooldown {
			out[name] = at
		}
	}
	return out
}

// Reset clears the flag for provider.
func (t *Tracker) Reset(provider string) {
	t.mu.Lock()
	delete(t.marked, provider)
	t.mu.Unlock()
}

// Len returns the number of stored records, expired ones included.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.marked)
}
