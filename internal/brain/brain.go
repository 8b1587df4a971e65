// Package brain fans every market data request out to all registered
// providers, merges the answers and reports which providers contributed.
//
// Data operations never return a Go error. Failures are reported through
// Result.Success and Result.Error, with per-provider detail in
// Result.ProviderResults.
package brain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/iter"
	"github.com/sourcegraph/conc/panics"

	"marketbrain/internal/aggregate"
	"marketbrain/internal/cache"
	"marketbrain/internal/health"
	"marketbrain/internal/metrics"
	"marketbrain/internal/model"
	"marketbrain/internal/provider"
	"marketbrain/internal/registry"
)

// Default cache settings.
const (
	DefaultCacheTTL = 5 * time.Minute
)

// Config controls result caching.
type Config struct {
	EnableCaching bool
	CacheTTL      time.Duration
}

// DefaultConfig enables caching with a five minute TTL.
func DefaultConfig() Config {
	return Config{EnableCaching: true, CacheTTL: DefaultCacheTTL}
}

// Brain orchestrates provider calls. It is safe for concurrent use.
type Brain struct {
	registry *registry.Registry
	health   *health.Tracker
	cache    *cache.Cache
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	// strategies override the aggregation table per operation.
	strategies map[model.Operation]any
}

// Option configures a Brain.
type Option func(*Brain)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Brain) { b.logger = logger }
}

// WithClock replaces time.Now for result timestamps, cache ageing and
// rate-limit cooldowns.
func WithClock(now func() time.Time) Option {
	return func(b *Brain) { b.now = now }
}

// WithMetrics records Prometheus metrics. Without it collectors are
// created but not registered anywhere.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Brain) { b.metrics = m }
}

// WithHealthTracker shares an existing tracker.
func WithHealthTracker(t *health.Tracker) Option {
	return func(b *Brain) { b.health = t }
}

// WithStrategy replaces the aggregation strategy used for op.
func WithStrategy[T any](op model.Operation, s aggregate.Strategy[T]) Option {
	return func(b *Brain) {
		if b.strategies == nil {
			b.strategies = make(map[model.Operation]any)
		}
		b.strategies[op] = s
	}
}

// New creates a Brain dispatching to the providers in reg.
func New(reg *registry.Registry, cfg Config, opts ...Option) *Brain {
	b := &Brain{
		registry: reg,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics == nil {
		b.metrics = metrics.New(nil)
	}
	if b.health == nil {
		b.health = health.NewTracker(health.WithClock(b.now), health.WithLogger(b.logger))
	}
	b.cache = cache.New(cfg.EnableCaching, cfg.CacheTTL, cache.WithClock(b.now))

	b.logger.Info("brain initialized",
		"providers", reg.Names(),
		"caching", cfg.EnableCaching,
		"cache_ttl", cfg.CacheTTL)
	return b
}

// call invokes one operation on one provider.
type call[T any] func(ctx context.Context, p provider.Provider) (T, error)

// fetch runs the full request pipeline for one operation: cache lookup,
// concurrent dispatch, rate-limit bookkeeping, aggregation and caching.
func fetch[T any](ctx context.Context, b *Brain, op model.Operation, params cache.Params, fn call[T]) *Result[T] {
	name := op.String()

	if b.cache.Enabled() {
		cached, ok := b.cache.Get(name, params)
		if r, isResult := cached.(*Result[T]); ok && isResult {
			b.metrics.RecordCacheLookup(name, true)
			b.logger.Debug("cache hit",
				"operation", name,
				"coverage", r.CoveragePercentage)
			return r
		}
		b.metrics.RecordCacheLookup(name, false)
	}

	entries := b.registry.Entries()
	if len(entries) == 0 {
		b.logger.Warn("no providers available", "operation", name)
		var zero T
		return newResult(zero, nil, ErrNoProviders, nil, b.now())
	}

	logger := b.logger.With("request_id", uuid.NewString(), "operation", name)
	logger.Debug("dispatching request", "providers", b.registry.Names(), "params", params)

	// In-flight provider calls are not cancelled when the caller gives up.
	callCtx := context.WithoutCancel(ctx)

	mapper := iter.Mapper[registry.Entry, ProviderResult[T]]{MaxGoroutines: len(entries)}
	results := mapper.Map(entries, func(e *registry.Entry) ProviderResult[T] {
		return try(callCtx, b, logger, op, *e, fn)
	})

	var sources []aggregate.Source[T]
	var used []string
	byName := make(map[string]ProviderResult[T], len(results))
	for _, r := range results {
		byName[r.Provider] = r
		if !r.Success {
			if provider.IsRateLimitMessage(r.Error) {
				b.health.MarkRateLimited(r.Provider)
				b.metrics.RecordRateLimit(r.Provider)
				logger.Warn("rate limit detected", "provider", r.Provider, "error", r.Error)
			}
			continue
		}
		sources = append(sources, aggregate.Source[T]{Provider: r.Provider, Data: r.Data})
		used = append(used, r.Provider)
	}

	if len(sources) == 0 {
		logger.Error("all providers failed", "attempted", len(results))
		var zero T
		res := newResult(zero, nil, ErrAllFailed, byName, b.now())
		b.metrics.RecordCoverage(name, res.CoveragePercentage)
		return res
	}

	data := merge(b, logger, op, sources)
	res := newResult(data, used, "", byName, b.now())
	b.metrics.RecordCoverage(name, res.CoveragePercentage)

	logger.Info("aggregated result",
		"providers_used", used,
		"coverage", fmt.Sprintf("%.1f", res.CoveragePercentage))

	if b.cache.Enabled() {
		b.cache.Put(name, params, res, res.Timestamp)
	}
	return res
}

// try calls one provider, turning errors, panics and empty answers into a
// failed ProviderResult.
func try[T any](ctx context.Context, b *Brain, logger *slog.Logger, op model.Operation, e registry.Entry, fn call[T]) ProviderResult[T] {
	start := time.Now()

	var (
		data T
		err  error
	)
	var pc panics.Catcher
	pc.Try(func() { data, err = fn(ctx, e.Provider) })
	if rec := pc.Recovered(); rec != nil {
		err = fmt.Errorf("provider panicked: %v", rec.Value)
		logger.Error("provider panicked", "provider", e.Name, "panic", rec.Value, "stack", string(rec.Stack))
	}

	res := ProviderResult[T]{Provider: e.Name, Timestamp: b.now()}
	outcome := metrics.OutcomeSuccess
	switch {
	case err != nil:
		res.Error = err.Error()
		outcome = metrics.OutcomeFailure
		logger.Error("provider call failed", "provider", e.Name, "error", err)
	case isNil(data):
		res.Error = ErrNoDataReturned
		outcome = metrics.OutcomeNoData
		logger.Debug("provider returned no data", "provider", e.Name)
	default:
		res.Success = true
		res.Data = data
	}

	b.metrics.RecordProviderCall(e.Name, op.String(), outcome, time.Since(start))
	return res
}

// merge applies the strategy registered for op. A panicking strategy falls
// back to the first successful payload.
func merge[T any](b *Brain, logger *slog.Logger, op model.Operation, sources []aggregate.Source[T]) T {
	strategy := aggregate.For[T](op)
	if s, ok := b.strategies[op].(aggregate.Strategy[T]); ok {
		strategy = s
	}

	var out T
	var pc panics.Catcher
	pc.Try(func() { out = strategy(sources) })
	if rec := pc.Recovered(); rec != nil {
		logger.Error("aggregation failed, using first result", "panic", rec.Value)
		b.metrics.RecordAggregationFallback(op.String())
		return aggregate.First(sources)
	}
	return out
}

// Initialize exists for hosts that expect a start hook. The Brain is ready
// as soon as New returns.
func (b *Brain) Initialize(ctx context.Context) error {
	return nil
}

// Close tears down every adapter. Failures are logged and do not stop the
// remaining adapters from closing.
func (b *Brain) Close() {
	for _, e := range b.registry.Entries() {
		var pc panics.Catcher
		var err error
		pc.Try(func() { err = e.Provider.Close() })
		if rec := pc.Recovered(); rec != nil {
			err = rec.AsError()
		}
		if err != nil {
			b.logger.Warn("error closing provider", "provider", e.Name, "error", err)
		}
	}
}

// ClearCache drops every cached result.
func (b *Brain) ClearCache() {
	b.cache.Clear()
	b.logger.Info("cache cleared")
}

// GetAvailableProviders returns the registered provider names in dispatch
// order.
func (b *Brain) GetAvailableProviders() []string {
	return b.registry.Names()
}

// ProviderStatus describes one configured provider.
type ProviderStatus struct {
	Available        bool       `json:"available"`
	Priority         int        `json:"priority,omitempty"`
	RateLimited      bool       `json:"rate_limited"`
	RateLimitedSince *time.Time `json:"rate_limited_since,omitempty"`
	Reason           string     `json:"reason,omitempty"`
}

// GetProviderStatus reports every configured provider: whether it is
// registered, why not if it was skipped, and whether it currently looks
// rate limited.
func (b *Brain) GetProviderStatus() map[string]ProviderStatus {
	limited := b.health.Snapshot()
	status := make(map[string]ProviderStatus)
	for _, e := range b.registry.Entries() {
		s := ProviderStatus{Available: true, Priority: e.Priority}
		if at, ok := limited[e.Name]; ok {
			s.RateLimited = true
			s.RateLimitedSince = &at
		}
		status[e.Name] = s
	}
	for _, sk := range b.registry.Skipped() {
		status[sk.Name] = ProviderStatus{Reason: sk.Reason}
	}
	return status
}

// ResetRateLimit clears the rate-limit flag of provider. It reports false
// when no provider of that name is registered.
func (b *Brain) ResetRateLimit(provider string) bool {
	for _, e := range b.registry.Entries() {
		if e.Name == provider {
			b.health.Reset(provider)
			b.logger.Info("rate limit flag cleared", "provider", provider)
			return true
		}
	}
	return false
}

// IsRateLimited reports whether provider is inside its rate-limit cooldown.
func (b *Brain) IsRateLimited(provider string) bool {
	return b.health.IsRateLimited(provider)
}
