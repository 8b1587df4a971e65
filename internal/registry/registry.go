// Package registry builds the ordered set of provider adapters the
// orchestrator dispatches to.
package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"marketbrain/internal/alphavantage"
	"marketbrain/internal/config"
	"marketbrain/internal/finnhub"
	"marketbrain/internal/provider"
	"marketbrain/internal/ratelimit"
)

// Reasons a configured provider was not registered.
const (
	ReasonDisabled          = "disabled"
	ReasonMissingCredential = "missing credential"
	ReasonUnknown           = "unknown provider"
	reasonConstruction      = "construction failed"
)

// Deps are the shared collaborators handed to every factory.
type Deps struct {
	Limiter *ratelimit.Limiter
	Logger  *slog.Logger
}

// Factory constructs the adapter called name from its configuration.
type Factory func(name string, cfg config.ProviderConfig, deps Deps) (provider.Provider, error)

// Builtin returns the factories for the adapters shipped with marketbrain.
func Builtin() map[string]Factory {
	return map[string]Factory{
		alphavantage.Name: func(name string, cfg config.ProviderConfig, deps Deps) (provider.Provider, error) {
			c, err := alphavantage.New(alphavantage.Config{
				APIKey:  cfg.APIKey,
				BaseURL: cfg.BaseURL,
				Timeout: cfg.Timeout(),
				Limiter: deps.Limiter,
				Logger:  deps.Logger,
			})
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		finnhub.Name: func(name string, cfg config.ProviderConfig, deps Deps) (provider.Provider, error) {
			c, err := finnhub.New(finnhub.Config{
				APIKey:  cfg.APIKey,
				BaseURL: cfg.BaseURL,
				Timeout: cfg.Timeout(),
				Limiter: deps.Limiter,
				Logger:  deps.Logger,
			})
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}

// Entry is one registered adapter.
type Entry struct {
	Name     string
	Priority int
	Provider provider.Provider
}

// Skipped records a configured provider that was not registered.
type Skipped struct {
	Name   string
	Reason string
}

// Registry is the ordered, read-only list of adapters. It is safe for
// concurrent reads once built.
type Registry struct {
	entries []Entry
	skipped []Skipped
	limiter *ratelimit.Limiter
}

// New builds a registry from ready adapters, keeping the argument order.
func New(providers ...provider.Provider) *Registry {
	r := &Registry{limiter: ratelimit.New()}
	for _, p := range providers {
		r.entries = append(r.entries, Entry{Name: p.Name(), Provider: p})
	}
	return r
}

// FromConfig constructs every enabled provider that has a credential.
// Providers that cannot be built are logged and skipped. Entries are
// ordered by priority (1 first), then by name.
func FromConfig(cfg *config.Config, factories map[string]Factory, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{limiter: ratelimit.New()}

	for _, name := range cfg.ProviderNames() {
		pc := cfg.Providers[name]

		factory, known := factories[name]
		switch {
		case !pc.Enabled:
			r.skip(logger, name, ReasonDisabled)
			continue
		case !known:
			r.skip(logger, name, ReasonUnknown)
			continue
		case pc.APIKey == "":
			r.skip(logger, name, ReasonMissingCredential)
			continue
		}

		r.limiter.Set(name, pc.RateLimitPerMinute)
		p, err := factory(name, pc, Deps{Limiter: r.limiter, Logger: logger.With("provider", name)})
		if err != nil {
			r.skip(logger, name, fmt.Sprintf("%s: %v", reasonConstruction, err))
			continue
		}

		r.entries = append(r.entries, Entry{Name: name, Priority: pc.Priority, Provider: p})
		logger.Info("provider initialized", "provider", name, "priority", pc.Priority)
	}

	sort.SliceStable(r.entries, func(i, j int) bool {
		if r.entries[i].Priority != r.entries[j].Priority {
			return r.entries[i].Priority < r.entries[j].Priority
		}
		return r.entries[i].Name < r.entries[j].Name
	})
	return r
}

func (r *Registry) skip(logger *slog.Logger, name, reason string) {
	r.skipped = append(r.skipped, Skipped{Name: name, Reason: reason})
	logger.Warn("provider not registered", "provider", name, "reason", reason)
}

// Entries returns a copy of the registered entries in dispatch order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Names returns the registered provider names in dispatch order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Name
	}
	return out
}

func (r *Registry) Len() int { return len(r.entries) }

// Skipped returns the providers that were configured but not registered.
func (r *Registry) Skipped() []Skipped {
	out := make([]Skipped, len(r.skipped))
	copy(out, r.skipped)
	return out
}

// Limiter returns the outbound rate limiter shared by the adapters.
func (r *Registry) Limiter() *ratelimit.Limiter { return r.limiter }
