// Package aggregate merges the payloads returned by several providers for
// the same request into one answer.
//
// Every strategy receives the successful payloads in registry order and
// returns a new value. Provider payloads are never modified; where a
// strategy fills in fields it works on a copy.
package aggregate

import (
	"marketbrain/internal/model"
)

// Source is one successful provider payload.
type Source[T any] struct {
	Provider string
	Data     T
}

// Strategy merges at least one source into a single payload.
type Strategy[T any] func(sources []Source[T]) T

var table = map[model.Operation]any{
	model.OpQuote:               Strategy[*model.Quote](Quotes),
	model.OpHistorical:          Strategy[[]model.HistoricalPrice](Historical),
	model.OpIntraday:            Strategy[[]model.HistoricalPrice](Intraday),
	model.OpOptionsChain:        Strategy[[]model.OptionQuote](Options),
	model.OpCompanyInfo:         Strategy[*model.CompanyInfo](CompanyInfo),
	model.OpFundamentals:        Strategy[model.Fundamentals](Fundamentals),
	model.OpEarnings:            Strategy[[]model.EarningsRecord](Earnings),
	model.OpDividends:           Strategy[[]model.Dividend](Dividends),
	model.OpNews:                Strategy[[]model.NewsArticle](News),
	model.OpEconomicEvents:      Strategy[[]model.EconomicEvent](EconomicEvents),
	model.OpEarningsCalendar:    Strategy[[]model.EarningsCalendarEntry](EarningsCalendar),
	model.OpEarningsTranscript:  Strategy[*model.EarningsTranscript](EarningsTranscript),
	model.OpTechnicalIndicators: Strategy[*model.TechnicalIndicator](TechnicalIndicators),
	model.OpEconomicData:        Strategy[*model.EconomicData](First[*model.EconomicData]),
	model.OpMarketStatus:        Strategy[model.MarketStatus](MarketStatus),
}

// For returns the strategy registered for op. Operations without an entry,
// or whose entry does not produce T, use First.
func For[T any](op model.Operation) Strategy[T] {
	if s, ok := table[op].(Strategy[T]); ok {
		return s
	}
	return First[T]
}

// Has reports whether op has a dedicated strategy.
func Has(op model.Operation) bool {
	_, ok := table[op]
	return ok
}

// First returns the first payload unchanged. It is the default strategy and
// the fallback used when a dedicated strategy fails.
func First[T any](sources []Source[T]) T {
	if len(sources) == 0 {
		var zero T
		return zero
	}
	return sources[0].Data
}

// concat joins list payloads in source order into a fresh slice.
func concat[E any](sources []Source[[]E]) []E {
	n := 0
	for _, s := range sources {
		n += len(s.Data)
	}
	out := make([]E, 0, n)
	for _, s := range sources {
		out = append(out, s.Data...)
	}
	return out
}

// dedupe keeps the first element seen for each key.
func dedupe[E any](items []E, key func(E) string) []E {
	seen := make(map[string]struct{}, len(items))
	out := items[:0:0]
	for _, it := range items {
		k := key(it)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}
