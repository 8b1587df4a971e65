package brain

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/sourcegraph/conc/iter"

	"marketbrain/internal/cache"
	"marketbrain/internal/model"
	"marketbrain/internal/provider"
)

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// GetQuote returns the merged real-time quote for symbol.
func (b *Brain) GetQuote(ctx context.Context, symbol string) *Result[*model.Quote] {
	symbol = normalizeSymbol(symbol)
	return fetch(ctx, b, model.OpQuote, cache.Params{"symbol": symbol},
		func(ctx context.Context, p provider.Provider) (*model.Quote, error) {
			return p.GetQuote(ctx, symbol)
		})
}

// GetHistorical returns daily bars for symbol between start and end. An
// empty interval means daily.
func (b *Brain) GetHistorical(ctx context.Context, symbol string, start, end time.Time, interval string) *Result[[]model.HistoricalPrice] {
	symbol = normalizeSymbol(symbol)
	if interval == "" {
		interval = model.DefaultHistoricalInterval
	}
	params := cache.Params{
		"symbol":     symbol,
		"start_date": model.DateKey(start),
		"end_date":   model.DateKey(end),
		"interval":   interval,
	}
	return fetch(ctx, b, model.OpHistorical, params,
		func(ctx context.Context, p provider.Provider) ([]model.HistoricalPrice, error) {
			return p.GetHistorical(ctx, symbol, start, end, interval)
		})
}

// GetIntraday returns today's bars for symbol. An empty interval means
// five minutes.
func (b *Brain) GetIntraday(ctx context.Context, symbol, interval string) *Result[[]model.HistoricalPrice] {
	symbol = normalizeSymbol(symbol)
	if interval == "" {
		interval = model.DefaultIntradayInterval
	}
	return fetch(ctx, b, model.OpIntraday, cache.Params{"symbol": symbol, "interval": interval},
		func(ctx context.Context, p provider.Provider) ([]model.HistoricalPrice, error) {
			return p.GetIntraday(ctx, symbol, interval)
		})
}

// GetOptionsChain returns the options chain for symbol, optionally limited
// to one expiration date.
func (b *Brain) GetOptionsChain(ctx context.Context, symbol string, expiration *time.Time) *Result[[]model.OptionQuote] {
	symbol = normalizeSymbol(symbol)
	params := cache.Params{"symbol": symbol, "expiration": ""}
	if expiration != nil {
		params["expiration"] = model.DateKey(*expiration)
	}
	return fetch(ctx, b, model.OpOptionsChain, params,
		func(ctx context.Context, p provider.Provider) ([]model.OptionQuote, error) {
			return p.GetOptionsChain(ctx, symbol, expiration)
		})
}

func (b *Brain) GetCompanyInfo(ctx context.Context, symbol string) *Result[*model.CompanyInfo] {
	symbol = normalizeSymbol(symbol)
	return fetch(ctx, b, model.OpCompanyInfo, cache.Params{"symbol": symbol},
		func(ctx context.Context, p provider.Provider) (*model.CompanyInfo, error) {
			return p.GetCompanyInfo(ctx, symbol)
		})
}

func (b *Brain) GetFundamentals(ctx context.Context, symbol string) *Result[model.Fundamentals] {
	symbol = normalizeSymbol(symbol)
	return fetch(ctx, b, model.OpFundamentals, cache.Params{"symbol": symbol},
		func(ctx context.Context, p provider.Provider) (model.Fundamentals, error) {
			return p.GetFundamentals(ctx, symbol)
		})
}

func (b *Brain) GetEarnings(ctx context.Context, symbol string) *Result[[]model.EarningsRecord] {
	symbol = normalizeSymbol(symbol)
	return fetch(ctx, b, model.OpEarnings, cache.Params{"symbol": symbol},
		func(ctx context.Context, p provider.Provider) ([]model.EarningsRecord, error) {
			return p.GetEarnings(ctx, symbol)
		})
}

func (b *Brain) GetDividends(ctx context.Context, symbol string) *Result[[]model.Dividend] {
	symbol = normalizeSymbol(symbol)
	return fetch(ctx, b, model.OpDividends, cache.Params{"symbol": symbol},
		func(ctx context.Context, p provider.Provider) ([]model.Dividend, error) {
			return p.GetDividends(ctx, symbol)
		})
}

// GetNews returns recent articles for q.Symbol, or general market news
// when the symbol is empty.
func (b *Brain) GetNews(ctx context.Context, q model.NewsQuery) *Result[[]model.NewsArticle] {
	q = q.WithDefaults()
	q.Symbol = normalizeSymbol(q.Symbol)
	params := cache.Params{"symbol": q.Symbol, "limit": strconv.Itoa(q.Limit)}
	return fetch(ctx, b, model.OpNews, params,
		func(ctx context.Context, p provider.Provider) ([]model.NewsArticle, error) {
			return p.GetNews(ctx, q)
		})
}

// GetEconomicEvents returns the economic calendar. Without dates the window
// runs from today for the next 30 days.
func (b *Brain) GetEconomicEvents(ctx context.Context, q model.EconomicEventsQuery) *Result[[]model.EconomicEvent] {
	q = q.WithDefaults(b.now())
	params := cache.Params{
		"countries":  strings.Join(q.Countries, ","),
		"importance": strconv.Itoa(q.Importance),
		"start_date": model.DateKey(q.Start),
		"end_date":   model.DateKey(q.End),
		"limit":      strconv.Itoa(q.Limit),
	}
	return fetch(ctx, b, model.OpEconomicEvents, params,
		func(ctx context.Context, p provider.Provider) ([]model.EconomicEvent, error) {
			return p.GetEconomicEvents(ctx, q)
		})
}

// GetEarningsCalendar returns upcoming earnings releases.
func (b *Brain) GetEarningsCalendar(ctx context.Context, q model.EarningsCalendarQuery) *Result[[]model.EarningsCalendarEntry] {
	q = q.WithDefaults(b.now())
	q.Symbol = normalizeSymbol(q.Symbol)
	params := cache.Params{
		"symbol":     q.Symbol,
		"start_date": model.DateKey(q.Start),
		"end_date":   model.DateKey(q.End),
		"limit":      strconv.Itoa(q.Limit),
	}
	return fetch(ctx, b, model.OpEarningsCalendar, params,
		func(ctx context.Context, p provider.Provider) ([]model.EarningsCalendarEntry, error) {
			return p.GetEarningsCalendar(ctx, q)
		})
}

func (b *Brain) GetEarningsTranscript(ctx context.Context, symbol string, year, quarter int) *Result[*model.EarningsTranscript] {
	symbol = normalizeSymbol(symbol)
	params := cache.Params{
		"symbol":  symbol,
		"year":    strconv.Itoa(year),
		"quarter": strconv.Itoa(quarter),
	}
	return fetch(ctx, b, model.OpEarningsTranscript, params,
		func(ctx context.Context, p provider.Provider) (*model.EarningsTranscript, error) {
			return p.GetEarningsTranscript(ctx, symbol, year, quarter)
		})
}

// GetTechnicalIndicators returns an indicator series such as SMA or RSI.
// An empty interval means daily.
func (b *Brain) GetTechnicalIndicators(ctx context.Context, symbol, indicator, interval string) *Result[*model.TechnicalIndicator] {
	symbol = normalizeSymbol(symbol)
	indicator = strings.ToUpper(strings.TrimSpace(indicator))
	if interval == "" {
		interval = model.DefaultIndicatorInterval
	}
	params := cache.Params{"symbol": symbol, "indicator": indicator, "interval": interval}
	return fetch(ctx, b, model.OpTechnicalIndicators, params,
		func(ctx context.Context, p provider.Provider) (*model.TechnicalIndicator, error) {
			return p.GetTechnicalIndicators(ctx, symbol, indicator, interval)
		})
}

// GetEconomicData returns a macroeconomic series such as REAL_GDP or CPI.
func (b *Brain) GetEconomicData(ctx context.Context, indicator string) *Result[*model.EconomicData] {
	indicator = strings.ToUpper(strings.TrimSpace(indicator))
	return fetch(ctx, b, model.OpEconomicData, cache.Params{"indicator": indicator},
		func(ctx context.Context, p provider.Provider) (*model.EconomicData, error) {
			return p.GetEconomicData(ctx, indicator)
		})
}

func (b *Brain) GetMarketStatus(ctx context.Context) *Result[model.MarketStatus] {
	return fetch(ctx, b, model.OpMarketStatus, cache.Params{},
		func(ctx context.Context, p provider.Provider) (model.MarketStatus, error) {
			return p.GetMarketStatus(ctx)
		})
}

// GetMultipleQuotes fetches quotes for every symbol concurrently. The map is
// keyed by the symbols as given.
func (b *Brain) GetMultipleQuotes(ctx context.Context, symbols []string) map[string]*Result[*model.Quote] {
	return batch(symbols, func(symbol string) *Result[*model.Quote] {
		return b.GetQuote(ctx, symbol)
	})
}

// GetMultipleHistorical fetches historical bars for every symbol
// concurrently.
func (b *Brain) GetMultipleHistorical(ctx context.Context, symbols []string, start, end time.Time, interval string) map[string]*Result[[]model.HistoricalPrice] {
	return batch(symbols, func(symbol string) *Result[[]model.HistoricalPrice] {
		return b.GetHistorical(ctx, symbol, start, end, interval)
	})
}

func batch[R any](keys []string, fn func(string) R) map[string]R {
	mapper := iter.Mapper[string, R]{MaxGoroutines: len(keys)}
	results := mapper.Map(keys, func(k *string) R { return fn(*k) })

	out := make(map[string]R, len(keys))
	for i, k := range keys {
		out[k] = results[i]
	}
	return out
}
