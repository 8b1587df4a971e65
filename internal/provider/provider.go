// Package provider defines the contract every market data adapter
// implements, plus the shared HTTP client and error types adapters use.
package provider

import (
	"context"
	"time"

	"marketbrain/internal/model"
)

// Provider is the capability set of a market data adapter. Each method maps
// one logical operation onto the upstream API and returns either a typed
// payload or an error whose text is the provider's own wording.
//
// Returning a nil payload with a nil error means the provider had no data
// for the request.
type Provider interface {
	// Name returns the provider identifier used in the registry and in
	// result provenance, e.g. "alpha_vantage".
	Name() string

	GetQuote(ctx context.Context, symbol string) (*model.Quote, error)
	GetHistorical(ctx context.Context, symbol string, start, end time.Time, interval string) ([]model.HistoricalPrice, error)
	GetIntraday(ctx context.Context, symbol, interval string) ([]model.HistoricalPrice, error)
	GetOptionsChain(ctx context.Context, symbol string, expiration *time.Time) ([]model.OptionQuote, error)
	GetCompanyInfo(ctx context.Context, symbol string) (*model.CompanyInfo, error)
	GetFundamentals(ctx context.Context, symbol string) (model.Fundamentals, error)
	GetEarnings(ctx context.Context, symbol string) ([]model.EarningsRecord, error)
	GetDividends(ctx context.Context, symbol string) ([]model.Dividend, error)
	GetNews(ctx context.Context, q model.NewsQuery) ([]model.NewsArticle, error)
	GetEconomicEvents(ctx context.Context, q model.EconomicEventsQuery) ([]model.EconomicEvent, error)
	GetEarningsCalendar(ctx context.Context, q model.EarningsCalendarQuery) ([]model.EarningsCalendarEntry, error)
	GetEarningsTranscript(ctx context.Context, symbol string, year, quarter int) (*model.EarningsTranscript, error)
	GetTechnicalIndicators(ctx context.Context, symbol, indicator, interval string) (*model.TechnicalIndicator, error)
	GetEconomicData(ctx context.Context, indicator string) (*model.EconomicData, error)
	GetMarketStatus(ctx context.Context) (model.MarketStatus, error)

	// Close releases idle connections held by the adapter.
	Close() error
}

// Unsupported can be embedded by adapters; every operation returns
// ErrUnsupported so an adapter only implements what its API offers.
type Unsupported struct{}

func (Unsupported) GetQuote(context.Context, string) (*model.Quote, error) {
	return nil, ErrUnsupported
}

func (Unsupported) GetHistorical(context.Context, string, time.Time, time.Time, string) ([]model.HistoricalPrice, error) {
	return nil, ErrUnsupported
}

func (Unsupported) GetIntraday(context.Context, string, string) ([]model.HistoricalPrice, error) {
	return nil, ErrUnsupported
}

func (Unsupported) GetOptionsChain(context.Context, string, *time.Time) ([]model.OptionQuote, error) {
	return nil, ErrUnsupported
}

func (Unsupported) GetCompanyInfo(context.Context, string) (*model.CompanyInfo, error) {
	return nil, ErrUnsupported
}

func (Unsupported) GetFundamentals(context.Context, string) (model.Fundamentals, error) {
	return nil, ErrUnsupported
}

func (Unsupported) GetEarnings(context.Context, string) ([]model.EarningsRecord, error) {
	return nil, ErrUnsupported
}

func (Unsupported) GetDividends(context.Context, string) ([]model.Dividend, error) {
	return nil, ErrUnsupported
}

func (Unsupported) GetNews(context.Context, model.NewsQuery) ([]model.NewsArticle, error) {
	return nil, ErrUnsupported
}

func (Unsupported) GetEconomicEvents(context.Context, model.EconomicEventsQuery) ([]model.EconomicEvent, error) {
	return nil, ErrUnsupported
}

func (Unsupported) GetEarningsCalendar(context.Context, model.EarningsCalendarQuery) ([]model.EarningsCalendarEntry, error) {
	return nil, ErrUnsupported
}

func (Unsupported) GetEarningsTranscript(context.Context, string, int, int) (*model.EarningsTranscript, error) {
	return nil, ErrUnsupported
}

func (Unsupported) GetTechnicalIndicators(context.Context, string, string, string) (*model.TechnicalIndicator, error) {
	return nil, ErrUnsupported
}

func (Unsupported) GetEconomicData(context.Context, string) (*model.EconomicData, error) {
	return nil, ErrUnsupported
}

func (Unsupported) GetMarketStatus(context.Context) (model.MarketStatus, error) {
	return nil, ErrUnsupported
}

func (Unsupported) Close() error { return nil }
