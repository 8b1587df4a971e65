// Package testutil provides a configurable provider.Provider for tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"marketbrain/internal/model"
	"marketbrain/internal/provider"
)

// MockProvider is a mock implementation of the Provider interface for
// testing. Each operation delegates to its func field; an unset field
// returns provider.ErrUnsupported. Calls are counted per operation.
type MockProvider struct {
	NameValue string

	QuoteFunc               func(ctx context.Context, symbol string) (*model.Quote, error)
	HistoricalFunc          func(ctx context.Context, symbol string, start, end time.Time, interval string) ([]model.HistoricalPrice, error)
	IntradayFunc            func(ctx context.Context, symbol, interval string) ([]model.HistoricalPrice, error)
	OptionsChainFunc        func(ctx context.Context, symbol string, expiration *time.Time) ([]model.OptionQuote, error)
	CompanyInfoFunc         func(ctx context.Context, symbol string) (*model.CompanyInfo, error)
	FundamentalsFunc        func(ctx context.Context, symbol string) (model.Fundamentals, error)
	EarningsFunc            func(ctx context.Context, symbol string) ([]model.EarningsRecord, error)
	DividendsFunc           func(ctx context.Context, symbol string) ([]model.Dividend, error)
	NewsFunc                func(ctx context.Context, q model.NewsQuery) ([]model.NewsArticle, error)
	EconomicEventsFunc      func(ctx context.Context, q model.EconomicEventsQuery) ([]model.EconomicEvent, error)
	EarningsCalendarFunc    func(ctx context.Context, q model.EarningsCalendarQuery) ([]model.EarningsCalendarEntry, error)
	EarningsTranscriptFunc  func(ctx context.Context, symbol string, year, quarter int) (*model.EarningsTranscript, error)
	TechnicalIndicatorsFunc func(ctx context.Context, symbol, indicator, interval string) (*model.TechnicalIndicator, error)
	EconomicDataFunc        func(ctx context.Context, indicator string) (*model.EconomicData, error)
	MarketStatusFunc        func(ctx context.Context) (model.MarketStatus, error)
	CloseFunc               func() error

	mu    sync.Mutex
	calls map[model.Operation]int
}

func (m *MockProvider) record(op model.Operation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[model.Operation]int)
	}
	m.calls[op]++
}

// Calls returns how many times op was invoked.
func (m *MockProvider) Calls(op model.Operation) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// TotalCalls returns the number of data operations invoked.
func (m *MockProvider) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

// Name implements the Provider interface
func (m *MockProvider) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return "mock"
}

func (m *MockProvider) GetQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	m.record(model.OpQuote)
	if m.QuoteFunc != nil {
		return m.QuoteFunc(ctx, symbol)
	}
	return nil, provider.ErrUnsupported
}

func (m *MockProvider) GetHistorical(ctx context.Context, symbol string, start, end time.Time, interval string) ([]model.HistoricalPrice, error) {
	m.record(model.OpHistorical)
	if m.HistoricalFunc != nil {
		return m.HistoricalFunc(ctx, symbol, start, end, interval)
	}
	return nil, provider.ErrUnsupported
}

func (m *MockProvider) GetIntraday(ctx context.Context, symbol, interval string) ([]model.HistoricalPrice, error) {
	m.record(model.OpIntraday)
	if m.IntradayFunc != nil {
		return m.IntradayFunc(ctx, symbol, interval)
	}
	return nil, provider.ErrUnsupported
}

func (m *MockProvider) GetOptionsChain(ctx context.Context, symbol string, expiration *time.Time) ([]model.OptionQuote, error) {
	m.record(model.OpOptionsChain)
	if m.OptionsChainFunc != nil {
		return m.OptionsChainFunc(ctx, symbol, expiration)
	}
	return nil, provider.ErrUnsupported
}

func (m *MockProvider) GetCompanyInfo(ctx context.Context, symbol string) (*model.CompanyInfo, error) {
	m.record(model.OpCompanyInfo)
	if m.CompanyInfoFunc != nil {
		return m.CompanyInfoFunc(ctx, symbol)
	}
	return nil, provider.ErrUnsupported
}

func (m *MockProvider) GetFundamentals(ctx context.Context, symbol string) (model.Fundamentals, error) {
	m.record(model.OpFundamentals)
	if m.FundamentalsFunc != nil {
		return m.FundamentalsFunc(ctx, symbol)
	}
	return nil, provider.ErrUnsupported
}

func (m *MockProvider) GetEarnings(ctx context.Context, symbol string) ([]model.EarningsRecord, error) {
	m.record(model.OpEarnings)
	if m.EarningsFunc != nil {
		return m.EarningsFunc(ctx, symbol)
	}
	return nil, provider.ErrUnsupported
}

func (m *MockProvider) GetDividends(ctx context.Context, symbol string) ([]model.Dividend, error) {
	m.record(model.OpDividends)
	if m.DividendsFunc != nil {
		return m.DividendsFunc(ctx, symbol)
	}
	return nil, provider.ErrUnsupported
}

func (m *MockProvider) GetNews(ctx context.Context, q model.NewsQuery) ([]model.NewsArticle, error) {
	m.record(model.OpNews)
	if m.NewsFunc != nil {
		return m.NewsFunc(ctx, q)
	}
	return nil, provider.ErrUnsupported
}

func (m *MockProvider) GetEconomicEvents(ctx context.Context, q model.EconomicEventsQuery) ([]model.EconomicEvent, error) {
	m.record(model.OpEconomicEvents)
	if m.EconomicEventsFunc != nil {
		return m.EconomicEventsFunc(ctx, q)
	}
	return nil, provider.ErrUnsupported
}

func (m *MockProvider) GetEarningsCalendar(ctx context.Context, q model.EarningsCalendarQuery) ([]model.EarningsCalendarEntry, error) {
	m.record(model.OpEarningsCalendar)
	if m.EarningsCalendarFunc != nil {
		return m.EarningsCalendarFunc(ctx, q)
	}
	return nil, provider.ErrUnsupported
}

func (m *MockProvider) GetEarningsTranscript(ctx context.Context, symbol string, year, quarter int) (*model.EarningsTranscript, error) {
	m.record(model.OpEarningsTranscript)
	if m.EarningsTranscriptFunc != nil {
		return m.EarningsTranscriptFunc(ctx, symbol, year, quarter)
	}
	return nil, provider.ErrUnsupported
}

func (m *MockProvider) GetTechnicalIndicators(ctx context.Context, symbol, indicator, interval string) (*model.TechnicalIndicator, error) {
	m.record(model.OpTechnicalIndicators)
	if m.TechnicalIndicatorsFunc != nil {
		return m.TechnicalIndicatorsFunc(ctx, symbol, indicator, interval)
	}
	return nil, provider.ErrUnsupported
}

func (m *MockProvider) GetEconomicData(ctx context.Context, indicator string) (*model.EconomicData, error) {
	m.record(model.OpEconomicData)
	if m.EconomicDataFunc != nil {
		return m.EconomicDataFunc(ctx, indicator)
	}
	return nil, provider.ErrUnsupported
}

func (m *MockProvider) GetMarketStatus(ctx context.Context) (model.MarketStatus, error) {
	m.record(model.OpMarketStatus)
	if m.MarketStatusFunc != nil {
		return m.MarketStatusFunc(ctx)
	}
	return nil, provider.ErrUnsupported
}

// Close implements the Provider interface
func (m *MockProvider) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// NewQuoteProvider creates a simple mock provider that returns the given
// quote and error from GetQuote.
func NewQuoteProvider(name string, quote *model.Quote, err error) *MockProvider {
	return &MockProvider{
		NameValue: name,
		QuoteFunc: func(ctx context.Context, symbol string) (*model.Quote, error) {
			return quote, err
		},
	}
}
