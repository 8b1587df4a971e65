package brain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketbrain/internal/aggregate"
	"marketbrain/internal/config"
	"marketbrain/internal/metrics"
	"marketbrain/internal/model"
	"marketbrain/internal/provider"
	"marketbrain/internal/registry"
	mock "marketbrain/internal/testutil"
)

var t0 = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBrain(t *testing.T, cfg Config, providers ...provider.Provider) (*Brain, *clock) {
	t.Helper()
	c := &clock{now: t0.Add(10 * time.Minute)}
	b := New(registry.New(providers...), cfg,
		WithLogger(discard()),
		WithClock(c.Now),
		WithMetrics(metrics.New(prometheus.NewRegistry())))
	return b, c
}

func quote(price string, at time.Time, provider string) *model.Quote {
	return &model.Quote{
		Symbol:    "AAPL",
		Price:     decimal.RequireFromString(price),
		Timestamp: at,
		Provider:  provider,
	}
}

func TestGetQuote_ThreeProviderScenario(t *testing.T) {
	t.Parallel()

	a := mock.NewQuoteProvider("A", nil, errors.New("429 Too Many Requests"))
	b := mock.NewQuoteProvider("B", quote("100", t0, "B"), nil)
	c := mock.NewQuoteProvider("C", quote("104", t0.Add(5*time.Minute), "C"), nil)

	brain, _ := newBrain(t, DefaultConfig(), a, b, c)

	res := brain.GetQuote(t.Context(), "AAPL")

	require.True(t, res.Success, res.Error)
	require.NotNil(t, res.Data)
	assert.True(t, res.Data.Price.Equal(decimal.NewFromInt(102)), "price = %s", res.Data.Price)
	assert.Equal(t, "C", res.Data.Provider, "most recent quote is primary")
	assert.Equal(t, []string{"B", "C"}, res.ProvidersUsed)
	assert.InDelta(t, 66.67, res.CoveragePercentage, 0.01)
	assert.True(t, brain.IsRateLimited("A"))
	assert.False(t, brain.IsRateLimited("B"))

	require.Len(t, res.ProviderResults, 3)
	assert.False(t, res.ProviderResults["A"].Success)
	assert.Equal(t, "429 Too Many Requests", res.ProviderResults["A"].Error)
	assert.True(t, res.ProviderResults["B"].Success)

	// Provider payloads keep their own prices.
	assert.True(t, res.ProviderResults["C"].Data.Price.Equal(decimal.NewFromInt(104)))
}

func TestGetQuote_CacheDeterminism(t *testing.T) {
	t.Parallel()

	p := mock.NewQuoteProvider("finnhub", quote("100", t0, "finnhub"), nil)
	brain, _ := newBrain(t, DefaultConfig(), p)

	first := brain.GetQuote(t.Context(), "AAPL")
	second := brain.GetQuote(t.Context(), "aapl ")

	assert.Same(t, first, second)
	assert.Equal(t, 1, p.Calls(model.OpQuote), "second call must not reach the adapter")
}

func TestGetQuote_CacheTTLExpiry(t *testing.T) {
	t.Parallel()

	p := mock.NewQuoteProvider("finnhub", quote("100", t0, "finnhub"), nil)
	brain, clk := newBrain(t, Config{EnableCaching: true, CacheTTL: time.Minute}, p)

	brain.GetQuote(t.Context(), "AAPL")
	clk.Advance(59 * time.Second)
	brain.GetQuote(t.Context(), "AAPL")
	assert.Equal(t, 1, p.Calls(model.OpQuote))

	clk.Advance(time.Second)
	brain.GetQuote(t.Context(), "AAPL")
	assert.Equal(t, 2, p.Calls(model.OpQuote), "expired entry must trigger a new dispatch")
}

func TestGetQuote_CachingDisabled(t *testing.T) {
	t.Parallel()

	p := mock.NewQuoteProvider("finnhub", quote("100", t0, "finnhub"), nil)
	brain, _ := newBrain(t, Config{EnableCaching: false, CacheTTL: time.Hour}, p)

	brain.GetQuote(t.Context(), "AAPL")
	brain.GetQuote(t.Context(), "AAPL")

	assert.Equal(t, 2, p.Calls(model.OpQuote))
}

func TestGetQuote_NoProviders(t *testing.T) {
	t.Parallel()

	brain, _ := newBrain(t, DefaultConfig())

	res := brain.GetQuote(t.Context(), "AAPL")

	assert.False(t, res.Success)
	assert.Equal(t, ErrNoProviders, res.Error)
	assert.Nil(t, res.Data)
	assert.Empty(t, res.ProviderResults)
	assert.Empty(t, res.ProvidersUsed)
	assert.Zero(t, res.CoveragePercentage)
}

func TestGetQuote_AllProvidersFail(t *testing.T) {
	t.Parallel()

	a := mock.NewQuoteProvider("A", nil, errors.New("symbol not found"))
	b := mock.NewQuoteProvider("B", nil, nil)
	brain, _ := newBrain(t, DefaultConfig(), a, b)

	res := brain.GetQuote(t.Context(), "ZZZZ")

	assert.False(t, res.Success)
	assert.Equal(t, ErrAllFailed, res.Error)
	assert.Nil(t, res.Data)
	assert.Zero(t, res.CoveragePercentage)
	require.Len(t, res.ProviderResults, 2)
	assert.Equal(t, "symbol not found", res.ProviderResults["A"].Error)
	assert.Equal(t, ErrNoDataReturned, res.ProviderResults["B"].Error)
	assert.False(t, brain.IsRateLimited("A"))

	// Failures are never cached.
	brain.GetQuote(t.Context(), "ZZZZ")
	assert.Equal(t, 2, a.Calls(model.OpQuote))
}

func TestGetQuote_ProviderPanicIsContained(t *testing.T) {
	t.Parallel()

	bad := &mock.MockProvider{
		NameValue: "bad",
		QuoteFunc: func(context.Context, string) (*model.Quote, error) {
			panic("nil map write")
		},
	}
	good := mock.NewQuoteProvider("good", quote("10", t0, "good"), nil)
	brain, _ := newBrain(t, DefaultConfig(), bad, good)

	res := brain.GetQuote(t.Context(), "AAPL")

	require.True(t, res.Success)
	assert.Equal(t, []string{"good"}, res.ProvidersUsed)
	assert.Contains(t, res.ProviderResults["bad"].Error, "nil map write")
	assert.InDelta(t, 50.0, res.CoveragePercentage, 0.001)
}

func TestFetch_AggregationPanicFallsBackToFirst(t *testing.T) {
	t.Parallel()

	boom := aggregate.Strategy[*model.Quote](func([]aggregate.Source[*model.Quote]) *model.Quote {
		panic("bad merge")
	})
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	brain := New(registry.New(
		mock.NewQuoteProvider("A", quote("1", t0, "A"), nil),
		mock.NewQuoteProvider("B", quote("2", t0, "B"), nil),
	), DefaultConfig(), WithLogger(discard()), WithMetrics(m), WithStrategy(model.OpQuote, boom))

	res := brain.GetQuote(t.Context(), "AAPL")

	require.True(t, res.Success)
	assert.Equal(t, "A", res.Data.Provider)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AggregationFallbacks.WithLabelValues("quote")))
}

func TestFetch_CallerCancellationDoesNotReachProviders(t *testing.T) {
	t.Parallel()

	p := &mock.MockProvider{
		NameValue: "p",
		QuoteFunc: func(ctx context.Context, symbol string) (*model.Quote, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return quote("1", t0, "p"), nil
		},
	}
	brain, _ := newBrain(t, DefaultConfig(), p)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	res := brain.GetQuote(ctx, "AAPL")
	assert.True(t, res.Success, res.Error)
}

func TestFetch_RateLimitedProviderIsStillDispatched(t *testing.T) {
	t.Parallel()

	limited := mock.NewQuoteProvider("av", nil, errors.New("Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day."))
	brain, _ := newBrain(t, Config{EnableCaching: false}, limited)

	brain.GetQuote(t.Context(), "AAPL")
	require.True(t, brain.IsRateLimited("av"))

	brain.GetQuote(t.Context(), "AAPL")
	assert.Equal(t, 2, limited.Calls(model.OpQuote))
}

func TestFetch_RateLimitCooldown(t *testing.T) {
	t.Parallel()

	limited := mock.NewQuoteProvider("av", nil, errors.New("quota exceeded"))
	brain, clk := newBrain(t, DefaultConfig(), limited)

	brain.GetQuote(t.Context(), "AAPL")
	require.True(t, brain.IsRateLimited("av"))

	clk.Advance(time.Hour + time.Second)
	assert.False(t, brain.IsRateLimited("av"))
}

func TestGetHistorical_MergesAndCachesPerParams(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	adj := decimal.NewNullDecimal(decimal.RequireFromString("184.1"))

	a := &mock.MockProvider{
		NameValue: "a",
		HistoricalFunc: func(_ context.Context, symbol string, start, end time.Time, interval string) ([]model.HistoricalPrice, error) {
			return []model.HistoricalPrice{{Symbol: symbol, Date: day, Close: decimal.NewFromInt(185)}}, nil
		},
	}
	b := &mock.MockProvider{
		NameValue: "b",
		HistoricalFunc: func(_ context.Context, symbol string, start, end time.Time, interval string) ([]model.HistoricalPrice, error) {
			assert.Equal(t, "1d", interval)
			return []model.HistoricalPrice{{Symbol: symbol, Date: day, Close: decimal.NewFromInt(186), AdjustedClose: adj}}, nil
		},
	}
	brain, _ := newBrain(t, DefaultConfig(), a, b)

	start, end := day, day.AddDate(0, 0, 7)
	res := brain.GetHistorical(t.Context(), "AAPL", start, end, "")

	require.True(t, res.Success)
	require.Len(t, res.Data, 1)
	assert.True(t, res.Data[0].AdjustedClose.Valid)
	assert.True(t, res.Data[0].Close.Equal(decimal.NewFromInt(185)))

	brain.GetHistorical(t.Context(), "AAPL", start, end, "1d")
	assert.Equal(t, 1, a.Calls(model.OpHistorical), "default interval shares the cache entry")

	brain.GetHistorical(t.Context(), "AAPL", start, end.AddDate(0, 0, 1), "1d")
	assert.Equal(t, 2, a.Calls(model.OpHistorical))
}

func TestGetMultipleQuotes(t *testing.T) {
	t.Parallel()

	p := &mock.MockProvider{
		NameValue: "p",
		QuoteFunc: func(_ context.Context, symbol string) (*model.Quote, error) {
			if symbol == "BAD" {
				return nil, errors.New("unknown symbol")
			}
			return &model.Quote{Symbol: symbol, Price: decimal.NewFromInt(1), Timestamp: t0}, nil
		},
	}
	brain, _ := newBrain(t, DefaultConfig(), p)

	got := brain.GetMultipleQuotes(t.Context(), []string{"AAPL", "msft", "BAD"})

	require.Len(t, got, 3)
	assert.True(t, got["AAPL"].Success)
	assert.Equal(t, "MSFT", got["msft"].Data.Symbol)
	assert.False(t, got["BAD"].Success)
}

func TestGetMultipleHistorical(t *testing.T) {
	t.Parallel()

	p := &mock.MockProvider{
		NameValue: "p",
		HistoricalFunc: func(_ context.Context, symbol string, start, end time.Time, interval string) ([]model.HistoricalPrice, error) {
			return []model.HistoricalPrice{{Symbol: symbol, Date: start}}, nil
		},
	}
	brain, _ := newBrain(t, DefaultConfig(), p)

	got := brain.GetMultipleHistorical(t.Context(), []string{"AAPL", "MSFT"}, t0, t0.AddDate(0, 1, 0), "1d")

	require.Len(t, got, 2)
	assert.Equal(t, "MSFT", got["MSFT"].Data[0].Symbol)
}

func TestOperations_DispatchToMatchingAdapterMethod(t *testing.T) {
	t.Parallel()

	p := &mock.MockProvider{
		NameValue: "p",
		IntradayFunc: func(_ context.Context, _, interval string) ([]model.HistoricalPrice, error) {
			assert.Equal(t, "5min", interval)
			return []model.HistoricalPrice{}, nil
		},
		OptionsChainFunc: func(_ context.Context, _ string, exp *time.Time) ([]model.OptionQuote, error) {
			return []model.OptionQuote{}, nil
		},
		CompanyInfoFunc: func(context.Context, string) (*model.CompanyInfo, error) {
			return &model.CompanyInfo{Name: "Apple"}, nil
		},
		FundamentalsFunc: func(context.Context, string) (model.Fundamentals, error) {
			return model.Fundamentals{"pe_ratio": 30.0}, nil
		},
		EarningsFunc: func(context.Context, string) ([]model.EarningsRecord, error) {
			return []model.EarningsRecord{{Period: "quarterly"}}, nil
		},
		DividendsFunc: func(context.Context, string) ([]model.Dividend, error) {
			return []model.Dividend{{Date: t0}}, nil
		},
		NewsFunc: func(_ context.Context, q model.NewsQuery) ([]model.NewsArticle, error) {
			assert.Equal(t, model.DefaultNewsLimit, q.Limit)
			return []model.NewsArticle{{Title: "x"}}, nil
		},
		EconomicEventsFunc: func(_ context.Context, q model.EconomicEventsQuery) ([]model.EconomicEvent, error) {
			assert.Equal(t, model.DefaultEconomicEventsLimit, q.Limit)
			assert.False(t, q.Start.IsZero())
			assert.Equal(t, 30*24*time.Hour, q.End.Sub(q.Start))
			return []model.EconomicEvent{{EventName: "CPI"}}, nil
		},
		EarningsCalendarFunc: func(_ context.Context, q model.EarningsCalendarQuery) ([]model.EarningsCalendarEntry, error) {
			return []model.EarningsCalendarEntry{{Symbol: "AAPL"}}, nil
		},
		EarningsTranscriptFunc: func(_ context.Context, _ string, year, quarter int) (*model.EarningsTranscript, error) {
			return &model.EarningsTranscript{Year: year, Quarter: quarter, Transcript: "hello"}, nil
		},
		TechnicalIndicatorsFunc: func(_ context.Context, _, indicator, interval string) (*model.TechnicalIndicator, error) {
			assert.Equal(t, "daily", interval)
			return &model.TechnicalIndicator{Indicator: indicator}, nil
		},
		EconomicDataFunc: func(_ context.Context, indicator string) (*model.EconomicData, error) {
			return &model.EconomicData{Indicator: indicator}, nil
		},
		MarketStatusFunc: func(context.Context) (model.MarketStatus, error) {
			return model.MarketStatus{"isOpen": true}, nil
		},
	}
	brain, _ := newBrain(t, DefaultConfig(), p)
	ctx := t.Context()

	assert.True(t, brain.GetIntraday(ctx, "AAPL", "").Success, "empty slice is data")
	assert.True(t, brain.GetOptionsChain(ctx, "AAPL", nil).Success)
	assert.Equal(t, "Apple", brain.GetCompanyInfo(ctx, "AAPL").Data.Name)
	assert.Equal(t, 30.0, brain.GetFundamentals(ctx, "AAPL").Data["pe_ratio"])
	assert.Len(t, brain.GetEarnings(ctx, "AAPL").Data, 1)
	assert.Len(t, brain.GetDividends(ctx, "AAPL").Data, 1)
	assert.Len(t, brain.GetNews(ctx, model.NewsQuery{Symbol: "AAPL"}).Data, 1)
	assert.Len(t, brain.GetEconomicEvents(ctx, model.EconomicEventsQuery{}).Data, 1)
	assert.Len(t, brain.GetEarningsCalendar(ctx, model.EarningsCalendarQuery{}).Data, 1)
	assert.Equal(t, 3, brain.GetEarningsTranscript(ctx, "AAPL", 2024, 3).Data.Quarter)
	assert.Equal(t, "RSI", brain.GetTechnicalIndicators(ctx, "AAPL", "rsi", "").Data.Indicator)
	assert.Equal(t, "CPI", brain.GetEconomicData(ctx, "cpi").Data.Indicator)
	assert.Equal(t, true, brain.GetMarketStatus(ctx).Data["isOpen"])

	for _, op := range model.All() {
		if op == model.OpQuote || op == model.OpHistorical {
			continue
		}
		assert.Equalf(t, 1, p.Calls(op), "calls for %s", op)
	}
}

func TestFetch_UnsupportedOperationFails(t *testing.T) {
	t.Parallel()

	brain, _ := newBrain(t, DefaultConfig(), &mock.MockProvider{NameValue: "p"})

	res := brain.GetEarningsTranscript(t.Context(), "AAPL", 2024, 1)

	assert.False(t, res.Success)
	assert.Equal(t, provider.ErrUnsupported.Error(), res.ProviderResults["p"].Error)
}

func TestClose_SwallowsAdapterErrors(t *testing.T) {
	t.Parallel()

	closed := make(chan string, 3)
	mk := func(name string, err error) *mock.MockProvider {
		return &mock.MockProvider{NameValue: name, CloseFunc: func() error {
			closed <- name
			return err
		}}
	}
	brain, _ := newBrain(t, DefaultConfig(),
		mk("a", errors.New("boom")),
		&mock.MockProvider{NameValue: "b", CloseFunc: func() error { panic("close panic") }},
		mk("c", nil),
	)

	require.NotPanics(t, brain.Close)
	close(closed)

	var names []string
	for n := range closed {
		names = append(names, n)
	}
	assert.Equal(t, []string{"a", "c"}, names)
}

func TestClearCache(t *testing.T) {
	t.Parallel()

	p := mock.NewQuoteProvider("p", quote("1", t0, "p"), nil)
	brain, _ := newBrain(t, DefaultConfig(), p)

	brain.GetQuote(t.Context(), "AAPL")
	brain.ClearCache()
	brain.GetQuote(t.Context(), "AAPL")

	assert.Equal(t, 2, p.Calls(model.OpQuote))
}

func TestProviderStatus(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Providers: map[string]config.ProviderConfig{
		"fast":  {Enabled: true, APIKey: "k", Priority: 1},
		"slow":  {Enabled: true, APIKey: "k", Priority: 2},
		"nokey": {Enabled: true, Priority: 1},
	}}
	factory := func(name string, _ config.ProviderConfig, _ registry.Deps) (provider.Provider, error) {
		if name == "fast" {
			return mock.NewQuoteProvider(name, nil, errors.New("HTTP 429")), nil
		}
		return mock.NewQuoteProvider(name, quote("1", t0, name), nil), nil
	}
	reg := registry.FromConfig(cfg, map[string]registry.Factory{"fast": factory, "slow": factory, "nokey": factory}, discard())
	brain := New(reg, DefaultConfig(), WithLogger(discard()))

	assert.Equal(t, []string{"fast", "slow"}, brain.GetAvailableProviders())
	require.NoError(t, brain.Initialize(t.Context()))

	brain.GetQuote(t.Context(), "AAPL")
	status := brain.GetProviderStatus()

	require.Len(t, status, 3)
	assert.True(t, status["fast"].Available)
	assert.True(t, status["fast"].RateLimited)
	assert.NotNil(t, status["fast"].RateLimitedSince)
	assert.Equal(t, 1, status["fast"].Priority)
	assert.False(t, status["slow"].RateLimited)
	assert.False(t, status["nokey"].Available)
	assert.Equal(t, registry.ReasonMissingCredential, status["nokey"].Reason)
}

func TestCoverage(t *testing.T) {
	t.Parallel()

	results := map[string]ProviderResult[*model.Quote]{
		"a": {Success: true, Data: &model.Quote{}},
		"b": {Success: true, Data: &model.Quote{}},
		"c": {Success: false, Error: "x"},
	}
	r := newResult[*model.Quote](nil, nil, "", results, t0)
	assert.InDelta(t, 66.666, r.CoveragePercentage, 0.001)

	empty := newResult[*model.Quote](nil, nil, ErrNoProviders, nil, t0)
	assert.Zero(t, empty.CoveragePercentage)
	assert.False(t, empty.Success)
}

func TestIsNil(t *testing.T) {
	t.Parallel()

	var q *model.Quote
	var s []model.Dividend
	var m model.Fundamentals

	assert.True(t, isNil(q))
	assert.True(t, isNil(s))
	assert.True(t, isNil(m))
	assert.False(t, isNil([]model.Dividend{}))
	assert.False(t, isNil(model.Fundamentals{}))
	assert.False(t, isNil(&model.Quote{}))
}

func TestAwait_DeadlineReturnsBeforeSlowProvider(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	p := &mock.MockProvider{
		NameValue: "slow",
		QuoteFunc: func(context.Context, string) (*model.Quote, error) {
			<-release
			return quote("1", t0, "slow"), nil
		},
	}
	brain, _ := newBrain(t, Config{}, p)
	defer close(release)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := Await(ctx, func(ctx context.Context) *Result[*model.Quote] {
		return brain.GetQuote(ctx, "AAPL")
	})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, res)
	assert.Less(t, time.Since(start), time.Second)
	// The provider call was launched and is left running.
	assert.Eventually(t, func() bool { return p.Calls(model.OpQuote) == 1 }, time.Second, 5*time.Millisecond)
}

func TestAwait_ReturnsResult(t *testing.T) {
	t.Parallel()

	brain, _ := newBrain(t, Config{}, mock.NewQuoteProvider("p", quote("5", t0, "p"), nil))

	res, err := Await(t.Context(), func(ctx context.Context) *Result[*model.Quote] {
		return brain.GetQuote(ctx, "AAPL")
	})

	require.NoError(t, err)
	require.True(t, res.Success)
	assert.True(t, res.Data.Price.Equal(decimal.NewFromInt(5)))
}

func TestResetRateLimit(t *testing.T) {
	t.Parallel()

	brain, _ := newBrain(t, Config{}, mock.NewQuoteProvider("p", nil, errors.New("429 Too Many Requests")))
	brain.GetQuote(t.Context(), "AAPL")
	require.True(t, brain.IsRateLimited("p"))

	assert.True(t, brain.ResetRateLimit("p"))
	assert.False(t, brain.IsRateLimited("p"))
	assert.False(t, brain.GetProviderStatus()["p"].RateLimited)
	assert.False(t, brain.ResetRateLimit("unknown"))
}
