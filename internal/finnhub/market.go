package finnhub

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"marketbrain/internal/model"
	"marketbrain/internal/provider"
)

type quoteResponse struct {
	Current       *float64 `json:"c"`
	Change        *float64 `json:"d"`
	ChangePercent *float64 `json:"dp"`
	High          *float64 `json:"h"`
	Low           *float64 `json:"l"`
	Open          *float64 `json:"o"`
	PreviousClose *float64 `json:"pc"`
	Time          int64    `json:"t"`
}

// GetQuote returns the real-time quote. Finnhub answers unknown symbols
// with an all-zero quote, which is reported as no data.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	var r quoteResponse
	if err := c.get(ctx, "/quote", map[string]string{"symbol": symbol}, &r); err != nil {
		return nil, err
	}
	if r.Current == nil || (*r.Current == 0 && r.Time == 0) {
		return nil, nil
	}

	ts := c.now()
	if r.Time > 0 {
		ts = time.Unix(r.Time, 0).UTC()
	}
	return &model.Quote{
		Symbol:        symbol,
		Price:         toDecimal(r.Current),
		Change:        toDecimal(r.Change),
		ChangePercent: toDecimal(r.ChangePercent),
		Open:          nullDecimal(r.Open),
		High:          nullDecimal(r.High),
		Low:           nullDecimal(r.Low),
		PreviousClose: nullDecimal(r.PreviousClose),
		DayHigh:       nullDecimal(r.High),
		DayLow:        nullDecimal(r.Low),
		Timestamp:     ts,
		Provider:      Name,
	}, nil
}

// Candle resolutions per canonical interval.
var resolutions = map[string]string{
	"1min":    "1",
	"5min":    "5",
	"15min":   "15",
	"30min":   "30",
	"60min":   "60",
	"daily":   "D",
	"weekly":  "W",
	"monthly": "M",
}

// candleSeries is the column-oriented /stock/candle payload.
type candleSeries struct {
	Status string    `json:"s"`
	Close  []float64 `json:"c"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Open   []float64 `json:"o"`
	Volume []float64 `json:"v"`
	Time   []int64   `json:"t"`
}

func (c *Client) candles(ctx context.Context, symbol, resolution string, from, to time.Time) ([]model.HistoricalPrice, error) {
	var r candleSeries
	err := c.get(ctx, "/stock/candle", map[string]string{
		"symbol":     symbol,
		"resolution": resolution,
		"from":       strconv.FormatInt(from.Unix(), 10),
		"to":         strconv.FormatInt(to.Unix(), 10),
	}, &r)
	if err != nil {
		return nil, err
	}
	if r.Status != "ok" {
		return nil, nil
	}

	n := min(len(r.Time), len(r.Open), len(r.High), len(r.Low), len(r.Close), len(r.Volume))
	prices := make([]model.HistoricalPrice, 0, n)
	for i := range n {
		prices = append(prices, model.HistoricalPrice{
			Symbol:   symbol,
			Date:     time.Unix(r.Time[i], 0).UTC(),
			Open:     decimal.NewFromFloat(r.Open[i]),
			High:     decimal.NewFromFloat(r.High[i]),
			Low:      decimal.NewFromFloat(r.Low[i]),
			Close:    decimal.NewFromFloat(r.Close[i]),
			Volume:   int64(r.Volume[i]),
			Provider: Name,
		})
	}
	return prices, nil
}

// Default look-back windows when the caller leaves the start open.
const (
	historicalLookback = 365 * 24 * time.Hour
	intradayLookback   = 24 * time.Hour
)

// GetHistorical returns candles between start and end. Daily candles are
// truncated to their UTC date.
func (c *Client) GetHistorical(ctx context.Context, symbol string, start, end time.Time, interval string) ([]model.HistoricalPrice, error) {
	canonical := model.NormalizeInterval(interval)
	resolution, ok := resolutions[canonical]
	if !ok {
		return nil, provider.NewValidationError(Name, fmt.Sprintf("unsupported historical interval %q", interval))
	}
	if end.IsZero() {
		end = c.now()
	}
	if start.IsZero() {
		start = end.Add(-historicalLookback)
	}
	// Include the whole end day.
	end = model.Day(end).Add(24*time.Hour - time.Second)

	prices, err := c.candles(ctx, symbol, resolution, model.Day(start), end)
	if err != nil || prices == nil {
		return prices, err
	}
	if canonical == "daily" || canonical == "weekly" || canonical == "monthly" {
		for i := range prices {
			prices[i].Date = model.Day(prices[i].Date)
		}
	}
	return prices, nil
}

// GetIntraday returns the last day of candles at the given resolution.
func (c *Client) GetIntraday(ctx context.Context, symbol, interval string) ([]model.HistoricalPrice, error) {
	canonical := model.NormalizeInterval(interval)
	resolution, ok := resolutions[canonical]
	if !ok || !strings.HasSuffix(canonical, "min") {
		return nil, provider.NewValidationError(Name, fmt.Sprintf("unsupported intraday interval %q", interval))
	}
	end := c.now()
	return c.candles(ctx, symbol, resolution, end.Add(-intradayLookback), end)
}

// Indicator parameters sent with every /indicator request.
const (
	indicatorTimePeriod = "20"
	indicatorLookback   = 365 * 24 * time.Hour
)

// GetTechnicalIndicators returns one indicator computed by Finnhub over the
// last year of candles.
func (c *Client) GetTechnicalIndicators(ctx context.Context, symbol, indicator, interval string) (*model.TechnicalIndicator, error) {
	canonical := model.NormalizeInterval(interval)
	resolution, ok := resolutions[canonical]
	if !ok {
		return nil, provider.NewValidationError(Name, fmt.Sprintf("unsupported indicator interval %q", interval))
	}
	end := c.now()

	var raw map[string]any
	err := c.get(ctx, "/indicator", map[string]string{
		"symbol":     symbol,
		"resolution": resolution,
		"from":       strconv.FormatInt(end.Add(-indicatorLookback).Unix(), 10),
		"to":         strconv.FormatInt(end.Unix(), 10),
		"indicator":  strings.ToLower(indicator),
		"timeperiod": indicatorTimePeriod,
	}, &raw)
	if err != nil {
		return nil, err
	}
	if raw["s"] != "ok" {
		return nil, nil
	}

	// The indicator arrives as extra columns next to the candles, named
	// after its outputs (sma, or macd/macdSignal/macdHist).

	stamps, _ := raw["t"].([]any)
	series := make(map[string][]any)
	for k, v := range raw {
		switch k {
		case "s", "t", "c", "h", "l", "o", "v":
			continue
		}
		if col, ok := v.([]any); ok {
			series[k] = col
		}
	}
	if len(series) == 0 {
		return nil, nil
	}

	values := make([]model.IndicatorValue, 0, len(stamps))
	for i, s := range stamps {
		sec, ok := s.(float64)
		if !ok {
			continue
		}
		v := model.IndicatorValue{
			Timestamp: time.Unix(int64(sec), 0).UTC(),
			Values:    make(map[string]decimal.Decimal, len(series)),
		}
		for name, col := range series {
			if i < len(col) {
				if f, ok := col[i].(float64); ok {
					v.Values[strings.ToUpper(name)] = decimal.NewFromFloat(f)
				}
			}
		}
		values = append(values, v)
	}

	return &model.TechnicalIndicator{
		Symbol:    symbol,
		Indicator: strings.ToUpper(indicator),
		Interval:  canonical,
		Values:    values,
		Provider:  Name,
	}, nil
}

type marketStatusResponse struct {
	Exchange string  `json:"exchange"`
	Holiday  *string `json:"holiday"`
	IsOpen   bool    `json:"isOpen"`
	Session  *string `json:"session"`
	Timezone string  `json:"timezone"`
	Time     int64   `json:"t"`
}

// GetMarketStatus reports whether the US exchanges are open.
func (c *Client) GetMarketStatus(ctx context.Context) (model.MarketStatus, error) {
	var r marketStatusResponse
	if err := c.get(ctx, "/stock/market-status", map[string]string{"exchange": "US"}, &r); err != nil {
		return nil, err
	}
	if r.Exchange == "" {
		return nil, nil
	}

	status := model.MarketStatus{
		"exchange": r.Exchange,
		"is_open":  r.IsOpen,
		"timezone": r.Timezone,
	}
	if r.Session != nil {
		status["session"] = *r.Session
	}
	if r.Holiday != nil {
		status["holiday"] = *r.Holiday
	}
	if r.Time > 0 {
		status["as_of"] = time.Unix(r.Time, 0).UTC()
	}
	return status, nil
}
