package alphavantage

import (
	"context"
	"fmt"
	"slices"
	"time"

	"marketbrain/internal/model"
	"marketbrain/internal/provider"
)

// globalQuote is the "Global Quote" object of GLOBAL_QUOTE.
type globalQuote struct {
	Symbol           string `json:"01. symbol"`
	Open             string `json:"02. open"`
	High             string `json:"03. high"`
	Low              string `json:"04. low"`
	Price            string `json:"05. price"`
	Volume           string `json:"06. volume"`
	LatestTradingDay string `json:"07. latest trading day"`
	PreviousClose    string `json:"08. previous close"`
	Change           string `json:"09. change"`
	ChangePercent    string `json:"10. change percent"`
}

// bar is one entry of a "Time Series" object. Daily adjusted series use
// the numbered adjusted fields, intraday series put volume at "5.".
type bar struct {
	Open           string `json:"1. open"`
	High           string `json:"2. high"`
	Low            string `json:"3. low"`
	Close          string `json:"4. close"`
	AdjustedClose  string `json:"5. adjusted close"`
	IntradayVolume string `json:"5. volume"`
	Volume         string `json:"6. volume"`
	Dividend       string `json:"7. dividend amount"`
	Split          string `json:"8. split coefficient"`
}

// GetQuote returns the latest quote for symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	body, err := c.query(ctx, "GLOBAL_QUOTE", map[string]string{"symbol": symbol})
	if err != nil {
		return nil, err
	}

	var q globalQuote
	if _, err := decode(body, "Global Quote", &q); err != nil {
		return nil, err
	}
	if missingText(q.Price) {
		return nil, provider.NewValidationError(Name, fmt.Sprintf("price not found in response for %s", symbol))
	}
	price := parseNullDecimal(q.Price)
	if !price.Valid {
		return nil, provider.NewValidationError(Name, fmt.Sprintf("failed to parse price %q for %s", q.Price, symbol))
	}

	return &model.Quote{
		Symbol:        orDefault(q.Symbol, symbol),
		Price:         price.Decimal,
		Change:        parseDecimal(q.Change),
		ChangePercent: parseDecimal(q.ChangePercent),
		Volume:        parseInt(q.Volume),
		Open:          parseNullDecimal(q.Open),
		High:          parseNullDecimal(q.High),
		Low:           parseNullDecimal(q.Low),
		PreviousClose: parseNullDecimal(q.PreviousClose),
		DayHigh:       parseNullDecimal(q.High),
		DayLow:        parseNullDecimal(q.Low),
		Timestamp:     c.now(),
		Provider:      Name,
	}, nil
}

// Adjusted series per canonical interval.
var historicalSeries = map[string]struct{ function, key string }{
	"daily":   {"TIME_SERIES_DAILY_ADJUSTED", "Time Series (Daily)"},
	"weekly":  {"TIME_SERIES_WEEKLY_ADJUSTED", "Weekly Adjusted Time Series"},
	"monthly": {"TIME_SERIES_MONTHLY_ADJUSTED", "Monthly Adjusted Time Series"},
}

// GetHistorical returns adjusted bars between start and end inclusive,
// oldest first. Zero bounds are open.
func (c *Client) GetHistorical(ctx context.Context, symbol string, start, end time.Time, interval string) ([]model.HistoricalPrice, error) {
	series, ok := historicalSeries[model.NormalizeInterval(interval)]
	if !ok {
		return nil, provider.NewValidationError(Name, fmt.Sprintf("unsupported historical interval %q", interval))
	}

	body, err := c.query(ctx, series.function, map[string]string{
		"symbol":     symbol,
		"outputsize": "full",
	})
	if err != nil {
		return nil, err
	}

	var raw map[string]bar
	found, err := decode(body, series.key, &raw)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	from, to := model.DateKey(start), model.DateKey(end)
	prices := make([]model.HistoricalPrice, 0, len(raw))
	for day, b := range raw {
		if (from != "" && day < from) || (to != "" && day > to) {
			continue
		}
		date, err := time.Parse(time.DateOnly, day)
		if err != nil {
			c.logger.Debug("skipping malformed bar date", "provider", Name, "date", day)
			continue
		}
		prices = append(prices, model.HistoricalPrice{
			Symbol:        symbol,
			Date:          date,
			Open:          parseDecimal(b.Open),
			High:          parseDecimal(b.High),
			Low:           parseDecimal(b.Low),
			Close:         parseDecimal(b.Close),
			Volume:        parseInt(b.Volume),
			AdjustedClose: parseNullDecimal(b.AdjustedClose),
			Dividend:      parseNullDecimal(b.Dividend),
			Split:         parseNullDecimal(b.Split),
			Provider:      Name,
		})
	}

	sortBars(prices)
	return prices, nil
}

var intradayIntervals = []string{"1min", "5min", "15min", "30min", "60min"}

// GetIntraday returns the most recent intraday bars, oldest first. Bar
// times are interpreted in the time zone named by the response metadata.
func (c *Client) GetIntraday(ctx context.Context, symbol, interval string) ([]model.HistoricalPrice, error) {
	interval = model.NormalizeInterval(interval)
	if !slices.Contains(intradayIntervals, interval) {
		return nil, provider.NewValidationError(Name, fmt.Sprintf("unsupported intraday interval %q", interval))
	}

	body, err := c.query(ctx, "TIME_SERIES_INTRADAY", map[string]string{
		"symbol":   symbol,
		"interval": interval,
	})
	if err != nil {
		return nil, err
	}

	var raw map[string]bar
	found, err := decode(body, fmt.Sprintf("Time Series (%s)", interval), &raw)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var meta map[string]string
	if _, err := decode(body, "Meta Data", &meta); err != nil {
		return nil, err
	}
	loc := location(meta["6. Time Zone"])

	prices := make([]model.HistoricalPrice, 0, len(raw))
	for stamp, b := range raw {
		at, err := time.ParseInLocation(time.DateTime, stamp, loc)
		if err != nil {
			c.logger.Debug("skipping malformed bar time", "provider", Name, "time", stamp)
			continue
		}
		prices = append(prices, model.HistoricalPrice{
			Symbol:   symbol,
			Date:     at,
			Open:     parseDecimal(b.Open),
			High:     parseDecimal(b.High),
			Low:      parseDecimal(b.Low),
			Close:    parseDecimal(b.Close),
			Volume:   parseInt(b.IntradayVolume),
			Provider: Name,
		})
	}

	sortBars(prices)
	return prices, nil
}

func sortBars(prices []model.HistoricalPrice) {
	slices.SortFunc(prices, func(a, b model.HistoricalPrice) int {
		return a.Date.Compare(b.Date)
	})
}

// location falls back to UTC when the zone is missing or unknown to the
// local tz database.
func location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func orDefault(s, def string) string {
	if s = orEmpty(s); s == "" {
		return def
	}
	return s
}
