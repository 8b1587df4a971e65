package alphavantage

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"marketbrain/internal/model"
	"marketbrain/internal/provider"
)

const newsTimeLayout = "20060102T150405"

type newsItem struct {
	Title          string   `json:"title"`
	URL            string   `json:"url"`
	TimePublished  string   `json:"time_published"`
	Authors        []string `json:"authors"`
	Summary        string   `json:"summary"`
	BannerImage    string   `json:"banner_image"`
	Source         string   `json:"source"`
	SentimentScore *float64 `json:"overall_sentiment_score"`
	Tickers        []struct {
		Ticker string `json:"ticker"`
	} `json:"ticker_sentiment"`
}

// GetNews returns NEWS_SENTIMENT articles, newest first as delivered.
func (c *Client) GetNews(ctx context.Context, q model.NewsQuery) ([]model.NewsArticle, error) {
	q = q.WithDefaults()
	params := map[string]string{
		"sort":  "LATEST",
		"limit": strconv.Itoa(q.Limit),
	}
	if q.Symbol != "" {
		params["tickers"] = q.Symbol
	}

	body, err := c.query(ctx, "NEWS_SENTIMENT", params)
	if err != nil {
		return nil, err
	}

	var feed []newsItem
	found, err := decode(body, "feed", &feed)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	articles := make([]model.NewsArticle, 0, min(len(feed), q.Limit))
	for _, item := range feed {
		if len(articles) == q.Limit {
			break
		}
		published, _ := time.Parse(newsTimeLayout, item.TimePublished)
		related := make([]string, 0, len(item.Tickers))
		for _, t := range item.Tickers {
			related = append(related, t.Ticker)
		}
		articles = append(articles, model.NewsArticle{
			Title:          item.Title,
			Summary:        item.Summary,
			URL:            item.URL,
			Source:         item.Source,
			Author:         strings.Join(item.Authors, ", "),
			PublishedAt:    published,
			ImageURL:       item.BannerImage,
			RelatedSymbols: related,
			Sentiment:      item.SentimentScore,
			Provider:       Name,
		})
	}
	return articles, nil
}

type optionContract struct {
	ContractID        string `json:"contractID"`
	Symbol            string `json:"symbol"`
	Expiration        string `json:"expiration"`
	Strike            string `json:"strike"`
	Type              string `json:"type"`
	Last              string `json:"last"`
	Bid               string `json:"bid"`
	Ask               string `json:"ask"`
	Volume            string `json:"volume"`
	OpenInterest      string `json:"open_interest"`
	ImpliedVolatility string `json:"implied_volatility"`
	Delta             string `json:"delta"`
	Gamma             string `json:"gamma"`
	Theta             string `json:"theta"`
	Vega              string `json:"vega"`
}

// GetOptionsChain returns REALTIME_OPTIONS contracts with greeks. When
// expiration is set only that expiry is kept.
func (c *Client) GetOptionsChain(ctx context.Context, symbol string, expiration *time.Time) ([]model.OptionQuote, error) {
	body, err := c.query(ctx, "REALTIME_OPTIONS", map[string]string{
		"symbol":         symbol,
		"require_greeks": "true",
	})
	if err != nil {
		return nil, err
	}

	var raw []optionContract
	found, err := decode(body, "data", &raw)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var want string
	if expiration != nil {
		want = model.DateKey(*expiration)
	}

	now := c.now()
	chain := make([]model.OptionQuote, 0, len(raw))
	for _, o := range raw {
		if want != "" && o.Expiration != want {
			continue
		}
		chain = append(chain, model.OptionQuote{
			Symbol:            orDefault(o.ContractID, o.Symbol),
			UnderlyingSymbol:  symbol,
			Strike:            parseDecimal(o.Strike),
			Expiration:        parseDate(o.Expiration),
			OptionType:        strings.ToLower(o.Type),
			Bid:               parseNullDecimal(o.Bid),
			Ask:               parseNullDecimal(o.Ask),
			LastPrice:         parseNullDecimal(o.Last),
			Volume:            parseInt(o.Volume),
			OpenInterest:      parseInt(o.OpenInterest),
			ImpliedVolatility: parseNullDecimal(o.ImpliedVolatility),
			Delta:             parseNullDecimal(o.Delta),
			Gamma:             parseNullDecimal(o.Gamma),
			Theta:             parseNullDecimal(o.Theta),
			Vega:              parseNullDecimal(o.Vega),
			Timestamp:         now,
			Provider:          Name,
		})
	}
	return chain, nil
}

type transcriptEntry struct {
	Speaker string `json:"speaker"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// GetEarningsTranscript returns the call transcript for the fiscal quarter.
// Speaker turns are joined as "Speaker: text" paragraphs.
func (c *Client) GetEarningsTranscript(ctx context.Context, symbol string, year, quarter int) (*model.EarningsTranscript, error) {
	if quarter < 1 || quarter > 4 {
		return nil, provider.NewValidationError(Name, fmt.Sprintf("quarter must be between 1 and 4, got %d", quarter))
	}

	body, err := c.query(ctx, "EARNINGS_CALL_TRANSCRIPT", map[string]string{
		"symbol":  symbol,
		"quarter": fmt.Sprintf("%dQ%d", year, quarter),
	})
	if err != nil {
		return nil, err
	}

	var entries []transcriptEntry
	if _, err := decode(body, "transcript", &entries); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	var text strings.Builder
	var participants []model.Participant
	seen := make(map[string]bool)
	for i, e := range entries {
		if i > 0 {
			text.WriteString("\n\n")
		}
		fmt.Fprintf(&text, "%s: %s", e.Speaker, e.Content)
		if e.Speaker != "" && !seen[e.Speaker] {
			seen[e.Speaker] = true
			participants = append(participants, model.Participant{Name: e.Speaker, Role: e.Title})
		}
	}

	return &model.EarningsTranscript{
		Symbol:       symbol,
		Year:         year,
		Quarter:      quarter,
		Transcript:   text.String(),
		Participants: participants,
		Provider:     Name,
	}, nil
}

var indicatorFunctions = []string{
	"SMA", "EMA", "WMA", "DEMA", "TEMA", "TRIMA", "KAMA", "T3",
	"RSI", "MACD", "STOCH", "ADX", "CCI", "AROON", "BBANDS",
	"AD", "OBV", "ATR", "MFI", "WILLR", "MOM", "ROC",
}

// Parameters sent with every indicator request.
const (
	indicatorTimePeriod = "20"
	indicatorSeriesType = "close"
)

// GetTechnicalIndicators returns one indicator series, oldest first.
func (c *Client) GetTechnicalIndicators(ctx context.Context, symbol, indicator, interval string) (*model.TechnicalIndicator, error) {
	indicator = strings.ToUpper(indicator)
	if !slices.Contains(indicatorFunctions, indicator) {
		return nil, provider.NewValidationError(Name, fmt.Sprintf("unsupported indicator %q", indicator))
	}
	interval = model.NormalizeInterval(interval)

	body, err := c.query(ctx, indicator, map[string]string{
		"symbol":      symbol,
		"interval":    interval,
		"time_period": indicatorTimePeriod,
		"series_type": indicatorSeriesType,
	})
	if err != nil {
		return nil, err
	}

	var raw map[string]map[string]string
	found, err := decode(body, "Technical Analysis: "+indicator, &raw)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	values := make([]model.IndicatorValue, 0, len(raw))
	for stamp, fields := range raw {
		at, ok := parseStamp(stamp)
		if !ok {
			continue
		}
		v := model.IndicatorValue{Timestamp: at, Values: make(map[string]decimal.Decimal, len(fields))}
		for name, s := range fields {
			if d := parseNullDecimal(s); d.Valid {
				v.Values[name] = d.Decimal
			}
		}
		values = append(values, v)
	}
	slices.SortFunc(values, func(a, b model.IndicatorValue) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	return &model.TechnicalIndicator{
		Symbol:    symbol,
		Indicator: indicator,
		Interval:  interval,
		Values:    values,
		Provider:  Name,
	}, nil
}

var stampLayouts = []string{time.DateOnly, "2006-01-02 15:04", time.DateTime}

func parseStamp(s string) (time.Time, bool) {
	for _, layout := range stampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// economicFunctions maps indicator names callers use onto Alpha Vantage
// functions. Names already in function form pass through.
var economicFunctions = map[string]string{
	"GDP":                 "REAL_GDP",
	"REAL_GDP":            "REAL_GDP",
	"REAL_GDP_PER_CAPITA": "REAL_GDP_PER_CAPITA",
	"TREASURY_YIELD":      "TREASURY_YIELD",
	"FEDERAL_FUNDS_RATE":  "FEDERAL_FUNDS_RATE",
	"FED_FUNDS":           "FEDERAL_FUNDS_RATE",
	"CPI":                 "CPI",
	"INFLATION":           "INFLATION",
	"RETAIL_SALES":        "RETAIL_SALES",
	"DURABLES":            "DURABLES",
	"UNEMPLOYMENT":        "UNEMPLOYMENT",
	"NONFARM_PAYROLL":     "NONFARM_PAYROLL",
	"PAYROLLS":            "NONFARM_PAYROLL",
}

type observation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

// GetEconomicData returns a macroeconomic series. Observations Alpha
// Vantage marks as missing are dropped.
func (c *Client) GetEconomicData(ctx context.Context, indicator string) (*model.EconomicData, error) {
	indicator = strings.ToUpper(indicator)
	function, ok := economicFunctions[indicator]
	if !ok {
		return nil, provider.NewValidationError(Name, fmt.Sprintf("unsupported economic indicator %q", indicator))
	}

	body, err := c.query(ctx, function, nil)
	if err != nil {
		return nil, err
	}

	var data []observation
	found, err := decode(body, "data", &data)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	series := model.EconomicData{Indicator: function, Provider: Name}
	_, _ = decode(body, "name", &series.Name)
	_, _ = decode(body, "interval", &series.Interval)
	_, _ = decode(body, "unit", &series.Unit)

	series.Observations = make([]model.Observation, 0, len(data))
	for _, d := range data {
		v := parseNullDecimal(d.Value)
		date := parseDate(d.Date)
		if !v.Valid || date.IsZero() {
			continue
		}
		series.Observations = append(series.Observations, model.Observation{Date: date, Value: v.Decimal})
	}
	return &series, nil
}

// GetMarketStatus returns the MARKET_STATUS market list under "markets".
func (c *Client) GetMarketStatus(ctx context.Context) (model.MarketStatus, error) {
	body, err := c.query(ctx, "MARKET_STATUS", nil)
	if err != nil {
		return nil, err
	}

	var markets []map[string]any
	found, err := decode(body, "markets", &markets)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return model.MarketStatus{"markets": markets}, nil
}
