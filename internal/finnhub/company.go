package finnhub

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"marketbrain/internal/model"
)

type profileResponse struct {
	Country     string   `json:"country"`
	Currency    string   `json:"currency"`
	Exchange    string   `json:"exchange"`
	IPO         string   `json:"ipo"`
	MarketCap   *float64 `json:"marketCapitalization"`
	Name        string   `json:"name"`
	Phone       string   `json:"phone"`
	Ticker      string   `json:"ticker"`
	WebURL      string   `json:"weburl"`
	Logo        string   `json:"logo"`
	Industry    string   `json:"finnhubIndustry"`
	Description string   `json:"description"`
	Employees   *float64 `json:"employeeTotal"`
}

type metricResponse struct {
	Metric map[string]any `json:"metric"`
}

func (c *Client) metrics(ctx context.Context, symbol string) (map[string]any, error) {
	var r metricResponse
	err := c.get(ctx, "/stock/metric", map[string]string{"symbol": symbol, "metric": "all"}, &r)
	return r.Metric, err
}

// GetCompanyInfo combines /stock/profile2 with valuation ratios from
// /stock/metric. A failing metric call only drops the ratios.
func (c *Client) GetCompanyInfo(ctx context.Context, symbol string) (*model.CompanyInfo, error) {
	var p profileResponse
	if err := c.get(ctx, "/stock/profile2", map[string]string{"symbol": symbol}, &p); err != nil {
		return nil, err
	}
	if p.Ticker == "" && p.Name == "" {
		return nil, nil
	}

	info := &model.CompanyInfo{
		Symbol:      symbol,
		Name:        p.Name,
		Exchange:    p.Exchange,
		Sector:      p.Industry,
		Industry:    p.Industry,
		Description: p.Description,
		Website:     p.WebURL,
		Country:     p.Country,
		Currency:    p.Currency,
		Phone:       p.Phone,
		LogoURL:     p.Logo,
		IPODate:     p.IPO,
		MarketCap:   millions(p.MarketCap),
		Provider:    Name,
	}
	if p.Employees != nil {
		info.Employees = int64(*p.Employees)
	}

	m, err := c.metrics(ctx, symbol)
	if err != nil {
		c.logger.Debug("metrics unavailable for company info", "provider", Name, "symbol", symbol, "error", err)
		return info, nil
	}
	info.PERatio = metricDecimal(m, "peNormalizedAnnual")
	info.PBRatio = metricDecimal(m, "pbAnnual")
	info.EPS = metricDecimal(m, "epsBasicExclExtraItemsTTM")
	info.Beta = metricDecimal(m, "beta")
	info.DividendYield = metricDecimal(m, "dividendYieldIndicatedAnnual")
	info.Revenue = metricMillions(m, "revenueTTM")
	return info, nil
}

// fundamentalMetrics maps /stock/metric keys onto fundamentals metric names.
var fundamentalMetrics = map[string]string{
	"marketCapitalization":         "market_cap",
	"enterpriseValue":              "enterprise_value",
	"peBasicExclExtraTTM":          "pe_ratio",
	"peExclExtraTTM":               "forward_pe",
	"pegRatio":                     "peg_ratio",
	"psAnnual":                     "price_to_sales",
	"pbAnnual":                     "price_to_book",
	"pfcfShareAnnual":              "price_to_fcf",
	"evToEbitda":                   "ev_to_ebitda",
	"evToRevenue":                  "ev_to_revenue",
	"grossMarginAnnual":            "gross_margin",
	"operatingMarginAnnual":        "operating_margin",
	"netMarginAnnual":              "net_margin",
	"roaRfy":                       "roa",
	"roeRfy":                       "roe",
	"roicRfy":                      "roic",
	"currentRatioAnnual":           "current_ratio",
	"quickRatioAnnual":             "quick_ratio",
	"ltDebtToEquityAnnual":         "debt_to_equity",
	"revenueGrowth3Y":              "revenue_growth_3y",
	"epsGrowth3Y":                  "eps_growth_3y",
	"dividendYieldIndicatedAnnual": "dividend_yield",
	"dividendPerShareAnnual":       "dividend_per_share",
	"payoutRatioAnnual":            "payout_ratio",
	"52WeekHigh":                   "week_52_high",
	"52WeekLow":                    "week_52_low",
	"10DayAverageTradingVolume":    "avg_volume_10d",
	"3MonthAverageTradingVolume":   "avg_volume_3m",
	"epsBasicExclExtraItemsTTM":    "eps",
	"revenuePerShareTTM":           "revenue_per_share_ttm",
	"bookValuePerShareQuarterly":   "book_value",
	"beta":                         "beta",
}

// GetFundamentals returns the /stock/metric figures under shared metric
// names. Metrics Finnhub reports in millions are scaled to units.
func (c *Client) GetFundamentals(ctx context.Context, symbol string) (model.Fundamentals, error) {
	m, err := c.metrics(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}

	f := model.Fundamentals{"symbol": symbol}
	for key, name := range fundamentalMetrics {
		v := metricDecimal(m, key)
		if key == "marketCapitalization" || key == "enterpriseValue" {
			v = metricMillions(m, key)
		}
		if v.Valid {
			f[name] = v.Decimal
		}
	}
	return f, nil
}

type earningsSurprise struct {
	Actual          *float64 `json:"actual"`
	Estimate        *float64 `json:"estimate"`
	Period          string   `json:"period"`
	Quarter         int      `json:"quarter"`
	Year            int      `json:"year"`
	Surprise        *float64 `json:"surprise"`
	SurprisePercent *float64 `json:"surprisePercent"`
}

// GetEarnings returns the quarterly earnings surprises, newest first.
func (c *Client) GetEarnings(ctx context.Context, symbol string) ([]model.EarningsRecord, error) {
	var raw []earningsSurprise
	if err := c.get(ctx, "/stock/earnings", map[string]string{"symbol": symbol}, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	records := make([]model.EarningsRecord, 0, len(raw))
	for _, e := range raw {
		records = append(records, model.EarningsRecord{
			Symbol:           symbol,
			Period:           "quarterly",
			FiscalDateEnding: parseDate(e.Period),
			ReportedEPS:      nullDecimal(e.Actual),
			EstimatedEPS:     nullDecimal(e.Estimate),
			Surprise:         nullDecimal(e.Surprise),
			SurprisePercent:  nullDecimal(e.SurprisePercent),
			Provider:         Name,
		})
	}
	return records, nil
}

type newsItem struct {
	Category string `json:"category"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	Image    string `json:"image"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// newsWindow is how far back company news is requested.
const newsWindow = 7 * 24 * time.Hour

// GetNews returns company news for q.Symbol over the last week, or general
// market news when no symbol is given. Articles are newest first.
func (c *Client) GetNews(ctx context.Context, q model.NewsQuery) ([]model.NewsArticle, error) {
	q = q.WithDefaults()

	var raw []newsItem
	var err error
	if q.Symbol != "" {
		now := c.now()
		err = c.get(ctx, "/company-news", map[string]string{
			"symbol": q.Symbol,
			"from":   model.DateKey(now.Add(-newsWindow)),
			"to":     model.DateKey(now),
		}, &raw)
	} else {
		err = c.get(ctx, "/news", map[string]string{"category": "general"}, &raw)
	}
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	slices.SortStableFunc(raw, func(a, b newsItem) int {
		return cmp.Compare(b.Datetime, a.Datetime)
	})

	articles := make([]model.NewsArticle, 0, min(len(raw), q.Limit))
	for _, item := range raw[:min(len(raw), q.Limit)] {
		var related []string
		for _, s := range strings.Split(item.Related, ",") {
			if s = strings.TrimSpace(s); s != "" {
				related = append(related, s)
			}
		}
		articles = append(articles, model.NewsArticle{
			Title:          item.Headline,
			Summary:        item.Summary,
			URL:            item.URL,
			Source:         item.Source,
			PublishedAt:    time.Unix(item.Datetime, 0).UTC(),
			ImageURL:       item.Image,
			RelatedSymbols: related,
			Provider:       Name,
		})
	}
	return articles, nil
}

type earningsCalendarResponse struct {
	EarningsCalendar []struct {
		Date            string   `json:"date"`
		EPSActual       *float64 `json:"epsActual"`
		EPSEstimate     *float64 `json:"epsEstimate"`
		Hour            string   `json:"hour"`
		Quarter         int      `json:"quarter"`
		RevenueActual   *float64 `json:"revenueActual"`
		RevenueEstimate *float64 `json:"revenueEstimate"`
		Symbol          string   `json:"symbol"`
		Year            int      `json:"year"`
	} `json:"earningsCalendar"`
}

// GetEarningsCalendar returns scheduled releases in the query window.
func (c *Client) GetEarningsCalendar(ctx context.Context, q model.EarningsCalendarQuery) ([]model.EarningsCalendarEntry, error) {
	q = q.WithDefaults(c.now())
	params := map[string]string{
		"from": model.DateKey(q.Start),
		"to":   model.DateKey(q.End),
	}
	if q.Symbol != "" {
		params["symbol"] = q.Symbol
	}

	var r earningsCalendarResponse
	if err := c.get(ctx, "/calendar/earnings", params, &r); err != nil {
		return nil, err
	}
	if r.EarningsCalendar == nil {
		return nil, nil
	}

	entries := make([]model.EarningsCalendarEntry, 0, min(len(r.EarningsCalendar), q.Limit))
	for _, e := range r.EarningsCalendar {
		if len(entries) == q.Limit {
			break
		}
		entries = append(entries, model.EarningsCalendarEntry{
			Symbol:           e.Symbol,
			Date:             parseDate(e.Date),
			Time:             e.Hour,
			EPS:              nullDecimal(e.EPSActual),
			EPSEstimated:     nullDecimal(e.EPSEstimate),
			Revenue:          nullDecimal(e.RevenueActual),
			RevenueEstimated: nullDecimal(e.RevenueEstimate),
			FiscalYear:       e.Year,
			FiscalQuarter:    e.Quarter,
			Provider:         Name,
		})
	}
	return entries, nil
}

type economicCalendarResponse struct {
	EconomicCalendar []struct {
		Actual   *float64 `json:"actual"`
		Country  string   `json:"country"`
		Estimate *float64 `json:"estimate"`
		Event    string   `json:"event"`
		Impact   string   `json:"impact"`
		Prev     *float64 `json:"prev"`
		Time     string   `json:"time"`
		Unit     string   `json:"unit"`
	} `json:"economicCalendar"`
}

var impactLevels = map[string]int{"low": 1, "medium": 2, "high": 3}

// GetEconomicEvents returns economic calendar entries in the query window,
// filtered by country and minimum importance.
func (c *Client) GetEconomicEvents(ctx context.Context, q model.EconomicEventsQuery) ([]model.EconomicEvent, error) {
	q = q.WithDefaults(c.now())

	var r economicCalendarResponse
	err := c.get(ctx, "/calendar/economic", map[string]string{
		"from": model.DateKey(q.Start),
		"to":   model.DateKey(q.End),
	}, &r)
	if err != nil {
		return nil, err
	}
	if r.EconomicCalendar == nil {
		return nil, nil
	}

	events := make([]model.EconomicEvent, 0, min(len(r.EconomicCalendar), q.Limit))
	for _, e := range r.EconomicCalendar {
		if len(events) == q.Limit {
			break
		}
		if len(q.Countries) > 0 && !slices.ContainsFunc(q.Countries, func(cc string) bool {
			return strings.EqualFold(cc, e.Country)
		}) {
			continue
		}
		importance := impactLevels[strings.ToLower(e.Impact)]
		if importance < q.Importance {
			continue
		}
		at, _ := time.Parse(time.DateTime, e.Time)
		events = append(events, model.EconomicEvent{
			Country:    e.Country,
			EventName:  e.Event,
			Actual:     formatFloat(e.Actual),
			Previous:   formatFloat(e.Prev),
			Forecast:   formatFloat(e.Estimate),
			Unit:       e.Unit,
			Importance: importance,
			Timestamp:  at,
			Provider:   Name,
		})
	}
	return events, nil
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func metricDecimal(m map[string]any, key string) decimal.NullDecimal {
	f, ok := m[key].(float64)
	if !ok {
		return decimal.NullDecimal{}
	}
	return nullDecimal(&f)
}

func metricMillions(m map[string]any, key string) decimal.NullDecimal {
	f, ok := m[key].(float64)
	if !ok {
		return decimal.NullDecimal{}
	}
	return millions(&f)
}
