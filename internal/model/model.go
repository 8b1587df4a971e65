// Package model holds the provider-neutral payload types returned by
// provider adapters and produced by the aggregation strategies.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a point-in-time stock quote from one provider.
type Quote struct {
	Symbol        string              `json:"symbol"`
	Price         decimal.Decimal     `json:"price"`
	Change        decimal.Decimal     `json:"change"`
	ChangePercent decimal.Decimal     `json:"change_percent"`
	Volume        int64               `json:"volume"`
	Open          decimal.NullDecimal `json:"open"`
	High          decimal.NullDecimal `json:"high"`
	Low           decimal.NullDecimal `json:"low"`
	PreviousClose decimal.NullDecimal `json:"previous_close"`
	Timestamp     time.Time           `json:"timestamp"`
	Provider      string              `json:"provider"`

	// Extended fields, frequently only populated by some providers.
	AvgVolume  int64               `json:"avg_volume,omitempty"`
	MarketCap  decimal.NullDecimal `json:"market_cap"`
	PERatio    decimal.NullDecimal `json:"pe_ratio"`
	Week52High decimal.NullDecimal `json:"week_52_high"`
	Week52Low  decimal.NullDecimal `json:"week_52_low"`
	DayHigh    decimal.NullDecimal `json:"day_high"`
	DayLow     decimal.NullDecimal `json:"day_low"`
}

// HistoricalPrice is one OHLCV bar. Daily bars carry a midnight Date;
// intraday bars carry the bar's start time.
type HistoricalPrice struct {
	Symbol        string              `json:"symbol"`
	Date          time.Time           `json:"date"`
	Open          decimal.Decimal     `json:"open"`
	High          decimal.Decimal     `json:"high"`
	Low           decimal.Decimal     `json:"low"`
	Close         decimal.Decimal     `json:"close"`
	Volume        int64               `json:"volume"`
	AdjustedClose decimal.NullDecimal `json:"adjusted_close"`
	Dividend      decimal.NullDecimal `json:"dividend"`
	Split         decimal.NullDecimal `json:"split"`
	Provider      string              `json:"provider"`
}

// OptionQuote is one contract of an options chain.
type OptionQuote struct {
	Symbol            string              `json:"symbol"`
	UnderlyingSymbol  string              `json:"underlying_symbol"`
	Strike            decimal.Decimal     `json:"strike"`
	Expiration        time.Time           `json:"expiration"`
	OptionType        string              `json:"option_type"`
	Bid               decimal.NullDecimal `json:"bid"`
	Ask               decimal.NullDecimal `json:"ask"`
	LastPrice         decimal.NullDecimal `json:"last_price"`
	Volume            int64               `json:"volume,omitempty"`
	OpenInterest      int64               `json:"open_interest,omitempty"`
	ImpliedVolatility decimal.NullDecimal `json:"implied_volatility"`
	Delta             decimal.NullDecimal `json:"delta"`
	Gamma             decimal.NullDecimal `json:"gamma"`
	Theta             decimal.NullDecimal `json:"theta"`
	Vega              decimal.NullDecimal `json:"vega"`
	Timestamp         time.Time           `json:"timestamp"`
	Provider          string              `json:"provider"`
}

// CompanyInfo describes a listed company.
type CompanyInfo struct {
	Symbol        string              `json:"symbol"`
	Name          string              `json:"name"`
	Exchange      string              `json:"exchange,omitempty"`
	Sector        string              `json:"sector,omitempty"`
	Industry      string              `json:"industry,omitempty"`
	Description   string              `json:"description,omitempty"`
	Website       string              `json:"website,omitempty"`
	CEO           string              `json:"ceo,omitempty"`
	Headquarters  string              `json:"headquarters,omitempty"`
	Country       string              `json:"country,omitempty"`
	Currency      string              `json:"currency,omitempty"`
	Phone         string              `json:"phone,omitempty"`
	LogoURL       string              `json:"logo_url,omitempty"`
	IPODate       string              `json:"ipo_date,omitempty"`
	Employees     int64               `json:"employees,omitempty"`
	MarketCap     decimal.NullDecimal `json:"market_cap"`
	PERatio       decimal.NullDecimal `json:"pe_ratio"`
	PBRatio       decimal.NullDecimal `json:"pb_ratio"`
	EPS           decimal.NullDecimal `json:"eps"`
	Beta          decimal.NullDecimal `json:"beta"`
	DividendYield decimal.NullDecimal `json:"dividend_yield"`
	Revenue       decimal.NullDecimal `json:"revenue"`
	Provider      string              `json:"provider"`
}

// EconomicEvent is one entry of an economic calendar. Importance runs from
// 1 (low) to 3 (high).
type EconomicEvent struct {
	EventID     string    `json:"event_id,omitempty"`
	Country     string    `json:"country"`
	EventName   string    `json:"event_name"`
	EventPeriod string    `json:"event_period,omitempty"`
	Actual      string    `json:"actual,omitempty"`
	Previous    string    `json:"previous,omitempty"`
	Forecast    string    `json:"forecast,omitempty"`
	Unit        string    `json:"unit,omitempty"`
	Importance  int       `json:"importance"`
	Timestamp   time.Time `json:"timestamp"`
	Currency    string    `json:"currency,omitempty"`
	Provider    string    `json:"provider"`
}

// EarningsCalendarEntry is a scheduled or reported earnings release.
type EarningsCalendarEntry struct {
	Symbol           string              `json:"symbol"`
	Date             time.Time           `json:"date"`
	Time             string              `json:"time,omitempty"` // bmo, amc, dmh
	EPS              decimal.NullDecimal `json:"eps"`
	EPSEstimated     decimal.NullDecimal `json:"eps_estimated"`
	Revenue          decimal.NullDecimal `json:"revenue"`
	RevenueEstimated decimal.NullDecimal `json:"revenue_estimated"`
	FiscalYear       int                 `json:"fiscal_year,omitempty"`
	FiscalQuarter    int                 `json:"fiscal_quarter,omitempty"`
	Provider         string              `json:"provider"`
}

type Participant struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// EarningsTranscript is the text of one earnings call.
type EarningsTranscript struct {
	Symbol       string        `json:"symbol"`
	Date         time.Time     `json:"date"`
	Year         int           `json:"year"`
	Quarter      int           `json:"quarter"`
	Transcript   string        `json:"transcript"`
	Participants []Participant `json:"participants,omitempty"`
	Provider     string        `json:"provider"`
}

// NewsArticle is a single news item.
type NewsArticle struct {
	Title          string    `json:"title"`
	Summary        string    `json:"summary,omitempty"`
	URL            string    `json:"url,omitempty"`
	Source         string    `json:"source,omitempty"`
	Author         string    `json:"author,omitempty"`
	PublishedAt    time.Time `json:"published_at"`
	ImageURL       string    `json:"image_url,omitempty"`
	RelatedSymbols []string  `json:"related_symbols,omitempty"`
	Sentiment      *float64  `json:"sentiment,omitempty"`
	Provider       string    `json:"provider"`
}

// Dividend is one dividend event. Providers fill Date, ExDate or both; a
// zero time means the field was not reported.
type Dividend struct {
	Symbol          string              `json:"symbol"`
	Date            time.Time           `json:"date"`
	ExDate          time.Time           `json:"ex_date"`
	DeclarationDate time.Time           `json:"declaration_date"`
	RecordDate      time.Time           `json:"record_date"`
	PaymentDate     time.Time           `json:"payment_date"`
	Amount          decimal.NullDecimal `json:"amount"`
	Provider        string              `json:"provider"`
}

// EarningsRecord is one reported earnings period.
type EarningsRecord struct {
	Symbol           string              `json:"symbol"`
	Period           string              `json:"period"` // annual or quarterly
	FiscalDateEnding time.Time           `json:"fiscal_date_ending"`
	ReportedDate     time.Time           `json:"reported_date"`
	ReportedEPS      decimal.NullDecimal `json:"reported_eps"`
	EstimatedEPS     decimal.NullDecimal `json:"estimated_eps"`
	Surprise         decimal.NullDecimal `json:"surprise"`
	SurprisePercent  decimal.NullDecimal `json:"surprise_percent"`
	Provider         string              `json:"provider"`
}

// IndicatorValue is one point of a technical indicator series. Multi-line
// indicators such as MACD carry several named values.
type IndicatorValue struct {
	Timestamp time.Time                  `json:"timestamp"`
	Values    map[string]decimal.Decimal `json:"values"`
}

type TechnicalIndicator struct {
	Symbol    string           `json:"symbol"`
	Indicator string           `json:"indicator"`
	Interval  string           `json:"interval"`
	Values    []IndicatorValue `json:"values"`
	Provider  string           `json:"provider"`
}

type Observation struct {
	Date  time.Time       `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// EconomicData is a macroeconomic time series such as real GDP or CPI.
type EconomicData struct {
	Indicator    string        `json:"indicator"`
	Name         string        `json:"name,omitempty"`
	Interval     string        `json:"interval,omitempty"`
	Unit         string        `json:"unit,omitempty"`
	Observations []Observation `json:"observations"`
	Provider     string        `json:"provider"`
}

// Fundamentals is a flat metric-name to value mapping. Providers name their
// metrics differently, so no schema is imposed.
type Fundamentals map[string]any

// MarketStatus is a flat key/value description of exchange state.
type MarketStatus map[string]any
