package alphavantage

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"marketbrain/internal/model"
	"marketbrain/internal/provider"
)

func TestGetQuote_Success(t *testing.T) {
	c := newTestClient(t, respond(t, "GLOBAL_QUOTE", `{
		"Global Quote": {
			"01. symbol": "AAPL",
			"02. open": "175.50",
			"03. high": "178.75",
			"04. low": "174.25",
			"05. price": "178.23",
			"06. volume": "50000000",
			"07. latest trading day": "2024-01-15",
			"08. previous close": "176.50",
			"09. change": "1.73",
			"10. change percent": "0.98%"
		}
	}`))

	q, err := c.GetQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetQuote() returned unexpected error: %v", err)
	}

	if !q.Price.Equal(dec("178.23")) {
		t.Errorf("Price = %s, want 178.23", q.Price)
	}
	if !q.ChangePercent.Equal(dec("0.98")) {
		t.Errorf("ChangePercent = %s, want 0.98", q.ChangePercent)
	}
	if q.Volume != 50000000 {
		t.Errorf("Volume = %d, want 50000000", q.Volume)
	}
	if !q.PreviousClose.Valid || !q.PreviousClose.Decimal.Equal(dec("176.50")) {
		t.Errorf("PreviousClose = %v, want 176.50", q.PreviousClose)
	}
	if !q.Timestamp.Equal(fixedNow) {
		t.Errorf("Timestamp = %v, want %v", q.Timestamp, fixedNow)
	}
	if q.Provider != Name {
		t.Errorf("Provider = %q, want %q", q.Provider, Name)
	}
}

func TestGetQuote_VerifyQueryParams(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("apikey"); got != "test_key" {
			t.Errorf("apikey = %q, want test_key", got)
		}
		if got := q.Get("function"); got != "GLOBAL_QUOTE" {
			t.Errorf("function = %q, want GLOBAL_QUOTE", got)
		}
		if got := q.Get("symbol"); got != "GOOGL" {
			t.Errorf("symbol = %q, want GOOGL", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Global Quote": {"01. symbol": "GOOGL", "05. price": "142.56"}}`))
	})

	if _, err := c.GetQuote(context.Background(), "GOOGL"); err != nil {
		t.Fatalf("GetQuote() returned unexpected error: %v", err)
	}
}

func TestGetQuote_BadPayloads(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing price", `{"Global Quote": {"01. symbol": "AAPL"}}`, "alpha_vantage: validation error: price not found in response for AAPL"},
		{"empty response", `{}`, "alpha_vantage: validation error: price not found in response for AAPL"},
		{"invalid price", `{"Global Quote": {"05. price": "invalid_number"}}`, `alpha_vantage: validation error: failed to parse price "invalid_number" for AAPL`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, respond(t, "GLOBAL_QUOTE", tt.body))

			q, err := c.GetQuote(context.Background(), "AAPL")
			if err == nil {
				t.Fatalf("GetQuote() = %+v, want error", q)
			}
			if err.Error() != tt.wantErr {
				t.Errorf("GetQuote() error = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestGetHistorical_FiltersAndSorts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("outputsize"); got != "full" {
			t.Errorf("outputsize = %q, want full", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"Meta Data": {"2. Symbol": "AAPL"},
			"Time Series (Daily)": {
				"2024-01-05": {"1. open": "5", "2. high": "6", "3. low": "4", "4. close": "5.5", "5. adjusted close": "5.4", "6. volume": "500", "7. dividend amount": "0.0000", "8. split coefficient": "1.0"},
				"2024-01-03": {"1. open": "3", "2. high": "4", "3. low": "2", "4. close": "3.5", "5. adjusted close": "3.4", "6. volume": "300", "7. dividend amount": "0.2400", "8. split coefficient": "1.0"},
				"2024-01-04": {"1. open": "4", "2. high": "5", "3. low": "3", "4. close": "4.5", "5. adjusted close": "4.4", "6. volume": "400", "7. dividend amount": "0.0000", "8. split coefficient": "1.0"},
				"2024-01-01": {"1. open": "1", "2. high": "2", "3. low": "0", "4. close": "1.5", "5. adjusted close": "1.4", "6. volume": "100", "7. dividend amount": "0.0000", "8. split coefficient": "1.0"}
			}
		}`))
	})

	start := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	bars, err := c.GetHistorical(context.Background(), "AAPL", start, end, "1d")
	if err != nil {
		t.Fatalf("GetHistorical() returned unexpected error: %v", err)
	}

	if len(bars) != 2 {
		t.Fatalf("len(bars) = %d, want 2", len(bars))
	}
	if got := model.DateKey(bars[0].Date); got != "2024-01-03" {
		t.Errorf("bars[0].Date = %s, want 2024-01-03", got)
	}
	if got := model.DateKey(bars[1].Date); got != "2024-01-04" {
		t.Errorf("bars[1].Date = %s, want 2024-01-04", got)
	}
	if !bars[0].Dividend.Decimal.Equal(dec("0.24")) {
		t.Errorf("bars[0].Dividend = %v, want 0.24", bars[0].Dividend)
	}
	if bars[0].Volume != 300 {
		t.Errorf("bars[0].Volume = %d, want 300", bars[0].Volume)
	}
}

func TestGetHistorical_Weekly(t *testing.T) {
	c := newTestClient(t, respond(t, "TIME_SERIES_WEEKLY_ADJUSTED", `{
		"Weekly Adjusted Time Series": {
			"2024-01-12": {"1. open": "1", "2. high": "2", "3. low": "1", "4. close": "2", "5. adjusted close": "2", "6. volume": "10", "7. dividend amount": "0"}
		}
	}`))

	bars, err := c.GetHistorical(context.Background(), "AAPL", time.Time{}, time.Time{}, "weekly")
	if err != nil {
		t.Fatalf("GetHistorical() returned unexpected error: %v", err)
	}
	if len(bars) != 1 {
		t.Errorf("len(bars) = %d, want 1", len(bars))
	}
}

func TestGetHistorical_UnsupportedInterval(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request: %s", r.URL)
	})

	_, err := c.GetHistorical(context.Background(), "AAPL", time.Time{}, time.Time{}, "3d")
	var perr *provider.Error
	if !errors.As(err, &perr) || perr.Type != provider.ErrorTypeValidation {
		t.Errorf("GetHistorical() error = %v, want validation error", err)
	}
}

func TestGetIntraday_UsesResponseTimeZone(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("interval"); got != "60min" {
			t.Errorf("interval = %q, want 60min", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"Meta Data": {"6. Time Zone": "UTC"},
			"Time Series (60min)": {
				"2024-01-15 11:00:00": {"1. open": "2", "2. high": "2", "3. low": "2", "4. close": "2", "5. volume": "20"},
				"2024-01-15 10:00:00": {"1. open": "1", "2. high": "1", "3. low": "1", "4. close": "1", "5. volume": "10"}
			}
		}`))
	})

	bars, err := c.GetIntraday(context.Background(), "AAPL", "1h")
	if err != nil {
		t.Fatalf("GetIntraday() returned unexpected error: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("len(bars) = %d, want 2", len(bars))
	}
	want := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	if !bars[0].Date.Equal(want) {
		t.Errorf("bars[0].Date = %v, want %v", bars[0].Date, want)
	}
	if bars[1].Volume != 20 {
		t.Errorf("bars[1].Volume = %d, want 20", bars[1].Volume)
	}
}

const overviewBody = `{
	"Symbol": "IBM",
	"Name": "International Business Machines",
	"Exchange": "NYSE",
	"Currency": "USD",
	"Country": "USA",
	"Sector": "TECHNOLOGY",
	"Industry": "COMPUTER & OFFICE EQUIPMENT",
	"Description": "IBM is an American multinational technology company.",
	"OfficialSite": "None",
	"Address": "1 NEW ORCHARD ROAD, ARMONK, NY, US",
	"FullTimeEmployees": "282200",
	"FiscalYearEnd": "December",
	"MarketCapitalization": "150000000000",
	"PERatio": "22.5",
	"PEGRatio": "None",
	"EPS": "7.3",
	"Beta": "0.7",
	"RevenueTTM": "61860000000"
}`

func TestGetCompanyInfo(t *testing.T) {
	c := newTestClient(t, respond(t, "OVERVIEW", overviewBody))

	info, err := c.GetCompanyInfo(context.Background(), "IBM")
	if err != nil {
		t.Fatalf("GetCompanyInfo() returned unexpected error: %v", err)
	}

	if info.Name != "International Business Machines" {
		t.Errorf("Name = %q", info.Name)
	}
	if info.Website != "" {
		t.Errorf("Website = %q, want empty for None", info.Website)
	}
	if info.Employees != 282200 {
		t.Errorf("Employees = %d, want 282200", info.Employees)
	}
	if !info.PERatio.Valid || !info.PERatio.Decimal.Equal(dec("22.5")) {
		t.Errorf("PERatio = %v, want 22.5", info.PERatio)
	}
	if info.PBRatio.Valid {
		t.Errorf("PBRatio = %v, want missing", info.PBRatio)
	}
}

func TestGetCompanyInfo_UnknownSymbol(t *testing.T) {
	c := newTestClient(t, respond(t, "OVERVIEW", `{}`))

	info, err := c.GetCompanyInfo(context.Background(), "NOPE")
	if err != nil || info != nil {
		t.Errorf("GetCompanyInfo() = %v, %v; want nil, nil", info, err)
	}
}

func TestGetFundamentals(t *testing.T) {
	c := newTestClient(t, respond(t, "OVERVIEW", overviewBody))

	f, err := c.GetFundamentals(context.Background(), "IBM")
	if err != nil {
		t.Fatalf("GetFundamentals() returned unexpected error: %v", err)
	}

	if _, ok := f["peg_ratio"]; ok {
		t.Error("peg_ratio present, want omitted for None")
	}
	if got, ok := f["pe_ratio"].(decimal.Decimal); !ok || !got.Equal(dec("22.5")) {
		t.Errorf("pe_ratio = %v, want 22.5", got)
	}
	if f["fiscal_year_end"] != "December" {
		t.Errorf("fiscal_year_end = %v, want December", f["fiscal_year_end"])
	}
}

func TestGetEarnings(t *testing.T) {
	c := newTestClient(t, respond(t, "EARNINGS", `{
		"symbol": "IBM",
		"annualEarnings": [{"fiscalDateEnding": "2023-12-31", "reportedEPS": "9.62"}],
		"quarterlyEarnings": [{
			"fiscalDateEnding": "2023-12-31",
			"reportedDate": "2024-01-24",
			"reportedEPS": "3.87",
			"estimatedEPS": "3.78",
			"surprise": "0.09",
			"surprisePercentage": "2.381"
		}]
	}`))

	records, err := c.GetEarnings(context.Background(), "IBM")
	if err != nil {
		t.Fatalf("GetEarnings() returned unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].Period != "annual" || records[1].Period != "quarterly" {
		t.Errorf("periods = %q, %q; want annual, quarterly", records[0].Period, records[1].Period)
	}
	if !records[1].Surprise.Decimal.Equal(dec("0.09")) {
		t.Errorf("Surprise = %v, want 0.09", records[1].Surprise)
	}
}

func TestGetDividends(t *testing.T) {
	c := newTestClient(t, respond(t, "DIVIDENDS", `{
		"symbol": "IBM",
		"data": [
			{"ex_dividend_date": "2024-02-08", "declaration_date": "2024-01-30", "record_date": "2024-02-09", "payment_date": "2024-03-09", "amount": "1.66"},
			{"ex_dividend_date": "2023-11-09", "declaration_date": "None", "record_date": "2023-11-10", "payment_date": "2023-12-09", "amount": "1.66"}
		]
	}`))

	divs, err := c.GetDividends(context.Background(), "IBM")
	if err != nil {
		t.Fatalf("GetDividends() returned unexpected error: %v", err)
	}
	if len(divs) != 2 {
		t.Fatalf("len(divs) = %d, want 2", len(divs))
	}
	if model.DateKey(divs[0].ExDate) != "2024-02-08" {
		t.Errorf("ExDate = %v, want 2024-02-08", divs[0].ExDate)
	}
	if !divs[0].Date.IsZero() {
		t.Errorf("Date = %v, want zero", divs[0].Date)
	}
	if !divs[1].DeclarationDate.IsZero() {
		t.Errorf("DeclarationDate = %v, want zero for None", divs[1].DeclarationDate)
	}
}

func TestGetNews_RespectsLimit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("tickers"); got != "AAPL" {
			t.Errorf("tickers = %q, want AAPL", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"items": "3",
			"feed": [
				{"title": "One", "url": "https://a/1", "time_published": "20240115T153000", "authors": ["Ann", "Bob"], "source": "Wire", "overall_sentiment_score": 0.25, "ticker_sentiment": [{"ticker": "AAPL"}]},
				{"title": "Two", "url": "https://a/2", "time_published": "20240115T140000"},
				{"title": "Three", "url": "https://a/3", "time_published": "20240115T120000"}
			]
		}`))
	})

	articles, err := c.GetNews(context.Background(), model.NewsQuery{Symbol: "AAPL", Limit: 2})
	if err != nil {
		t.Fatalf("GetNews() returned unexpected error: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("len(articles) = %d, want 2", len(articles))
	}
	a := articles[0]
	if a.Author != "Ann, Bob" {
		t.Errorf("Author = %q, want %q", a.Author, "Ann, Bob")
	}
	if want := time.Date(2024, 1, 15, 15, 30, 0, 0, time.UTC); !a.PublishedAt.Equal(want) {
		t.Errorf("PublishedAt = %v, want %v", a.PublishedAt, want)
	}
	if a.Sentiment == nil || *a.Sentiment != 0.25 {
		t.Errorf("Sentiment = %v, want 0.25", a.Sentiment)
	}
	if len(a.RelatedSymbols) != 1 || a.RelatedSymbols[0] != "AAPL" {
		t.Errorf("RelatedSymbols = %v, want [AAPL]", a.RelatedSymbols)
	}
}

func TestGetOptionsChain_FiltersExpiration(t *testing.T) {
	c := newTestClient(t, respond(t, "REALTIME_OPTIONS", `{
		"endpoint": "Realtime Options",
		"data": [
			{"contractID": "AAPL240119C00150000", "symbol": "AAPL", "expiration": "2024-01-19", "strike": "150.00", "type": "call", "bid": "28.1", "ask": "28.4", "volume": "12", "open_interest": "340", "delta": "0.98"},
			{"contractID": "AAPL240126P00150000", "symbol": "AAPL", "expiration": "2024-01-26", "strike": "150.00", "type": "put", "bid": "0.01", "ask": "0.02"}
		]
	}`))

	exp := time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC)
	chain, err := c.GetOptionsChain(context.Background(), "AAPL", &exp)
	if err != nil {
		t.Fatalf("GetOptionsChain() returned unexpected error: %v", err)
	}
	if len(chain) != 1 {
		t.Fatalf("len(chain) = %d, want 1", len(chain))
	}
	o := chain[0]
	if o.Symbol != "AAPL240119C00150000" || o.OptionType != "call" {
		t.Errorf("contract = %s %s", o.Symbol, o.OptionType)
	}
	if o.OpenInterest != 340 {
		t.Errorf("OpenInterest = %d, want 340", o.OpenInterest)
	}
	if !o.Delta.Valid || o.Gamma.Valid {
		t.Errorf("greeks = delta %v gamma %v; want delta only", o.Delta, o.Gamma)
	}
}

func TestGetEarningsTranscript(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("quarter"); got != "2024Q1" {
			t.Errorf("quarter = %q, want 2024Q1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"symbol": "IBM",
			"quarter": "2024Q1",
			"transcript": [
				{"speaker": "Arvind Krishna", "title": "CEO", "content": "Thank you.", "sentiment": "0.6"},
				{"speaker": "Operator", "title": "", "content": "Next question."},
				{"speaker": "Arvind Krishna", "title": "CEO", "content": "Sure."}
			]
		}`))
	})

	tr, err := c.GetEarningsTranscript(context.Background(), "IBM", 2024, 1)
	if err != nil {
		t.Fatalf("GetEarningsTranscript() returned unexpected error: %v", err)
	}
	if !strings.HasPrefix(tr.Transcript, "Arvind Krishna: Thank you.\n\nOperator: Next question.") {
		t.Errorf("Transcript = %q", tr.Transcript)
	}
	if len(tr.Participants) != 2 {
		t.Errorf("len(Participants) = %d, want 2", len(tr.Participants))
	}
}

func TestGetEarningsTranscript_InvalidQuarter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request: %s", r.URL)
	})

	if _, err := c.GetEarningsTranscript(context.Background(), "IBM", 2024, 5); err == nil {
		t.Error("GetEarningsTranscript() expected error for quarter 5, got nil")
	}
}

func TestGetTechnicalIndicators(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("function") != "SMA" || q.Get("interval") != "daily" || q.Get("time_period") != "20" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"Meta Data": {"2: Indicator": "Simple Moving Average (SMA)"},
			"Technical Analysis: SMA": {
				"2024-01-12": {"SMA": "181.20"},
				"2024-01-11": {"SMA": "180.90"}
			}
		}`))
	})

	ind, err := c.GetTechnicalIndicators(context.Background(), "AAPL", "sma", "1d")
	if err != nil {
		t.Fatalf("GetTechnicalIndicators() returned unexpected error: %v", err)
	}
	if len(ind.Values) != 2 {
		t.Fatalf("len(Values) = %d, want 2", len(ind.Values))
	}
	if got := ind.Values[0].Values["SMA"]; !got.Equal(dec("180.90")) {
		t.Errorf("first SMA = %s, want 180.90", got)
	}
}

func TestGetTechnicalIndicators_Unsupported(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request: %s", r.URL)
	})

	if _, err := c.GetTechnicalIndicators(context.Background(), "AAPL", "VWAPX", "daily"); err == nil {
		t.Error("GetTechnicalIndicators() expected error for unknown indicator, got nil")
	}
}

func TestGetEconomicData(t *testing.T) {
	c := newTestClient(t, respond(t, "REAL_GDP", `{
		"name": "Real Gross Domestic Product",
		"interval": "annual",
		"unit": "billions of dollars",
		"data": [
			{"date": "2023-01-01", "value": "22376.9"},
			{"date": "2022-01-01", "value": "."}
		]
	}`))

	data, err := c.GetEconomicData(context.Background(), "gdp")
	if err != nil {
		t.Fatalf("GetEconomicData() returned unexpected error: %v", err)
	}
	if data.Indicator != "REAL_GDP" || data.Unit != "billions of dollars" {
		t.Errorf("series = %s (%s)", data.Indicator, data.Unit)
	}
	if len(data.Observations) != 1 {
		t.Errorf("len(Observations) = %d, want 1", len(data.Observations))
	}
}

func TestGetMarketStatus(t *testing.T) {
	c := newTestClient(t, respond(t, "MARKET_STATUS", `{
		"endpoint": "Global Market Open & Close Status",
		"markets": [{"market_type": "Equity", "region": "United States", "current_status": "open"}]
	}`))

	status, err := c.GetMarketStatus(context.Background())
	if err != nil {
		t.Fatalf("GetMarketStatus() returned unexpected error: %v", err)
	}
	markets, ok := status["markets"].([]map[string]any)
	if !ok || len(markets) != 1 {
		t.Fatalf("markets = %#v", status["markets"])
	}
	if markets[0]["current_status"] != "open" {
		t.Errorf("current_status = %v, want open", markets[0]["current_status"])
	}
}
