package alphavantage

import (
	"context"

	"marketbrain/internal/model"
)

// overviewMetrics maps OVERVIEW fields onto fundamentals metric names.
var overviewMetrics = map[string]string{
	"MarketCapitalization":       "market_cap",
	"EBITDA":                     "ebitda",
	"PERatio":                    "pe_ratio",
	"PEGRatio":                   "peg_ratio",
	"BookValue":                  "book_value",
	"DividendPerShare":           "dividend_per_share",
	"DividendYield":              "dividend_yield",
	"EPS":                        "eps",
	"RevenuePerShareTTM":         "revenue_per_share_ttm",
	"ProfitMargin":               "profit_margin",
	"OperatingMarginTTM":         "operating_margin_ttm",
	"ReturnOnAssetsTTM":          "return_on_assets_ttm",
	"ReturnOnEquityTTM":          "return_on_equity_ttm",
	"RevenueTTM":                 "revenue_ttm",
	"GrossProfitTTM":             "gross_profit_ttm",
	"DilutedEPSTTM":              "diluted_eps_ttm",
	"QuarterlyEarningsGrowthYOY": "quarterly_earnings_growth_yoy",
	"QuarterlyRevenueGrowthYOY":  "quarterly_revenue_growth_yoy",
	"AnalystTargetPrice":         "analyst_target_price",
	"TrailingPE":                 "trailing_pe",
	"ForwardPE":                  "forward_pe",
	"PriceToSalesRatioTTM":       "price_to_sales_ttm",
	"PriceToBookRatio":           "price_to_book",
	"EVToRevenue":                "ev_to_revenue",
	"EVToEBITDA":                 "ev_to_ebitda",
	"Beta":                       "beta",
	"52WeekHigh":                 "week_52_high",
	"52WeekLow":                  "week_52_low",
	"50DayMovingAverage":         "moving_average_50d",
	"200DayMovingAverage":        "moving_average_200d",
	"SharesOutstanding":          "shares_outstanding",
}

// overview fetches OVERVIEW. An empty object, which Alpha Vantage returns
// for unknown symbols, yields nil.
func (c *Client) overview(ctx context.Context, symbol string) (map[string]string, error) {
	body, err := c.query(ctx, "OVERVIEW", map[string]string{"symbol": symbol})
	if err != nil {
		return nil, err
	}

	fields := make(map[string]string, len(body))
	for k := range body {
		var v string
		if _, err := decode(body, k, &v); err != nil {
			continue
		}
		fields[k] = v
	}
	if orEmpty(fields["Symbol"]) == "" {
		return nil, nil
	}
	return fields, nil
}

// GetCompanyInfo returns the company profile from OVERVIEW.
func (c *Client) GetCompanyInfo(ctx context.Context, symbol string) (*model.CompanyInfo, error) {
	o, err := c.overview(ctx, symbol)
	if err != nil || o == nil {
		return nil, err
	}

	return &model.CompanyInfo{
		Symbol:        o["Symbol"],
		Name:          orEmpty(o["Name"]),
		Exchange:      orEmpty(o["Exchange"]),
		Sector:        orEmpty(o["Sector"]),
		Industry:      orEmpty(o["Industry"]),
		Description:   orEmpty(o["Description"]),
		Website:       orEmpty(o["OfficialSite"]),
		Headquarters:  orEmpty(o["Address"]),
		Country:       orEmpty(o["Country"]),
		Currency:      orEmpty(o["Currency"]),
		Employees:     parseInt(o["FullTimeEmployees"]),
		MarketCap:     parseNullDecimal(o["MarketCapitalization"]),
		PERatio:       parseNullDecimal(o["PERatio"]),
		PBRatio:       parseNullDecimal(o["PriceToBookRatio"]),
		EPS:           parseNullDecimal(o["EPS"]),
		Beta:          parseNullDecimal(o["Beta"]),
		DividendYield: parseNullDecimal(o["DividendYield"]),
		Revenue:       parseNullDecimal(o["RevenueTTM"]),
		Provider:      Name,
	}, nil
}

// GetFundamentals returns the numeric OVERVIEW metrics plus the fiscal year
// end. Missing metrics are omitted.
func (c *Client) GetFundamentals(ctx context.Context, symbol string) (model.Fundamentals, error) {
	o, err := c.overview(ctx, symbol)
	if err != nil || o == nil {
		return nil, err
	}

	f := model.Fundamentals{"symbol": o["Symbol"]}
	for field, metric := range overviewMetrics {
		if v := parseNullDecimal(o[field]); v.Valid {
			f[metric] = v.Decimal
		}
	}
	if fy := orEmpty(o["FiscalYearEnd"]); fy != "" {
		f["fiscal_year_end"] = fy
	}
	if lq := orEmpty(o["LatestQuarter"]); lq != "" {
		f["latest_quarter"] = lq
	}
	return f, nil
}

type earningsResponse struct {
	Annual []struct {
		FiscalDateEnding string `json:"fiscalDateEnding"`
		ReportedEPS      string `json:"reportedEPS"`
	}
	Quarterly []struct {
		FiscalDateEnding   string `json:"fiscalDateEnding"`
		ReportedDate       string `json:"reportedDate"`
		ReportedEPS        string `json:"reportedEPS"`
		EstimatedEPS       string `json:"estimatedEPS"`
		Surprise           string `json:"surprise"`
		SurprisePercentage string `json:"surprisePercentage"`
	}
}

// GetEarnings returns annual then quarterly reported earnings.
func (c *Client) GetEarnings(ctx context.Context, symbol string) ([]model.EarningsRecord, error) {
	body, err := c.query(ctx, "EARNINGS", map[string]string{"symbol": symbol})
	if err != nil {
		return nil, err
	}

	var r earningsResponse
	foundAnnual, err := decode(body, "annualEarnings", &r.Annual)
	if err != nil {
		return nil, err
	}
	foundQuarterly, err := decode(body, "quarterlyEarnings", &r.Quarterly)
	if err != nil {
		return nil, err
	}
	if !foundAnnual && !foundQuarterly {
		return nil, nil
	}

	records := make([]model.EarningsRecord, 0, len(r.Annual)+len(r.Quarterly))
	for _, a := range r.Annual {
		records = append(records, model.EarningsRecord{
			Symbol:           symbol,
			Period:           "annual",
			FiscalDateEnding: parseDate(a.FiscalDateEnding),
			ReportedEPS:      parseNullDecimal(a.ReportedEPS),
			Provider:         Name,
		})
	}
	for _, q := range r.Quarterly {
		records = append(records, model.EarningsRecord{
			Symbol:           symbol,
			Period:           "quarterly",
			FiscalDateEnding: parseDate(q.FiscalDateEnding),
			ReportedDate:     parseDate(q.ReportedDate),
			ReportedEPS:      parseNullDecimal(q.ReportedEPS),
			EstimatedEPS:     parseNullDecimal(q.EstimatedEPS),
			Surprise:         parseNullDecimal(q.Surprise),
			SurprisePercent:  parseNullDecimal(q.SurprisePercentage),
			Provider:         Name,
		})
	}
	return records, nil
}

type dividendRecord struct {
	ExDividendDate  string `json:"ex_dividend_date"`
	DeclarationDate string `json:"declaration_date"`
	RecordDate      string `json:"record_date"`
	PaymentDate     string `json:"payment_date"`
	Amount          string `json:"amount"`
}

// GetDividends returns the dividend history. Alpha Vantage keys events by
// ex-dividend date, so Date is left unset.
func (c *Client) GetDividends(ctx context.Context, symbol string) ([]model.Dividend, error) {
	body, err := c.query(ctx, "DIVIDENDS", map[string]string{"symbol": symbol})
	if err != nil {
		return nil, err
	}

	var raw []dividendRecord
	found, err := decode(body, "data", &raw)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	out := make([]model.Dividend, 0, len(raw))
	for _, d := range raw {
		out = append(out, model.Dividend{
			Symbol:          symbol,
			ExDate:          parseDate(d.ExDividendDate),
			DeclarationDate: parseDate(d.DeclarationDate),
			RecordDate:      parseDate(d.RecordDate),
			PaymentDate:     parseDate(d.PaymentDate),
			Amount:          parseNullDecimal(d.Amount),
			Provider:        Name,
		})
	}
	return out, nil
}
