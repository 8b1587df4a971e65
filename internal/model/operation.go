package model

import "strings"

// Operation is the logical name of a market data request. It keys the
// aggregation strategy table and prefixes cache keys.
type Operation string

const (
	OpQuote               Operation = "quote"
	OpHistorical          Operation = "historical"
	OpIntraday            Operation = "intraday"
	OpOptionsChain        Operation = "options_chain"
	OpCompanyInfo         Operation = "company_info"
	OpFundamentals        Operation = "fundamentals"
	OpEarnings            Operation = "earnings"
	OpDividends           Operation = "dividends"
	OpNews                Operation = "news"
	OpEconomicEvents      Operation = "economic_events"
	OpEarningsCalendar    Operation = "earnings_calendar"
	OpEarningsTranscript  Operation = "earnings_transcript"
	OpTechnicalIndicators Operation = "technical_indicators"
	OpEconomicData        Operation = "economic_data"
	OpMarketStatus        Operation = "market_status"
)

// All returns every operation the orchestrator exposes.
func All() []Operation {
	return []Operation{
		OpQuote,
		OpHistorical,
		OpIntraday,
		OpOptionsChain,
		OpCompanyInfo,
		OpFundamentals,
		OpEarnings,
		OpDividends,
		OpNews,
		OpEconomicEvents,
		OpEarningsCalendar,
		OpEarningsTranscript,
		OpTechnicalIndicators,
		OpEconomicData,
		OpMarketStatus,
	}
}

func (o Operation) String() string { return string(o) }

// Default intervals used when the caller does not pick one.
const (
	DefaultHistoricalInterval = "1d"
	DefaultIntradayInterval   = "5min"
	DefaultIndicatorInterval  = "daily"
)

var intervalAliases = map[string]string{
	"1min":    "1min",
	"5min":    "5min",
	"15min":   "15min",
	"30min":   "30min",
	"60min":   "60min",
	"1h":      "60min",
	"1d":      "daily",
	"daily":   "daily",
	"1w":      "weekly",
	"weekly":  "weekly",
	"1m":      "monthly",
	"monthly": "monthly",
}

// NormalizeInterval maps the common interval spellings onto one canonical
// form. Unknown intervals are returned unchanged.
func NormalizeInterval(interval string) string {
	if v, ok := intervalAliases[strings.ToLower(strings.TrimSpace(interval))]; ok {
		return v
	}
	return interval
}
