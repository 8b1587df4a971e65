package alphavantage

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Alpha Vantage sends numbers as strings and uses "None", "-" or an empty
// string for missing values.
func missingText(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == "None" || s == "-" || s == "."
}

// parseDecimal returns zero for missing or malformed values. A trailing
// percent sign is ignored.
func parseDecimal(s string) decimal.Decimal {
	return parseNullDecimal(s).Decimal
}

func parseNullDecimal(s string) decimal.NullDecimal {
	if missingText(s) {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// parseInt accepts integral values written as decimals, e.g. "1.0".
func parseInt(s string) int64 {
	return parseDecimal(s).IntPart()
}

// parseDate parses YYYY-MM-DD; missing or malformed dates are the zero time.
func parseDate(s string) time.Time {
	if missingText(s) {
		return time.Time{}
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func orEmpty(s string) string {
	if missingText(s) {
		return ""
	}
	return strings.TrimSpace(s)
}
