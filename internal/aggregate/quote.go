package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"marketbrain/internal/model"
)

var two = decimal.NewFromInt(2)

// Quotes picks the most recent quote as the primary, replaces its price by
// the median of all non-zero prices and its volume by the largest non-zero
// volume, then fills the extended fields it lacks from the other quotes.
func Quotes(sources []Source[*model.Quote]) *model.Quote {
	var primary *model.Quote
	for _, s := range sources {
		if s.Data == nil {
			continue
		}
		if primary == nil || s.Data.Timestamp.After(primary.Timestamp) {
			primary = s.Data
		}
	}
	if primary == nil {
		return nil
	}

	out := *primary

	var prices []decimal.Decimal
	var volumes []int64
	for _, s := range sources {
		if s.Data == nil {
			continue
		}
		if !s.Data.Price.IsZero() {
			prices = append(prices, s.Data.Price)
		}
		if s.Data.Volume != 0 {
			volumes = append(volumes, s.Data.Volume)
		}
	}
	if len(prices) > 1 {
		out.Price = median(prices)
	}
	if len(volumes) > 1 {
		out.Volume = maxInt64(volumes)
	}

	for _, s := range sources {
		q := s.Data
		if q == nil || q == primary {
			continue
		}
		fillDecimal(&out.MarketCap, q.MarketCap)
		fillDecimal(&out.PERatio, q.PERatio)
		fillDecimal(&out.Week52High, q.Week52High)
		fillDecimal(&out.Week52Low, q.Week52Low)
		fillDecimal(&out.DayHigh, q.DayHigh)
		fillDecimal(&out.DayLow, q.DayLow)
		if out.AvgVolume == 0 && q.AvgVolume != 0 {
			out.AvgVolume = q.AvgVolume
		}
	}
	return &out
}

// median of a non-empty list. Even-length lists average the middle pair.
func median(values []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(two)
}

func maxInt64(values []int64) int64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// missing treats both an absent value and a zero as "not reported".
func missing(d decimal.NullDecimal) bool {
	return !d.Valid || d.Decimal.IsZero()
}

// fillDecimal copies src into dst when dst is missing and src is not.
func fillDecimal(dst *decimal.NullDecimal, src decimal.NullDecimal) {
	if missing(*dst) && !missing(src) {
		*dst = src
	}
}
