package aggregate

import (
	"maps"

	"marketbrain/internal/model"
)

// CompanyInfo starts from the most complete profile, counting non-empty
// description, sector, industry and website, and fills its gaps from the
// others. A strictly longer description from another provider replaces the
// primary's.
func CompanyInfo(sources []Source[*model.CompanyInfo]) *model.CompanyInfo {
	var primary *model.CompanyInfo
	best := -1
	for _, s := range sources {
		if s.Data == nil {
			continue
		}
		if n := completeness(s.Data); n > best {
			primary, best = s.Data, n
		}
	}
	if primary == nil {
		return nil
	}

	out := *primary
	for _, s := range sources {
		c := s.Data
		if c == nil || c == primary {
			continue
		}
		fillString(&out.Symbol, c.Symbol)
		fillString(&out.Name, c.Name)
		fillString(&out.Exchange, c.Exchange)
		fillString(&out.Sector, c.Sector)
		fillString(&out.Industry, c.Industry)
		fillString(&out.Website, c.Website)
		fillString(&out.CEO, c.CEO)
		fillString(&out.Headquarters, c.Headquarters)
		fillString(&out.Country, c.Country)
		fillString(&out.Currency, c.Currency)
		fillString(&out.Phone, c.Phone)
		fillString(&out.LogoURL, c.LogoURL)
		fillString(&out.IPODate, c.IPODate)
		if out.Employees == 0 {
			out.Employees = c.Employees
		}
		fillDecimal(&out.MarketCap, c.MarketCap)
		fillDecimal(&out.PERatio, c.PERatio)
		fillDecimal(&out.PBRatio, c.PBRatio)
		fillDecimal(&out.EPS, c.EPS)
		fillDecimal(&out.Beta, c.Beta)
		fillDecimal(&out.DividendYield, c.DividendYield)
		fillDecimal(&out.Revenue, c.Revenue)

		if len(c.Description) > len(out.Description) {
			out.Description = c.Description
		}
	}
	return &out
}

func completeness(c *model.CompanyInfo) int {
	n := 0
	for _, f := range []string{c.Description, c.Sector, c.Industry, c.Website} {
		if f != "" {
			n++
		}
	}
	return n
}

func fillString(dst *string, src string) {
	if *dst == "" && src != "" {
		*dst = src
	}
}

// Fundamentals merges the metric maps in order; later providers overwrite
// keys reported by earlier ones.
func Fundamentals(sources []Source[model.Fundamentals]) model.Fundamentals {
	out := make(model.Fundamentals)
	for _, s := range sources {
		maps.Copy(out, s.Data)
	}
	return out
}

// MarketStatus merges like Fundamentals.
func MarketStatus(sources []Source[model.MarketStatus]) model.MarketStatus {
	out := make(model.MarketStatus)
	for _, s := range sources {
		maps.Copy(out, s.Data)
	}
	return out
}

// TechnicalIndicators returns the series with the most points.
func TechnicalIndicators(sources []Source[*model.TechnicalIndicator]) *model.TechnicalIndicator {
	return longest(sources, func(t *model.TechnicalIndicator) int { return len(t.Values) })
}

// EarningsTranscript returns the longest transcript.
func EarningsTranscript(sources []Source[*model.EarningsTranscript]) *model.EarningsTranscript {
	return longest(sources, func(t *model.EarningsTranscript) int { return len(t.Transcript) })
}

// longest returns the non-nil payload with the largest size. Ties go to the
// earlier source.
func longest[T any](sources []Source[*T], size func(*T) int) *T {
	var best *T
	bestSize := -1
	for _, s := range sources {
		if s.Data == nil {
			continue
		}
		if n := size(s.Data); n > bestSize {
			best, bestSize = s.Data, n
		}
	}
	return best
}
