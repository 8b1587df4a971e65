package aggregate

import (
	"sort"
	"strconv"

	"marketbrain/internal/model"
)

// Historical merges daily bars. Bars are grouped by calendar date; the first
// bar of each date wins and borrows adjusted close, dividend and split from
// later bars that have them. The result is sorted by date ascending.
func Historical(sources []Source[[]model.HistoricalPrice]) []model.HistoricalPrice {
	return mergeBars(sources, func(p model.HistoricalPrice) string {
		return model.DateKey(p.Date)
	})
}

// Intraday applies the same rules as Historical but groups bars by their
// exact start time, so a session keeps all of its bars.
func Intraday(sources []Source[[]model.HistoricalPrice]) []model.HistoricalPrice {
	return mergeBars(sources, func(p model.HistoricalPrice) string {
		return strconv.FormatInt(p.Date.UnixNano(), 10)
	})
}

func mergeBars(sources []Source[[]model.HistoricalPrice], key func(model.HistoricalPrice) string) []model.HistoricalPrice {
	all := concat(sources)

	index := make(map[string]int, len(all))
	merged := make([]model.HistoricalPrice, 0, len(all))
	for _, bar := range all {
		k := key(bar)
		i, ok := index[k]
		if !ok {
			index[k] = len(merged)
			merged = append(merged, bar)
			continue
		}
		primary := &merged[i]
		fillDecimal(&primary.AdjustedClose, bar.AdjustedClose)
		fillDecimal(&primary.Dividend, bar.Dividend)
		fillDecimal(&primary.Split, bar.Split)
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Date.Before(merged[j].Date) })
	return merged
}
