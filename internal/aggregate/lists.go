package aggregate

import (
	"sort"
	"strings"

	"marketbrain/internal/model"
)

// newsTitlePrefix is how many leading characters of a lower-cased title
// identify an article across providers.
const newsTitlePrefix = 100

// Options concatenates the chains and drops repeated contracts, keyed by
// strike, expiration and option type. The type is compared case-folded so
// "Call" and "call" from different providers name the same contract. The
// first provider's contract wins.
func Options(sources []Source[[]model.OptionQuote]) []model.OptionQuote {
	return dedupe(concat(sources), func(o model.OptionQuote) string {
		return o.Strike.String() + "|" + model.DateKey(o.Expiration) + "|" + strings.ToLower(o.OptionType)
	})
}

// EconomicEvents concatenates calendars, drops repeats of the same event on
// the same day and orders by importance, then time, both descending.
func EconomicEvents(sources []Source[[]model.EconomicEvent]) []model.EconomicEvent {
	events := dedupe(concat(sources), func(e model.EconomicEvent) string {
		return e.EventName + "|" + model.DateKey(e.Timestamp)
	})

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Importance != events[j].Importance {
			return events[i].Importance > events[j].Importance
		}
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	return events
}

// EarningsCalendar concatenates calendars, keeps one entry per symbol and
// date, and orders by date ascending.
func EarningsCalendar(sources []Source[[]model.EarningsCalendarEntry]) []model.EarningsCalendarEntry {
	entries := dedupe(concat(sources), func(e model.EarningsCalendarEntry) string {
		return e.Symbol + "|" + model.DateKey(e.Date)
	})

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date.Before(entries[j].Date) })
	return entries
}

// News orders all articles newest first and keeps the first article for
// each title prefix.
func News(sources []Source[[]model.NewsArticle]) []model.NewsArticle {
	articles := concat(sources)
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})
	return dedupe(articles, newsKey)
}

func newsKey(a model.NewsArticle) string {
	title := []rune(strings.ToLower(a.Title))
	if len(title) > newsTitlePrefix {
		title = title[:newsTitlePrefix]
	}
	return string(title)
}

// Dividends concatenates histories and keeps one record per payment date,
// using the ex-dividend date when a provider omits the payment date.
// Records with neither date share the empty key, so only the first is kept.
func Dividends(sources []Source[[]model.Dividend]) []model.Dividend {
	return dedupe(concat(sources), func(d model.Dividend) string {
		if k := model.DateKey(d.Date); k != "" {
			return k
		}
		return model.DateKey(d.ExDate)
	})
}

// Earnings concatenates every provider's earnings records.
func Earnings(sources []Source[[]model.EarningsRecord]) []model.EarningsRecord {
	return concat(sources)
}
