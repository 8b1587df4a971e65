package model

import "time"

const (
	DefaultNewsLimit             = 10
	DefaultEconomicEventsLimit   = 50
	DefaultEarningsCalendarLimit = 10

	// DefaultCalendarWindow is the look-ahead used by calendar queries that
	// do not carry an explicit end date.
	DefaultCalendarWindow = 30 * 24 * time.Hour
)

// NewsQuery selects news for one symbol, or general market news when
// Symbol is empty.
type NewsQuery struct {
	Symbol string
	Limit  int
}

// EconomicEventsQuery filters an economic calendar. Zero values mean "no
// filter" except for the date window, see WithDefaults.
type EconomicEventsQuery struct {
	Countries  []string
	Importance int
	Start      time.Time
	End        time.Time
	Limit      int
}

// EarningsCalendarQuery filters an earnings calendar.
type EarningsCalendarQuery struct {
	Symbol string
	Start  time.Time
	End    time.Time
	Limit  int
}

// WithDefaults fills the limit and the date window the way callers expect:
// from today until DefaultCalendarWindow later.
func (q EconomicEventsQuery) WithDefaults(now time.Time) EconomicEventsQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultEconomicEventsLimit
	}
	q.Start, q.End = defaultWindow(q.Start, q.End, now)
	return q
}

// WithDefaults fills the limit and the date window.
func (q EarningsCalendarQuery) WithDefaults(now time.Time) EarningsCalendarQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultEarningsCalendarLimit
	}
	q.Start, q.End = defaultWindow(q.Start, q.End, now)
	return q
}

// WithDefaults fills the limit.
func (q NewsQuery) WithDefaults() NewsQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultNewsLimit
	}
	return q
}

func defaultWindow(start, end, now time.Time) (time.Time, time.Time) {
	today := Day(now)
	if start.IsZero() {
		start = today
	}
	if end.IsZero() {
		end = today.Add(DefaultCalendarWindow)
	}
	return start, end
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DateKey renders the calendar date of t as YYYY-MM-DD. The zero time
// renders as the empty string.
func DateKey(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}
