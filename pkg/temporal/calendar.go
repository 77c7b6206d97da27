package temporal

import "time"

// Date builds a UTC calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// TruncateDay drops the time-of-day component.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from a to b. Negative when b precedes a.
func DaysBetween(a, b time.Time) int {
	return int(TruncateDay(b).Sub(TruncateDay(a)).Hours() / 24)
}

// EachDay calls fn for every calendar day in [start, end]. It stops early when
// fn returns false.
func EachDay(start, end time.Time, fn func(day time.Time, index int) bool) {
	start, end = TruncateDay(start), TruncateDay(end)
	for d, i := start, 0; !d.After(end); d, i = d.AddDate(0, 0, 1), i+1 {
		if !fn(d, i) {
			return
		}
	}
}

// ClampTime limits t to at most limit.
func ClampTime(t, limit time.Time) time.Time {
	if t.After(limit) {
		return limit
	}
	return t
}

// Window is a named, inclusive date range. A zero End leaves it open-ended.
type Window struct {
	Name  string
	Start time.Time
	End   time.Time
}

// Contains reports whether date falls inside the window, both ends inclusive.
func (w Window) Contains(date time.Time) bool {
	d := TruncateDay(date)
	if d.Before(TruncateDay(w.Start)) {
		return false
	}
	return w.End.IsZero() || !d.After(TruncateDay(w.End))
}

// Elapsed returns the whole days from the window start to date.
func (w Window) Elapsed(date time.Time) float64 {
	return float64(DaysBetween(w.Start, date))
}

// Span returns the window length in days, or zero for open-ended windows.
func (w Window) Span() float64 {
	if w.End.IsZero() {
		return 0
	}
	return float64(DaysBetween(w.Start, w.End))
}
