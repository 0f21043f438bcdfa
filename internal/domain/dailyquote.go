package domain

import (
	"fmt"
	"time"
)

// CalendarDate is a (year, month, day) triple in a fixed timezone.
// The zero value means "no date" and never equals a real day.
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) CalendarDate {
	y, m, d := t.In(loc).Date()
	return CalendarDate{Year: y, Month: m, Day: d}
}

// IsZero reports whether the date was never set.
func (d CalendarDate) IsZero() bool {
	return d == CalendarDate{}
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d CalendarDate) String() string {
	if d.IsZero() {
		return ""
	}

	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// QuoteCacheEntry is the day's set of generated greeting quotes.
// Texts is never empty: before the first successful refresh it holds the
// single fallback text.
type QuoteCacheEntry struct {
	ReferenceDate CalendarDate
	Texts         []string
}

// IsFreshFor reports whether the entry holds a real generation for day.
// A single text is the placeholder, never a completed refresh.
func (e *QuoteCacheEntry) IsFreshFor(day CalendarDate) bool {
	return e.ReferenceDate == day && len(e.Texts) > 1
}

// Before reports whether d is an earlier day than other.
func (d CalendarDate) Before(other CalendarDate) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}

	if d.Month != other.Month {
		return d.Month < other.Month
	}

	return d.Day < other.Day
}
