package timeframe

import (
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/now"
)

// Unit is a calendar unit a window or a time series bucket spans.
type Unit int

const (
	Day Unit = iota + 1
	Week
	Month
	Year
)

var unitNames = map[Unit]string{
	Day:   "day",
	Week:  "week",
	Month: "month",
	Year:  "year",
}

func (u Unit) String() string {
	if name, ok := unitNames[u]; ok {
		return name
	}
	return fmt.Sprintf("unit(%d)", int(u))
}

// Valid reports whether u is one of the four calendar units.
func (u Unit) Valid() bool {
	_, ok := unitNames[u]
	return ok
}

// ParseUnit maps "day", "week", "month" or "year" (any case) to a Unit.
func ParseUnit(s string) (Unit, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for u, name := range unitNames {
		if name == needle {
			return u, nil
		}
	}
	return 0, fmt.Errorf("unknown time unit: %q", s)
}

type TimeProvider interface {
	Now(loc *time.Location) time.Time
}

// DefaultTimeProvider reads the system clock.
type DefaultTimeProvider struct{}

func (p *DefaultTimeProvider) Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// FixedTimeProvider always returns the same instant, converted to the requested location.
type FixedTimeProvider struct {
	Time time.Time
}

func (p *FixedTimeProvider) Now(loc *time.Location) time.Time {
	return p.Time.In(loc)
}

// Range is an inclusive [From, Until] interval.
type Range struct {
	From  time.Time
	Until time.Time
}

// NewRange builds a Range, swapping the bounds when they are inverted.
func NewRange(from, until time.Time) Range {
	if from.After(until) {
		from, until = until, from
	}
	return Range{From: from, Until: until}
}

func (r Range) String() string {
	return r.From.Format(time.RFC3339) + " .. " + r.Until.Format(time.RFC3339)
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	return now.With(t).BeginningOfDay()
}

// EndOfDay returns the last nanosecond of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	return now.With(t).EndOfDay()
}

// Today returns the start of the current day according to p.
func Today(p TimeProvider, loc *time.Location) time.Time {
	return StartOfDay(p.Now(loc))
}

// Sub steps t back n calendar units. Month and year steps keep the day of
// month when it exists and clamp to the last day otherwise, so Mar 31 minus
// one month is Feb 28 (or 29) and Feb 29 minus one year is Feb 28. The wall
// clock is preserved across DST transitions.
func Sub(t time.Time, unit Unit, n int) time.Time {
	switch unit {
	case Day:
		return t.AddDate(0, 0, -n)
	case Week:
		return t.AddDate(0, 0, -7*n)
	case Month:
		return addMonthsClamped(t, -n)
	case Year:
		return addMonthsClamped(t, -12*n)
	default:
		return t
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())

	if last := daysIn(first.Year(), first.Month(), t.Location()); day > last {
		day = last
	}

	return time.Date(first.Year(), first.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// Relative returns the window of one calendar unit ending at end.
//
//	Year:  [StartOfDay(end - 1 year), EndOfDay(end)]
//	Month: [StartOfDay(end - 1 month + 1 day), EndOfDay(end)]
//	Week:  [StartOfDay(end - 1 week + 1 day), EndOfDay(end)]
//	Day:   [end, EndOfDay(end)]
//
// The day window keeps end as given instead of moving it to midnight; callers
// wanting a full calendar day pass a start-of-day instant or use ForDay.
func Relative(unit Unit, end time.Time) (Range, error) {
	switch unit {
	case Year:
		return NewRange(StartOfDay(Sub(end, Year, 1)), EndOfDay(end)), nil
	case Month:
		return NewRange(StartOfDay(Sub(end, Month, 1).AddDate(0, 0, 1)), EndOfDay(end)), nil
	case Week:
		return NewRange(StartOfDay(Sub(end, Week, 1).AddDate(0, 0, 1)), EndOfDay(end)), nil
	case Day:
		return NewRange(end, EndOfDay(end)), nil
	default:
		return Range{}, fmt.Errorf("unsupported time unit: %v", unit)
	}
}

// ForDay returns the full calendar day containing day.
func ForDay(day time.Time) Range {
	return NewRange(StartOfDay(day), EndOfDay(day))
}
