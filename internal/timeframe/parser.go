package timeframe

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format accepted next to RFC3339.
const DateLayout = "2006-01-02"

// ParseInstant parses an RFC3339 timestamp or a plain date. A plain date is
// read as midnight in loc; an RFC3339 value keeps its own offset and is then
// expressed in loc so calendar math happens in one timezone.
// An empty string yields the zero time, which the cruncher treats as "use the default".
func ParseInstant(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(loc), nil
	}

	t, err := time.ParseInLocation(DateLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected %s or RFC3339", value, DateLayout)
	}

	return t, nil
}

// ParseEndInstant is ParseInstant for upper bounds: a plain date means the end of that day.
func ParseEndInstant(value string, loc *time.Location) (time.Time, error) {
	t, err := ParseInstant(value, loc)
	if err != nil || t.IsZero() {
		return t, err
	}

	if _, rfcErr := time.Parse(time.RFC3339, value); rfcErr != nil {
		return EndOfDay(t), nil
	}

	return t, nil
}
