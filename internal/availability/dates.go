package availability

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-day format used by the form and by Altegio.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD day as midnight UTC.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", ErrInvalidRange, value)
	}
	return t, nil
}

// Dates expands the inclusive calendar-day range [start, end]. It returns
// nil when end is before start.
func Dates(start, end time.Time) []time.Time {
	start = truncateDay(start)
	end = truncateDay(end)
	if end.Before(start) {
		return nil
	}
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// DayCount is the number of calendar days in [start, end].
func DayCount(start, end time.Time) int {
	start = truncateDay(start)
	end = truncateDay(end)
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
