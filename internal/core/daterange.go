package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/valter-silva-au/workpulse/pkg/models"
)

// lastMicrosecond is the latest instant of a UTC day at the microsecond
// precision timestamps are stored with.
const lastMicrosecond = 24*time.Hour - time.Microsecond

// DayRange returns the inclusive bounds of the UTC calendar day containing
// date: 00:00:00.000000 through 23:59:59.999999.
func DayRange(date time.Time) (time.Time, time.Time) {
	d := date.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(lastMicrosecond)
}

// SpanRange returns the inclusive bounds covering every UTC day from start
// through end.
func SpanRange(start, end time.Time) (time.Time, time.Time) {
	from, _ := DayRange(start)
	_, to := DayRange(end)
	return from, to
}

// ParseDate parses a YYYY-MM-DD date. An empty string yields the zero time,
// meaning "no date".
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}
