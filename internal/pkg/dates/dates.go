package dates

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the wire format for calendar dates.
const Layout = "2006-01-02"

var acceptedLayouts = []string{Layout, "02/01/2006", "2006/01/02", time.RFC3339}

// Of truncates t to its calendar date at UTC midnight. Borrow dates are
// DATE columns, so every comparison in the ledger happens on these values.
func Of(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole number of days from a to b (negative when b is before a).
func DaysBetween(a, b time.Time) int {
	return int(Of(b).Sub(Of(a)).Hours() / 24)
}

// AddDays shifts a calendar date by n days.
func AddDays(t time.Time, n int) time.Time {
	return Of(t).AddDate(0, 0, n)
}

// Parse accepts ISO dates plus the common day-first spreadsheet formats.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range acceptedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Of(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
}

// WeekStart returns the Monday of the week containing t.
func WeekStart(t time.Time) time.Time {
	d := Of(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}
