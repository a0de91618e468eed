package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysBetweenIgnoresClockTime(t *testing.T) {
	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 13, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, 3, DaysBetween(due, now))
	assert.Equal(t, -3, DaysBetween(now, due))
}

func TestParse(t *testing.T) {
	d, err := Parse(" 2025-09-01 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), d)

	d, err = Parse("15/01/2024")
	require.NoError(t, err)
	assert.Equal(t, time.January, d.Month())

	_, err = Parse("yesterday")
	assert.Error(t, err)
}

func TestWeekStartIsMonday(t *testing.T) {
	sunday := time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), WeekStart(sunday))
	monday := time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), WeekStart(monday))
}

func TestAddDays(t *testing.T) {
	start := time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), AddDays(start, 14))
}
