package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseTimeRangeYesterday(t *testing.T) {
	now := time.Date(2026, 7, 31, 14, 0, 0, 0, time.UTC)
	start, end, ok := parseTimeRange("yesterday", now)
	require.True(t, ok)
	require.Equal(t, time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC), end)
}

func TestParseTimeRangeHoursAgo(t *testing.T) {
	now := time.Date(2026, 7, 31, 14, 0, 0, 0, time.UTC)
	start, end, ok := parseTimeRange("3 hours ago", now)
	require.True(t, ok)
	require.True(t, end.IsZero())
	require.Equal(t, now.Add(-3*time.Hour), start)
}

func TestParseTimeRangeLastNMinutes(t *testing.T) {
	now := time.Date(2026, 7, 31, 14, 0, 0, 0, time.UTC)
	start, _, ok := parseTimeRange("last 20 minutes", now)
	require.True(t, ok)
	require.Equal(t, now.Add(-20*time.Minute), start)
}

func TestParseTimeRangeISORange(t *testing.T) {
	start, end, ok := parseTimeRange("2023-01-01T10:00:00 to 2023-01-01T12:00:00", time.Now())
	require.True(t, ok)
	require.Equal(t, 2023, start.Year())
	require.True(t, end.After(start))
}

func TestParseTimeRangeInvalid(t *testing.T) {
	_, _, ok := parseTimeRange("not a time", time.Now())
	require.False(t, ok)
}
