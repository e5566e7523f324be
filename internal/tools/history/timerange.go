package history

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	agoPattern  = regexp.MustCompile(`^(\d+)\s+(hour|minute|day)s?\s+ago$`)
	lastPattern = regexp.MustCompile(`^last\s+(\d+)\s+(hour|minute|day)s?$`)
)

// parseTimeRange parses the small natural-language time grammar spec §4.2
// names: "yesterday", "today", "N hours/minutes/days ago", "last N
// hours/minutes/days", ISO instants, and "<iso> to <iso>" ranges. It returns
// the zero time for either bound when unbounded, and ok=false when the
// string parses as none of the above.
func parseTimeRange(s string, now time.Time) (start, end time.Time, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return time.Time{}, time.Time{}, false
	}
	now = now.UTC()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch s {
	case "yesterday":
		return todayStart.AddDate(0, 0, -1), todayStart, true
	case "today":
		return todayStart, time.Time{}, true
	}

	if m := agoPattern.FindStringSubmatch(s); m != nil {
		return now.Add(-durationFor(m[1], m[2])), time.Time{}, true
	}
	if m := lastPattern.FindStringSubmatch(s); m != nil {
		return now.Add(-durationFor(m[1], m[2])), time.Time{}, true
	}

	if strings.Contains(s, " to ") {
		parts := strings.SplitN(s, " to ", 2)
		if len(parts) == 2 {
			start, sOK := parseISO(parts[0])
			end, eOK := parseISO(parts[1])
			if sOK && eOK {
				return start, end, true
			}
		}
	}

	if dt, isoOK := parseISO(s); isoOK {
		return dt, time.Time{}, true
	}

	return time.Time{}, time.Time{}, false
}

func durationFor(valStr, unit string) time.Duration {
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0
	}
	switch unit {
	case "hour":
		return time.Duration(val) * time.Hour
	case "minute":
		return time.Duration(val) * time.Minute
	case "day":
		return time.Duration(val) * 24 * time.Hour
	default:
		return 0
	}
}

func parseISO(s string) (time.Time, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "Z", "+00:00")
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
