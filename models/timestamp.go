package models

import (
	"strconv"
	"strings"
	"time"
)

// epoch values above this are treated as milliseconds
const epochMillisCutoff = 1e12

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp understands the clocks used by the feeds: unix seconds or
// milliseconds (possibly fractional) and the usual date-time layouts.
func ParseTimestamp(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f <= 0 {
			return time.Time{}, false
		}
		if f >= epochMillisCutoff {
			return time.UnixMilli(int64(f)).UTC(), true
		}
		sec := int64(f)
		nsec := int64((f - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC(), true
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
