package util

import (
	"strconv"
	"time"
)

// exchangeLayout is the zone-less layout used by exchange candle payloads.
const exchangeLayout = "2006-01-02T15:04:05"

// ParseTime tries RFC3339, RFC3339Nano, the zone-less exchange layout (read as UTC)
// and unix seconds/milliseconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation(exchangeLayout, s, time.UTC); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return FromUnixAny(ts), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// FromUnixAny converts unix seconds or milliseconds to time.
func FromUnixAny(ts int64) time.Time {
	if ts > 1e11 { // ms
		return time.UnixMilli(ts)
	}
	return time.Unix(ts, 0)
}

// DayStart returns midnight of t's calendar date in loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// WeekStart returns midnight of the Monday starting t's ISO week in loc.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	d := DayStart(t, loc)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// DayLabel formats a period date as MM-DD.
func DayLabel(t time.Time) string {
	return t.Format("01-02")
}
