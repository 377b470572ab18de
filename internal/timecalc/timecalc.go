package timecalc

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatClock formats d as zero-padded HH:MM. Hours are not rolled over into
// days, so 25h30m renders as "25:30". Seconds are dropped after rounding.
func FormatClock(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	seconds := int64(d.Round(time.Second) / time.Second)
	h := seconds / 3600
	m := (seconds % 3600) / 60
	return fmt.Sprintf("%s%02d:%02d", sign, h, m)
}

// ParseClock parses "HH:MM" (or "H:MM") into a duration since midnight.
func ParseClock(s string) (time.Duration, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("clock value %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 {
		return 0, fmt.Errorf("clock value %q: bad hours", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || len(mm) != 2 {
		return 0, fmt.Errorf("clock value %q: bad minutes", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// CeilTo rounds d up to the next multiple of step. A non-positive step leaves
// d unchanged.
func CeilTo(d, step time.Duration) time.Duration {
	if step <= 0 || d%step == 0 {
		return d
	}
	if d < 0 {
		return d - d%step
	}
	return d - d%step + step
}

// StartOfDay returns 00:00:00 of the same day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the first instant of the following day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SinceMidnight returns the wall-clock offset of t from the start of its day.
func SinceMidnight(t time.Time) time.Duration {
	return t.Sub(StartOfDay(t))
}

// IsWeekend reports whether t is a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
