package util

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatCount renders an integer with thousands separators
func FormatCount(n int) string {
	return humanize.Comma(int64(n))
}

// FormatAgo renders a timestamp relative to now ("3 hours ago")
func FormatAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// FormatDuration rounds a duration for summaries
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

// FormatPercent renders a 0..100 value with one decimal
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}
