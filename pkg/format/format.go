// Package format provides human-readable formatting for CLI and status output.
package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Number formats a number with thousand separators.
// Example: Number(1234567) => "1,234,567"
func Number(n int64) string {
	return printer.Sprintf("%d", n)
}

// NumberCompact formats a number in compact notation.
// Example: NumberCompact(1234567) => "1.2M"
func NumberCompact(n int64) string {
	switch {
	case n >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", float64(n)/1_000_000_000)
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return strconv.FormatInt(n, 10)
	}
}

// Bytes formats a byte count using binary units.
// Example: Bytes(1536) => "1.5 KiB"
func Bytes(n uint64) string {
	return humanize.IBytes(n)
}

// RelativeTime formats t relative to now. The zero time is "never".
// Example: "3 hours ago", "2 minutes from now"
func RelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

// CronDescription describes common five-field cron expressions.
// Anything it does not recognise is returned unchanged.
// Example: CronDescription("0 3 * * *") => "Daily at 3AM"
func CronDescription(expr string) string {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return expr
	}
	minute, hour, dom, month, dow := fields[0], fields[1], fields[2], fields[3], fields[4]
	if month != "*" {
		return expr
	}

	if strings.HasPrefix(minute, "*/") && hour == "*" && dom == "*" && dow == "*" {
		if n, err := strconv.Atoi(minute[2:]); err == nil && n > 0 {
			return fmt.Sprintf("Every %d minutes", n)
		}
	}

	m, mErr := strconv.Atoi(minute)
	if mErr != nil {
		return expr
	}
	if hour == "*" && dom == "*" && dow == "*" {
		if m == 0 {
			return "Every hour"
		}
		return fmt.Sprintf("Every hour at :%02d", m)
	}

	h, hErr := strconv.Atoi(hour)
	if hErr != nil {
		return expr
	}
	at := clock(h, m)
	switch {
	case dom == "*" && dow == "*":
		return "Daily at " + at
	case dom == "*":
		if d, err := strconv.Atoi(dow); err == nil && d >= 0 && d < len(dayNames) {
			return fmt.Sprintf("%ss at %s", dayNames[d], at)
		}
	case dow == "*":
		if d, err := strconv.Atoi(dom); err == nil {
			return fmt.Sprintf("%s of each month at %s", humanize.Ordinal(d), at)
		}
	}
	return expr
}

var dayNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

func clock(hour, minute int) string {
	switch {
	case hour == 0 && minute == 0:
		return "midnight"
	case hour == 12 && minute == 0:
		return "noon"
	}

	period := "AM"
	h12 := hour
	if hour >= 12 {
		period = "PM"
		if hour > 12 {
			h12 = hour - 12
		}
	}
	if hour == 0 {
		h12 = 12
	}
	if minute == 0 {
		return fmt.Sprintf("%d%s", h12, period)
	}
	return fmt.Sprintf("%d:%02d%s", h12, minute, period)
}
