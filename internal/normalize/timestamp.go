// Package normalize holds the pure helpers shared by ingestion and queries:
// XMLTV timestamp parsing, canonical channel ids, display formatting and
// ordered fallback field extraction.
package normalize

import (
	"regexp"
	"strconv"
	"time"
)

// timestampPattern matches "YYYYMMDDHHMMSS" followed by optional whitespace
// and a signed four digit UTC offset.
var timestampPattern = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})(\d{2})(\d{2})(\d{2})\s*([+-])(\d{2})(\d{2})$`)

// ParseTimestamp parses an XMLTV timestamp such as "20240115080000 +0100"
// into an absolute UTC instant. It reports false for anything that does not
// match the layout exactly or that names an impossible calendar value.
func ParseTimestamp(raw string) (time.Time, bool) {
	m := timestampPattern.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, false
	}

	n := make([]int, 0, 8)
	for _, s := range []string{m[1], m[2], m[3], m[4], m[5], m[6], m[8], m[9]} {
		v, err := strconv.Atoi(s)
		if err != nil {
			return time.Time{}, false
		}
		n = append(n, v)
	}
	year, month, day, hour, minute, second := n[0], n[1], n[2], n[3], n[4], n[5]
	offHours, offMinutes := n[6], n[7]

	if hour > 23 || minute > 59 || second > 59 || offHours > 23 || offMinutes > 59 {
		return time.Time{}, false
	}

	offset := offHours*3600 + offMinutes*60
	if m[7] == "-" {
		offset = -offset
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.FixedZone("", offset))

	// time.Date normalises out-of-range dates (Feb 30 becomes Mar 2), so
	// anything that does not round-trip is rejected.
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}

	return t.UTC(), true
}

// ToMillis converts an instant to epoch milliseconds.
func ToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts epoch milliseconds to a UTC instant.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
