package normalize

import (
	"regexp"
	"strconv"
	"time"
)

// DefaultDisplayOffset is used whenever a configured offset is missing or malformed.
const DefaultDisplayOffset = "+1:00"

var displayOffsetPattern = regexp.MustCompile(`^([+-])(\d{1,2}):(\d{2})$`)

// DisplayOffset is a parsed presentation offset. It only affects formatting;
// stored values and comparisons always use absolute instants.
type DisplayOffset struct {
	spec string
	loc  *time.Location
}

// ParseDisplayOffset parses an offset of the form "+H:MM" or "-HH:MM".
// Invalid input falls back to DefaultDisplayOffset.
func ParseDisplayOffset(spec string) DisplayOffset {
	if off, ok := parseOffset(spec); ok {
		return off
	}
	off, _ := parseOffset(DefaultDisplayOffset)
	return off
}

// ValidDisplayOffset reports whether spec would be accepted without falling back.
func ValidDisplayOffset(spec string) bool {
	_, ok := parseOffset(spec)
	return ok
}

func parseOffset(spec string) (DisplayOffset, bool) {
	m := displayOffsetPattern.FindStringSubmatch(spec)
	if m == nil {
		return DisplayOffset{}, false
	}
	hours, _ := strconv.Atoi(m[2])
	minutes, _ := strconv.Atoi(m[3])
	if minutes > 59 {
		return DisplayOffset{}, false
	}
	seconds := hours*3600 + minutes*60
	if m[1] == "-" {
		seconds = -seconds
	}
	return DisplayOffset{spec: spec, loc: time.FixedZone(spec, seconds)}, true
}

// String returns the offset spec in effect.
func (o DisplayOffset) String() string {
	if o.loc == nil {
		return DefaultDisplayOffset
	}
	return o.spec
}

// Location returns the fixed zone for the offset.
func (o DisplayOffset) Location() *time.Location {
	if o.loc == nil {
		return ParseDisplayOffset(DefaultDisplayOffset).loc
	}
	return o.loc
}

// Format renders t as "HH:MM" shifted by the offset.
func (o DisplayOffset) Format(t time.Time) string {
	return t.In(o.Location()).Format("15:04")
}

// FormatForDisplay renders t as "HH:MM" in the offset described by spec.
func FormatForDisplay(t time.Time, spec string) string {
	return ParseDisplayOffset(spec).Format(t)
}
