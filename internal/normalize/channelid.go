package normalize

import (
	"regexp"
	"strings"
)

var nonIDChars = regexp.MustCompile(`[^\w.]`)

// NormalizeChannelID returns the canonical form of a channel identifier:
// lower-cased with everything except letters, digits, underscore and period
// removed. It is idempotent.
func NormalizeChannelID(raw string) string {
	return strings.TrimSpace(nonIDChars.ReplaceAllString(strings.ToLower(raw), ""))
}
