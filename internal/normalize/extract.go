package normalize

import "strings"

// FirstNonEmpty returns the first candidate that is not blank, trimmed,
// or fallback when every candidate is blank.
func FirstNonEmpty(fallback string, candidates ...string) string {
	for _, c := range candidates {
		if v := strings.TrimSpace(c); v != "" {
			return v
		}
	}
	return fallback
}
