package validators

import "strings"

// SanitizeString trims surrounding whitespace and keeps at most maxLen
// characters. Truncation never splits a multi-byte character.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 {
		return trimmed
	}
	n := 0
	for i := range trimmed {
		if n == maxLen {
			return trimmed[:i]
		}
		n++
	}
	return trimmed
}
