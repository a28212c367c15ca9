package research

import (
	"strings"
	"unicode/utf8"
)

// Truncate returns s cut to at most limit runes.
func Truncate(s string, limit int) string {
	if limit < 0 {
		return s
	}
	if len(s) <= limit {
		return s
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// WordCount counts whitespace-separated words. It is a display metric.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
