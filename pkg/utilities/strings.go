package utilities

import (
	"strings"
	"unicode/utf8"
)

// TrimList trims every item and drops the empty ones. Duplicates keep their
// first position.
func TrimList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// TooLong reports whether s has more than max characters.
func TooLong(s string, max int) bool {
	return utf8.RuneCountInString(s) > max
}
