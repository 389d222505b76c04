package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// FirstNonEmpty returns the first non-empty string.
func FirstNonEmpty(strs ...string) string {
	for _, s := range strs {
		if s != "" {
			return s
		}
	}
	return ""
}

// SplitByMultipleDelimiters splits s on any of delimiters, trimming blanks and
// dropping empty parts.
func SplitByMultipleDelimiters(s string, delimiters ...string) []string {
	if len(delimiters) == 0 {
		return []string{s}
	}
	re := regexp.MustCompile("[" + regexp.QuoteMeta(strings.Join(delimiters, "")) + "]")
	parts := re.Split(s, -1)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence and
// marks the cut with "...". n <= 0 disables truncation.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
