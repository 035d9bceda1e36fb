// Package textutil holds small helpers for transcripts and log output.
package textutil

import (
	"strings"
	"unicode"
)

// Normalize collapses runs of whitespace to a single space and trims the ends.
// ASR output often carries stray newlines and double spaces.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// IsBlank reports whether text contains only whitespace.
func IsBlank(text string) bool {
	return strings.IndexFunc(text, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}

// Truncate shortens s to at most n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// TruncateWords shortens s to at most n runes without splitting a word when a
// boundary exists in the second half of the budget.
func TruncateWords(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	cut := string(runes[:n])
	if i := strings.LastIndex(cut, " "); i > len(cut)/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
