package simmatch

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText performs Unicode normalization and trims whitespace.
func NormalizeText(text string) string {
	normed := norm.NFKC.String(text)
	normed = strings.TrimSpace(normed)
	// Drop control characters except newlines and tabs.
	normed = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, normed)
	return normed
}

// headerKey folds a header for comparison: NFKC, case-insensitive and with
// all runs of whitespace (including embedded newlines) collapsed.
func headerKey(header string) string {
	normed := norm.NFKC.String(header)
	normed = strings.TrimPrefix(normed, "\ufeff")
	return strings.ToLower(strings.Join(strings.Fields(normed), " "))
}
