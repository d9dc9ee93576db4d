// Package utils provides shared utilities for text, math, and logging.
package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Truncate returns s truncated to maxLen runes, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return strings.TrimRightFunc(string(r[:maxLen]), unicode.IsSpace) + "..."
}

// Fold lowercases s and strips diacritics, so "Educación" and "educacion" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// NormalizeSpace trims s and collapses inner runs of whitespace to one space.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
