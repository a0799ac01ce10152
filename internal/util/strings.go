// Package util provides shared string utility functions used across packages.
package util

import "unicode/utf8"

// TruncatedMarker is appended by TruncateBytes when content was cut.
const TruncatedMarker = "\n... [truncated]"

// TruncateBytes cuts s to at most maxBytes bytes without splitting a UTF-8
// sequence and appends TruncatedMarker if anything was removed.
// If maxBytes <= 0, s is returned unchanged.
func TruncateBytes(s string, maxBytes int) (string, bool) {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s, false
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + TruncatedMarker, true
}

// TruncateRunes truncates s to at most maxRunes Unicode code points,
// appending "..." if truncation occurred.
// If maxRunes <= 0, s is returned unchanged.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes]) + "..."
}
