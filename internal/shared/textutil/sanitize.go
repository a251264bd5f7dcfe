// Package textutil provides the pure text primitives of the intake
// pipeline: control-character stripping, bounded truncation and content
// fingerprinting.
package textutil

import "strings"

// TruncationMarker is appended to sanitized text that was cut at the
// configured maximum length.
const TruncationMarker = "... [TRUNCATED]"

// StripControl removes every rune below U+0020 except newline, carriage
// return and horizontal tab.
func StripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 0x20 || r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		return -1
	}, s)
}

// Sanitize strips control characters and truncates the result to maxLen
// runes. Truncated text gets TruncationMarker appended, so the final string
// may exceed maxLen by the marker's length. A maxLen of zero or less
// disables truncation.
func Sanitize(s string, maxLen int) string {
	cleaned := StripControl(s)
	if maxLen <= 0 {
		return cleaned
	}
	runes := []rune(cleaned)
	if len(runes) <= maxLen {
		return cleaned
	}
	return string(runes[:maxLen]) + TruncationMarker
}

// TruncateRunes cuts s to at most max runes without a marker.
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
