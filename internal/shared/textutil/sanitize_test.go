package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripControl(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text untouched",
			input:    "hello world",
			expected: "hello world",
		},
		{
			name:     "keeps newline carriage return and tab",
			input:    "line1\nline2\r\nindent\there",
			expected: "line1\nline2\r\nindent\there",
		},
		{
			name:     "drops other control characters",
			input:    "a\x00b\x01c\x1fd",
			expected: "abcd",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "control characters only",
			input:    "\x00\x01\x02",
			expected: "",
		},
		{
			name:     "unicode preserved",
			input:    "operação\x07 suspeita",
			expected: "operação suspeita",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripControl(tt.input))
		})
	}
}

func TestSanitizeTruncation(t *testing.T) {
	long := strings.Repeat("a", 120)

	got := Sanitize(long, 100)
	assert.Equal(t, strings.Repeat("a", 100)+TruncationMarker, got)

	// Text within the bound is untouched.
	assert.Equal(t, "short", Sanitize("short", 100))

	// The pre-marker body never exceeds the bound.
	body := strings.TrimSuffix(got, TruncationMarker)
	assert.LessOrEqual(t, len([]rune(body)), 100)
}

func TestSanitizeCountsRunes(t *testing.T) {
	input := strings.Repeat("ã", 10)
	got := Sanitize(input, 5)
	assert.Equal(t, strings.Repeat("ã", 5)+TruncationMarker, got)
}

func TestSanitizeNoLimit(t *testing.T) {
	long := strings.Repeat("b", 500)
	assert.Equal(t, long, Sanitize(long, 0))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", TruncateRunes("abc", 10))
	assert.Equal(t, "ab", TruncateRunes("abcd", 2))
	assert.Equal(t, "", TruncateRunes("abcd", 0))
	assert.Equal(t, "éé", TruncateRunes("ééé", 2))
}
