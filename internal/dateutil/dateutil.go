// Package dateutil expands date patterns such as "auto:YYYY-MM-DD" into
// timestamps, for dated snapshot names.
package dateutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidPattern indicates a malformed date pattern.
var ErrInvalidPattern = errors.New("invalid date pattern")

// MaxPatternLength limits pattern length.
const MaxPatternLength = 50

// DefaultPattern is used for a bare "auto".
const DefaultPattern = "YYYY-MM-DD"

const (
	autoKeyword = "auto"
	autoPrefix  = autoKeyword + ":"
)

// patternTokens maps pattern tokens to Go layout components.
// Longer tokens come first so matching is greedy. Matching is case-sensitive:
// MM is the month, mm the minute.
var patternTokens = []struct {
	token  string
	layout string
}{
	{"YYYY", "2006"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"YY", "06"},
	{"MM", "01"},
	{"DD", "02"},
	{"HH", "15"},
	{"mm", "04"},
	{"ss", "05"},
	{"M", "1"},
	{"D", "2"},
}

// Presets are named patterns that are safe in file names.
var Presets = map[string]string{
	"iso":     "YYYY-MM-DD",
	"compact": "YYYYMMDD",
	"month":   "YYYY-MM",
	"minute":  "YYYY-MM-DD[T]HHmm",
}

// Layout converts a pattern to a Go time layout.
// Tokens: YYYY YY MMMM MMM MM M DD D HH mm ss. Text inside brackets is kept
// literally, as is any other character.
func Layout(pattern string) (string, error) {
	if pattern == "" {
		return "", fmt.Errorf("%w: pattern cannot be empty", ErrInvalidPattern)
	}
	if len(pattern) > MaxPatternLength {
		return "", fmt.Errorf("%w: pattern exceeds %d characters", ErrInvalidPattern, MaxPatternLength)
	}

	var b strings.Builder
	b.Grow(len(pattern) + 8)

	for i := 0; i < len(pattern); {
		if pattern[i] == '[' {
			end := strings.IndexByte(pattern[i+1:], ']')
			if end == -1 {
				return "", fmt.Errorf("%w: unclosed bracket at position %d", ErrInvalidPattern, i)
			}
			b.WriteString(pattern[i+1 : i+1+end])
			i += end + 2
			continue
		}

		n := matchToken(pattern[i:], &b)
		if n == 0 {
			b.WriteByte(pattern[i])
			n = 1
		}
		i += n
	}

	return b.String(), nil
}

// matchToken writes the layout of the token at the start of s and returns
// its length, or 0 when s does not start with a token.
func matchToken(s string, b *strings.Builder) int {
	for _, t := range patternTokens {
		if strings.HasPrefix(s, t.token) {
			b.WriteString(t.layout)
			return len(t.token)
		}
	}
	return 0
}

// IsAuto reports whether value asks for a timestamp ("auto" or "auto:...").
func IsAuto(value string) bool {
	lower := strings.ToLower(value)
	return lower == autoKeyword || strings.HasPrefix(lower, autoPrefix)
}

// Stamp formats t for value:
//   - "auto" uses DefaultPattern
//   - "auto:PATTERN" uses PATTERN, or the preset of that name
//   - anything else is returned unchanged
func Stamp(value string, t time.Time) (string, error) {
	if !IsAuto(value) {
		return value, nil
	}

	pattern := DefaultPattern
	if len(value) > len(autoKeyword) {
		pattern = value[len(autoPrefix):]
		if pattern == "" {
			return "", fmt.Errorf("%w: pattern cannot be empty after %q", ErrInvalidPattern, autoPrefix)
		}
		if preset, ok := Presets[strings.ToLower(pattern)]; ok {
			pattern = preset
		}
	}

	layout, err := Layout(pattern)
	if err != nil {
		return "", err
	}
	return t.Format(layout), nil
}
