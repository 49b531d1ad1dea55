package sanitize

import (
	"strings"
	"unicode"
)

// FilenameSafe replaces characters that are unsafe in file names across
// Linux and Windows with underscores, collapsing runs into one.
func FilenameSafe(s string) string {
	unsafe := func(r rune) bool {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return true
		}
		return unicode.IsControl(r)
	}

	var builder strings.Builder
	builder.Grow(len(s))

	lastUnderscore := false
	for _, r := range s {
		if unsafe(r) {
			if !lastUnderscore {
				builder.WriteRune('_')
				lastUnderscore = true
			}
			continue
		}
		builder.WriteRune(r)
		lastUnderscore = false
	}

	return strings.Trim(builder.String(), "_ ")
}

// StripControlChars removes non-printable control characters except newline and tab.
// This prevents issues with terminal escape sequences and other control characters.
func StripControlChars(s string) string {
	var builder strings.Builder
	builder.Grow(len(s))

	for _, r := range s {
		if r == '\n' || r == '\t' || r == '\r' {
			builder.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		builder.WriteRune(r)
	}

	return builder.String()
}
