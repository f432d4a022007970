package soap

import (
	"regexp"
	"strings"
)

var (
	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
	fenceOpen     = regexp.MustCompile("^```[a-zA-Z]*\\s*")
	fenceClose    = regexp.MustCompile("\\s*```$")
)

// repair cleans up JSON text as language models tend to produce it: code
// fences, stray wrapping quotes, raw control characters inside strings and
// trailing commas.
func repair(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "\ufeff")

	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	// stray quotes around an object or array
	for len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		inner := strings.TrimSpace(s[1 : len(s)-1])
		if !strings.HasPrefix(inner, "{") && !strings.HasPrefix(inner, "[") {
			break
		}
		s = inner
	}

	s = escapeControlChars(s)
	return trailingComma.ReplaceAllString(s, "$1")
}

// escapeControlChars escapes raw control characters inside string literals
// and drops them elsewhere, except ordinary whitespace.
func escapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString, escaped := false, false
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
			b.WriteRune(r)
			continue
		case inString && r == '\\':
			escaped = true
			b.WriteRune(r)
			continue
		case r == '"':
			inString = !inString
			b.WriteRune(r)
			continue
		}

		if r >= 0x20 && r != 0x7f {
			b.WriteRune(r)
			continue
		}
		if !inString {
			if r == '\n' || r == '\r' || r == '\t' {
				b.WriteRune(r)
			}
			continue
		}
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		}
	}
	return b.String()
}
