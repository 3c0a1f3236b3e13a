package core

import "strings"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanCode trims and upper-cases a code-like value. Course codes are stored
// upper-case so MATH101 and math101 collide on the uniqueness check.
func CleanCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
