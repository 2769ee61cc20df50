// utils/text.go
package utils

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail is a shape check only (local@domain.tld).
func ValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// NormalizeKana folds half-width katakana to full width and full-width ASCII
// to narrow, then collapses runs of whitespace.
func NormalizeKana(s string) string {
	return CollapseSpaces(width.Fold.String(s))
}

// CollapseSpaces trims s and joins inner whitespace runs with one space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
