package util

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reSpaces    = regexp.MustCompile(`\s+`)
	reBlankRuns = regexp.MustCompile(`\n{3,}`)
)

// CollapseSpaces folds every whitespace run into a single space and trims.
func CollapseSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// NormalizeNewlines converts line endings to LF and collapses runs of three
// or more newlines to one blank line. No other cleanup.
func NormalizeNewlines(input string) string {
	s := strings.ReplaceAll(input, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = reBlankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// AlphaRatio reports the share of letter runes in s, 0 for empty input.
func AlphaRatio(s string) float64 {
	total := 0
	alpha := 0
	for _, r := range s {
		total++
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(alpha) / float64(total)
}
