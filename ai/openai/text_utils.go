package openai

import (
	"strings"
	"unicode"
)

// cleanText drops control characters and collapses runs of whitespace so each
// question occupies exactly one prompt line.
func cleanText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
