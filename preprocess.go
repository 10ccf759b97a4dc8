package textquiz

import "strings"

// Preprocess collapses every run of whitespace into a single space and trims
// the ends.
func Preprocess(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// wordCount counts whitespace separated words.
func wordCount(text string) int {
	return len(strings.Fields(text))
}
