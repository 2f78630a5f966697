package live

import (
	"strings"
	"unicode"
)

// hallucinated reports whether fast-tier output should be discarded: model
// control tokens, or too few letters to be speech.
func hallucinated(text string) bool {
	if strings.Contains(text, "<|") || strings.Contains(text, "|>") {
		return true
	}
	letters := 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters <= 2
}

// cleanText collapses whitespace.
func cleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// tailWords returns the last n words of text.
func tailWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}
