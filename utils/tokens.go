package utils

import "strings"

// Tokenize splits text into whitespace-delimited tokens. Chunk budgets and
// token counts across the pipeline all use this definition so that window
// arithmetic stays deterministic and reproducible.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// CountTokens returns the token count of text.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}

// JoinTokens reassembles tokens into text with single spaces.
func JoinTokens(tokens []string) string {
	return strings.Join(tokens, " ")
}
