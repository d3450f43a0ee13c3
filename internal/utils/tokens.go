package utils

import "unicode/utf8"

// Token estimation utilities. These approximate, they do not match any
// specific model tokenizer.

// CountTokens estimates the number of tokens in the given text.
// We approximate 1 token ~= 4 characters.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	// Ensure at least 1 token for any non-empty text
	tokens := utf8.RuneCountInString(text) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// CharCount is the size measure used for context budgets: characters, not bytes.
func CharCount(s string) int {
	return utf8.RuneCountInString(s)
}
