// Package tokenize splits raw sentences into tokens, either word by word or
// with a trained subword model.
package tokenize

import (
	"strings"
	"unicode"
)

// Tokenizer converts a line of text into tokens.
type Tokenizer interface {
	Tokenize(text string) []string
}

// WordTokenizer lowercases and splits on whitespace, peeling punctuation off
// word boundaries so "results." yields "results" and ".".
type WordTokenizer struct {
	// KeepCase disables lowercasing.
	KeepCase bool
}

// NewWordTokenizer returns a lowercasing word tokenizer.
func NewWordTokenizer() *WordTokenizer {
	return &WordTokenizer{}
}

// Tokenize splits one line into word and punctuation tokens.
func (w *WordTokenizer) Tokenize(text string) []string {
	if !w.KeepCase {
		text = strings.ToLower(text)
	}
	var tokens []string
	for _, field := range strings.Fields(text) {
		tokens = append(tokens, splitPunct(field)...)
	}
	return tokens
}

// TokenizeBatch tokenizes every line.
func (w *WordTokenizer) TokenizeBatch(lines []string) [][]string {
	out := make([][]string, len(lines))
	for i, line := range lines {
		out[i] = w.Tokenize(line)
	}
	return out
}

// splitPunct separates leading and trailing punctuation runs from a field.
// Interior punctuation (hyphens, decimal points) stays attached.
func splitPunct(field string) []string {
	runes := []rune(field)
	start := 0
	for start < len(runes) && isPunct(runes[start]) {
		start++
	}
	end := len(runes)
	for end > start && isPunct(runes[end-1]) {
		end--
	}

	var tokens []string
	for _, r := range runes[:start] {
		tokens = append(tokens, string(r))
	}
	if start < end {
		tokens = append(tokens, string(runes[start:end]))
	}
	for _, r := range runes[end:] {
		tokens = append(tokens, string(r))
	}
	return tokens
}

func isPunct(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}
