// Package numericalize converts token sequences into fixed-length id sequences.
package numericalize

import (
	"fmt"
	"strings"

	"sectlabel/vocab"
)

// Numericalizer maps tokenized sentences onto fixed-length id sequences using
// an immutable vocabulary.
type Numericalizer struct {
	vocab     *vocab.Vocab
	maxLength int
}

// New returns a numericalizer producing sequences of exactly maxLength ids.
// maxLength must leave room for the start and end markers.
func New(v *vocab.Vocab, maxLength int) (*Numericalizer, error) {
	if maxLength < 3 {
		return nil, fmt.Errorf("numericalize: max length %d too small", maxLength)
	}
	return &Numericalizer{vocab: v, maxLength: maxLength}, nil
}

// MaxLength returns the fixed output length.
func (n *Numericalizer) MaxLength() int {
	return n.maxLength
}

// PackToLength truncates or pads tokens to the fixed length, wrapping the
// content in start/end markers. Content longer than maxLength-2 is head
// truncated.
func (n *Numericalizer) PackToLength(tokens []string) []string {
	content := n.maxLength - 2
	if len(tokens) > content {
		tokens = tokens[:content]
	}
	packed := make([]string, 0, n.maxLength)
	packed = append(packed, vocab.StartToken)
	packed = append(packed, tokens...)
	packed = append(packed, vocab.EndToken)
	for len(packed) < n.maxLength {
		packed = append(packed, vocab.PadToken)
	}
	return packed
}

// Numericalize packs tokens to the fixed length and maps them to ids.
// Out of vocabulary tokens map to the unk id.
func (n *Numericalizer) Numericalize(tokens []string) []int {
	packed := n.PackToLength(tokens)
	ids := make([]int, len(packed))
	for i, tok := range packed {
		ids[i] = n.vocab.ID(tok)
	}
	return ids
}

// Denumericalize maps ids back to tokens, dropping padding.
func (n *Numericalizer) Denumericalize(ids []int) ([]string, error) {
	var tokens []string
	for _, id := range ids {
		if id == vocab.PadID {
			continue
		}
		tok, err := n.vocab.Token(id)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// DisplaySentence renders ids as a readable sentence without pad markers.
func (n *Numericalizer) DisplaySentence(ids []int) string {
	tokens, err := n.Denumericalize(ids)
	if err != nil {
		return ""
	}
	return strings.Join(tokens, " ")
}
