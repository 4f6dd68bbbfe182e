// Package vocab builds and persists frequency-capped token vocabularies.
package vocab

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Special tokens reserved at the head of every vocabulary.
const (
	PadToken   = "<pad>"
	UnkToken   = "<unk>"
	StartToken = "<start>"
	EndToken   = "<end>"
)

// Ids of the special tokens. These never move.
const (
	PadID   = 0
	UnkID   = 1
	StartID = 2
	EndID   = 3
)

// NumSpecials is the number of reserved tokens.
const NumSpecials = 4

// Vocab is an ordered token to id mapping. It is immutable once built.
type Vocab struct {
	toID     map[string]int
	toToken  []string
	maxWords int
	minFreq  int

	// stats from the build corpus
	totalTokens  int
	uniqueTokens int
	built        bool
}

// New returns an empty vocabulary. maxWords caps the number of regular
// (non-special) tokens kept; minFreq drops tokens seen fewer times.
func New(maxWords, minFreq int) *Vocab {
	if minFreq < 1 {
		minFreq = 1
	}
	return &Vocab{
		toID:     make(map[string]int),
		maxWords: maxWords,
		minFreq:  minFreq,
	}
}

// Build creates the mapping from tokenized instances. The most frequent
// maxWords tokens are kept, ties broken by first appearance. Building twice
// is an error: the vocabulary is immutable once built.
func (v *Vocab) Build(instances [][]string) error {
	if v.built {
		return fmt.Errorf("vocab: already built")
	}

	freq := make(map[string]int)
	first := make(map[string]int)
	order := 0
	for _, inst := range instances {
		for _, tok := range inst {
			if freq[tok] == 0 {
				first[tok] = order
				order++
			}
			freq[tok]++
			v.totalTokens++
		}
	}
	v.uniqueTokens = len(freq)

	type tokFreq struct {
		tok  string
		freq int
	}
	ranked := make([]tokFreq, 0, len(freq))
	for tok, f := range freq {
		if f < v.minFreq {
			continue
		}
		ranked = append(ranked, tokFreq{tok, f})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].freq != ranked[j].freq {
			return ranked[i].freq > ranked[j].freq
		}
		return first[ranked[i].tok] < first[ranked[j].tok]
	})
	if v.maxWords > 0 && len(ranked) > v.maxWords {
		ranked = ranked[:v.maxWords]
	}

	v.toToken = make([]string, 0, len(ranked)+NumSpecials)
	for _, sp := range []string{PadToken, UnkToken, StartToken, EndToken} {
		v.toID[sp] = len(v.toToken)
		v.toToken = append(v.toToken, sp)
	}
	for _, tf := range ranked {
		v.toID[tf.tok] = len(v.toToken)
		v.toToken = append(v.toToken, tf.tok)
	}
	v.built = true
	return nil
}

// ID returns the id for a token, or the unk id for out of vocabulary tokens.
func (v *Vocab) ID(token string) int {
	if id, ok := v.toID[token]; ok {
		return id
	}
	return UnkID
}

// Token returns the token for an id.
func (v *Vocab) Token(id int) (string, error) {
	if id < 0 || id >= len(v.toToken) {
		return "", fmt.Errorf("vocab: id %d out of range [0, %d)", id, len(v.toToken))
	}
	return v.toToken[id], nil
}

// Size returns the number of tokens, specials included.
func (v *Vocab) Size() int {
	return len(v.toToken)
}

// Stats summarizes the build corpus against the capped vocabulary.
func (v *Vocab) Stats() string {
	var b strings.Builder
	fmt.Fprintf(&b, "tokens in corpus: %d\n", v.totalTokens)
	fmt.Fprintf(&b, "unique tokens: %d\n", v.uniqueTokens)
	fmt.Fprintf(&b, "vocabulary size (capped, with specials): %d\n", v.Size())
	return b.String()
}

// vocabData is the JSON representation on disk.
type vocabData struct {
	ToToken      []string `json:"to_token"`
	MaxWords     int      `json:"max_words"`
	MinFreq      int      `json:"min_freq"`
	TotalTokens  int      `json:"total_tokens"`
	UniqueTokens int      `json:"unique_tokens"`
}

// Save writes the vocabulary as JSON.
func (v *Vocab) Save(path string) error {
	if !v.built {
		return fmt.Errorf("vocab: save before build")
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("vocab: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	data := vocabData{
		ToToken:      v.toToken,
		MaxWords:     v.maxWords,
		MinFreq:      v.minFreq,
		TotalTokens:  v.totalTokens,
		UniqueTokens: v.uniqueTokens,
	}
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("vocab: %w", err)
	}
	return nil
}

// Load reads a vocabulary previously written by Save.
func Load(path string) (*Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	defer f.Close()

	var data vocabData
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("vocab: decode %s: %w", path, err)
	}
	if len(data.ToToken) < NumSpecials {
		return nil, fmt.Errorf("vocab: file %s has no special tokens", path)
	}
	v := New(data.MaxWords, data.MinFreq)
	v.toToken = data.ToToken
	for id, tok := range data.ToToken {
		v.toID[tok] = id
	}
	v.totalTokens = data.TotalTokens
	v.uniqueTokens = data.UniqueTokens
	v.built = true
	return v, nil
}

// Exists reports whether a saved vocabulary is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
