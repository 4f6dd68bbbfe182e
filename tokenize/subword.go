package tokenize

import (
	"fmt"
	"os"
	"path/filepath"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/bpe"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"

	"sectlabel/vocab"
)

// subwordPrefix names the BPE model files inside the store directory.
const subwordPrefix = "subword"

// minimum merge-pair frequency for BPE training
const subwordMinFreq = 2

// SubwordTokenizer wraps a trained BPE tokenizer. Sentences are normalized to
// NFKC lowercase and split on whitespace before the subword merges apply.
type SubwordTokenizer struct {
	t *tk.Tokenizer
}

// SubwordFiles returns the vocab and merges paths inside the store directory.
func SubwordFiles(dir string) (vocabFile, mergesFile string) {
	return filepath.Join(dir, subwordPrefix+"-vocab.json"),
		filepath.Join(dir, subwordPrefix+"-merges.txt")
}

// TrainOrLoadSubword loads the BPE model stored in dir if present, otherwise
// trains one of vocabSize entries on texts and saves it there.
func TrainOrLoadSubword(dir string, vocabSize int, texts []string) (*SubwordTokenizer, error) {
	vocabFile, mergesFile := SubwordFiles(dir)
	if fileExists(vocabFile) && fileExists(mergesFile) {
		model, err := bpe.NewBpeFromFiles(vocabFile, mergesFile)
		if err != nil {
			return nil, fmt.Errorf("tokenize: load subword model from %s: %w", dir, err)
		}
		unk := vocab.UnkToken
		model.UnkToken = &unk
		return newSubword(model), nil
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("tokenize: no texts to train subword tokenizer")
	}

	seed := map[string]int{
		vocab.PadToken:   vocab.PadID,
		vocab.UnkToken:   vocab.UnkID,
		vocab.StartToken: vocab.StartID,
		vocab.EndToken:   vocab.EndID,
	}
	model := bpe.NewBPE(seed, make(bpe.Merges))
	unk := vocab.UnkToken
	model.UnkToken = &unk

	trainer := bpe.NewBpeTrainer(subwordMinFreq, vocabSize)
	trainer.SpecialTokens = specialAddedTokens()

	s := newSubword(model)
	corpusPath, err := writeCorpus(texts)
	if err != nil {
		return nil, err
	}
	defer os.Remove(corpusPath)

	if err := s.t.Train(trainer, []string{corpusPath}); err != nil {
		return nil, fmt.Errorf("tokenize: train subword tokenizer: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	if err := s.t.GetModel().Save(dir, subwordPrefix); err != nil {
		return nil, fmt.Errorf("tokenize: save subword model to %s: %w", dir, err)
	}
	return s, nil
}

func newSubword(model tk.Model) *SubwordTokenizer {
	t := tk.NewTokenizer(model)
	t.WithNormalizer(normalizer.NewSequence([]normalizer.Normalizer{
		normalizer.NewNFKC(),
		normalizer.Lowercase(),
	}))
	t.WithPreTokenizer(pretokenizer.NewWhitespaceSplit())
	t.AddSpecialTokens(specialAddedTokens())
	return &SubwordTokenizer{t: t}
}

func specialAddedTokens() []tk.AddedToken {
	return []tk.AddedToken{
		tk.NewAddedToken(vocab.PadToken, true),
		tk.NewAddedToken(vocab.UnkToken, true),
		tk.NewAddedToken(vocab.StartToken, true),
		tk.NewAddedToken(vocab.EndToken, true),
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Tokenize encodes one sentence into subword tokens.
func (s *SubwordTokenizer) Tokenize(text string) []string {
	enc, err := s.t.EncodeSingle(text)
	if err != nil || enc == nil {
		return nil
	}
	return enc.GetTokens()
}

// TokenizeBatch tokenizes every line.
func (s *SubwordTokenizer) TokenizeBatch(lines []string) [][]string {
	out := make([][]string, len(lines))
	for i, line := range lines {
		out[i] = s.Tokenize(line)
	}
	return out
}

// writeCorpus dumps the training texts to a temp file, one sentence per line,
// since the trainer reads from files.
func writeCorpus(texts []string) (string, error) {
	f, err := os.CreateTemp("", "sectlabel-corpus-*.txt")
	if err != nil {
		return "", fmt.Errorf("tokenize: %w", err)
	}
	for _, line := range texts {
		if _, err := fmt.Fprintln(f, line); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", fmt.Errorf("tokenize: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("tokenize: %w", err)
	}
	return f.Name(), nil
}
