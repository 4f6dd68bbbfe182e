package tokenize

import (
	"os"
	"path/filepath"
	"testing"
)

func subwordCorpus() []string {
	var texts []string
	for i := 0; i < 20; i++ {
		texts = append(texts,
			"deep learning for scientific documents",
			"learning representations of scientific text",
			"scientific document section labeling",
		)
	}
	return texts
}

func TestTrainOrLoadSubwordRequiresTexts(t *testing.T) {
	if _, err := TrainOrLoadSubword(t.TempDir(), 50, nil); err == nil {
		t.Fatal("training without texts should fail")
	}
}

func TestSubwordTrainSaveReload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "subword")

	trained, err := TrainOrLoadSubword(dir, 60, subwordCorpus())
	if err != nil {
		t.Fatalf("TrainOrLoadSubword (train): %v", err)
	}

	vocabFile, mergesFile := SubwordFiles(dir)
	for _, path := range []string{vocabFile, mergesFile} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("missing model file %s: %v", path, err)
		}
	}

	got := trained.Tokenize("Scientific Learning")
	if len(got) == 0 {
		t.Fatal("trained tokenizer produced no tokens")
	}

	// A second call must take the load path and agree with the trained model.
	loaded, err := TrainOrLoadSubword(dir, 60, nil)
	if err != nil {
		t.Fatalf("TrainOrLoadSubword (load): %v", err)
	}
	reloaded := loaded.Tokenize("Scientific Learning")
	if len(reloaded) != len(got) {
		t.Fatalf("reloaded tokenizer returned %d tokens, trained returned %d", len(reloaded), len(got))
	}
	for i := range got {
		if reloaded[i] != got[i] {
			t.Errorf("token %d: reloaded %q, trained %q", i, reloaded[i], got[i])
		}
	}

	batch := loaded.TokenizeBatch([]string{"scientific text", "section labeling"})
	if len(batch) != 2 || len(batch[0]) == 0 || len(batch[1]) == 0 {
		t.Errorf("TokenizeBatch = %v; expected tokens for both lines", batch)
	}
}
