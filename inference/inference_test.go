package inference

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"sectlabel/config"
	"sectlabel/dataset"
	"sectlabel/engine"
	"sectlabel/model"
	"sectlabel/optim"
)

func writeTestCorpus(t *testing.T, dir string) string {
	t.Helper()
	var lines string
	add := func(text, label string, fileNo int) {
		lines += fmt.Sprintf("{\"text\": %q, \"label\": %q, \"file_no\": %d}\n", text, label, fileNo)
	}
	for i := 1; i <= 4; i++ {
		add("a method for parsing scientific papers", "title", i)
		add("alice cooper institute of technology", "author", i)
	}
	for i := 31; i <= 33; i++ {
		add("parsing scientific papers quickly", "title", i)
		add("bob martin institute", "author", i)
	}
	path := filepath.Join(dir, "corpus.jsonl")
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	return path
}

func testHyperparams(t *testing.T, dir string) *config.Hyperparams {
	t.Helper()
	return &config.Hyperparams{
		DataPath:    writeTestCorpus(t, dir),
		VocabPath:   filepath.Join(dir, "vocab.json"),
		MaxNumWords: 100,
		MinWordFreq: 1,
		MaxLength:   10,
		EmbedDim:    8,
		HiddenDim:   8,
		BatchSize:   2,
	}
}

// trainVocabAndCheckpoint builds the vocabulary file and a checkpoint the
// runner can restore, without a full training run.
func trainVocabAndCheckpoint(t *testing.T, hp *config.Hyperparams, dir string) string {
	t.Helper()
	ds, err := dataset.New(dataset.Config{
		Path:        hp.DataPath,
		Split:       dataset.Train,
		MaxNumWords: hp.MaxNumWords,
		MinWordFreq: hp.MinWordFreq,
		MaxLength:   hp.MaxLength,
		VocabPath:   hp.VocabPath,
	})
	if err != nil {
		t.Fatalf("dataset.New: %v", err)
	}

	clf, err := model.New(model.Config{
		VocabSize:  ds.Vocab().Size(),
		EmbedDim:   hp.EmbedDim,
		HiddenDim:  hp.HiddenDim,
		NumClasses: ds.NumClasses(),
		BatchSize:  hp.BatchSize,
	})
	if err != nil {
		t.Fatalf("model.New: %v", err)
	}
	defer clf.Close()

	snapshot, err := clf.ExportParams()
	if err != nil {
		t.Fatalf("ExportParams: %v", err)
	}
	path := filepath.Join(dir, "best_model.gob")
	ck := &engine.Checkpoint{Epoch: 1, Loss: 1.0, Model: snapshot, Optim: optim.New(optim.Config{}).State()}
	if err := engine.SaveCheckpoint(path, ck); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	return path
}

func TestRunnerScoresTestSplit(t *testing.T) {
	dir := t.TempDir()
	hp := testHyperparams(t, dir)
	ckPath := trainVocabAndCheckpoint(t, hp, dir)

	r, err := New(ckPath, hp)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	records := r.Records()
	if len(records) != 6 {
		t.Fatalf("got %d records; expected 6 test sentences", len(records))
	}
	for i, rec := range records {
		if rec.TrueName != "title" && rec.TrueName != "author" {
			t.Errorf("record %d has true class %q", i, rec.TrueName)
		}
		if rec.PredName == "" {
			t.Errorf("record %d has no predicted class", i)
		}
		if rec.Prob < 0 || rec.Prob > 1 {
			t.Errorf("record %d has probability %v", i, rec.Prob)
		}
		if rec.Sentence == "" {
			t.Errorf("record %d has no sentence", i)
		}
	}

	// Every record lands in exactly one confusion cell.
	conf := r.Metric().Confusion()
	rows, cols := conf.Dims()
	var total float64
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			total += conf.At(i, j)
		}
	}
	if int(total) != len(records) {
		t.Errorf("confusion matrix counts %v sentences; expected %d", total, len(records))
	}

	if r.Report() == "" {
		t.Error("Report should not be empty")
	}
	if r.ConfusionString() == "" {
		t.Error("ConfusionString should not be empty")
	}
}

func TestMisclassifiedSentences(t *testing.T) {
	dir := t.TempDir()
	hp := testHyperparams(t, dir)
	ckPath := trainVocabAndCheckpoint(t, hp, dir)

	r, err := New(ckPath, hp)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()
	if err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	titleIdx, err := r.ClassIndex("title")
	if err != nil {
		t.Fatalf("ClassIndex: %v", err)
	}
	authorIdx, err := r.ClassIndex("author")
	if err != nil {
		t.Fatalf("ClassIndex: %v", err)
	}
	if _, err := r.ClassIndex("no-such-class"); err == nil {
		t.Error("unknown class name should fail")
	}

	// The cell counts and the sentence lists must agree.
	conf := r.Metric().Confusion()
	got := r.MisclassifiedSentences(titleIdx, authorIdx)
	if len(got) != int(conf.At(titleIdx, authorIdx)) {
		t.Errorf("cell (title, author) has %v sentences but %d were returned",
			conf.At(titleIdx, authorIdx), len(got))
	}
	correct := r.MisclassifiedSentences(titleIdx, titleIdx)
	if len(correct) != int(conf.At(titleIdx, titleIdx)) {
		t.Errorf("cell (title, title) has %v sentences but %d were returned",
			conf.At(titleIdx, titleIdx), len(correct))
	}
}

func TestRunnerHonorsDebugSubsample(t *testing.T) {
	dir := t.TempDir()
	hp := testHyperparams(t, dir)
	hp.Debug = true
	hp.DebugProportion = 0.5
	ckPath := trainVocabAndCheckpoint(t, hp, dir)

	r, err := New(ckPath, hp)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()
	if err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Half of the 6 test sentences survive the debug subsample.
	if got := len(r.Records()); got != 3 {
		t.Errorf("got %d records; expected 3 with debug proportion 0.5", got)
	}
}

func TestNewFailsWithoutVocabulary(t *testing.T) {
	dir := t.TempDir()
	hp := testHyperparams(t, dir)
	if _, err := New(filepath.Join(dir, "missing.gob"), hp); err == nil {
		t.Error("missing vocabulary should fail")
	}
}
