// Package dataset turns labeled section sentences into batched tensors for
// training and evaluation.
package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"

	"gorgonia.org/tensor"

	"sectlabel/numericalize"
	"sectlabel/tokenize"
	"sectlabel/vocab"
)

// Split names a portion of the corpus.
type Split string

const (
	Train Split = "train"
	Valid Split = "valid"
	Test  Split = "test"
)

// Document number ranges assigned to each split.
var splitRanges = map[Split][2]int{
	Train: {1, 20},
	Valid: {21, 30},
	Test:  {31, 40},
}

// Record is one labeled sentence of the corpus.
type Record struct {
	Text   string `json:"text"`
	Label  string `json:"label"`
	FileNo int    `json:"file_no"`
}

// Config controls how a dataset split is built.
type Config struct {
	// Path of the labeled corpus (JSON lines or tab separated).
	Path  string
	Split Split

	// Vocabulary and numericalization.
	MaxNumWords int
	MinWordFreq int
	MaxLength   int
	// VocabPath is the vocabulary store. Built from this split's instances
	// and saved when absent; loaded when present, so valid/test share the
	// train vocabulary.
	VocabPath string

	// Tokenizer selects "word" (default) or "subword". SubwordPath is the
	// directory holding the trained BPE vocab and merges files.
	Tokenizer    string
	SubwordPath  string
	SubwordVocab int

	// Debug keeps a deterministic random subsample of the split.
	Debug           bool
	DebugProportion float64
}

// Dataset is one split of the section-label corpus, numericalized against a
// shared vocabulary.
type Dataset struct {
	split     Split
	lines     []string
	labels    []string
	instances [][]string
	labelMap  map[string]int
	vocab     *vocab.Vocab
	num       *numericalize.Numericalizer
}

// seed for the debug subsample, fixed so debug runs are reproducible.
const debugSeed = 1729

// New loads, tokenizes and numericalizes one split.
func New(cfg Config) (*Dataset, error) {
	if _, ok := splitRanges[cfg.Split]; !ok {
		return nil, fmt.Errorf("dataset: split must be one of train, valid, test; got %q", cfg.Split)
	}
	if cfg.Debug && (cfg.DebugProportion <= 0 || cfg.DebugProportion > 1) {
		return nil, fmt.Errorf("dataset: debug proportion %v outside (0, 1]", cfg.DebugProportion)
	}

	records, err := ReadRecords(cfg.Path)
	if err != nil {
		return nil, err
	}

	d := &Dataset{
		split:    cfg.Split,
		labelMap: LabelMapping(),
	}
	bounds := splitRanges[cfg.Split]
	for _, rec := range records {
		if rec.FileNo < bounds[0] || rec.FileNo > bounds[1] {
			continue
		}
		if _, ok := d.labelMap[rec.Label]; !ok {
			return nil, fmt.Errorf("dataset: unknown label %q in %s", rec.Label, cfg.Path)
		}
		d.lines = append(d.lines, rec.Text)
		d.labels = append(d.labels, rec.Label)
	}
	if len(d.lines) == 0 {
		return nil, fmt.Errorf("dataset: no %s records in %s", cfg.Split, cfg.Path)
	}

	if cfg.Debug {
		d.subsample(cfg.DebugProportion)
	}

	tok, err := buildTokenizer(cfg, d.lines)
	if err != nil {
		return nil, err
	}
	d.instances = make([][]string, len(d.lines))
	for i, line := range d.lines {
		d.instances[i] = tok.Tokenize(line)
	}

	d.vocab, err = buildOrLoadVocab(cfg, d.instances)
	if err != nil {
		return nil, err
	}
	d.num, err = numericalize.New(d.vocab, cfg.MaxLength)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// subsample keeps a deterministic random proportion of the split.
func (d *Dataset) subsample(proportion float64) {
	rng := rand.New(rand.NewSource(debugSeed))
	n := int(proportion * float64(len(d.lines)))
	if n < 1 {
		n = 1
	}
	lines := make([]string, 0, n)
	labels := make([]string, 0, n)
	for i := 0; i < n; i++ {
		k := rng.Intn(len(d.lines))
		lines = append(lines, d.lines[k])
		labels = append(labels, d.labels[k])
	}
	d.lines, d.labels = lines, labels
}

func buildTokenizer(cfg Config, lines []string) (tokenize.Tokenizer, error) {
	switch cfg.Tokenizer {
	case "", "word":
		return tokenize.NewWordTokenizer(), nil
	case "subword":
		if cfg.SubwordPath == "" {
			return nil, fmt.Errorf("dataset: subword tokenizer needs a store directory")
		}
		return tokenize.TrainOrLoadSubword(cfg.SubwordPath, cfg.SubwordVocab, lines)
	default:
		return nil, fmt.Errorf("dataset: unknown tokenizer %q", cfg.Tokenizer)
	}
}

func buildOrLoadVocab(cfg Config, instances [][]string) (*vocab.Vocab, error) {
	if cfg.VocabPath != "" && vocab.Exists(cfg.VocabPath) {
		return vocab.Load(cfg.VocabPath)
	}
	v := vocab.New(cfg.MaxNumWords, cfg.MinWordFreq)
	if err := v.Build(instances); err != nil {
		return nil, err
	}
	if cfg.VocabPath != "" {
		if err := v.Save(cfg.VocabPath); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// ReadRecords parses the corpus file. Lines starting with '{' are JSON
// records; anything else is the raw tab-separated form "text<TAB>label<TAB>file_no".
func ReadRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if strings.HasPrefix(line, "{") {
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				return nil, fmt.Errorf("dataset: %s:%d: %w", path, lineNo, err)
			}
		} else {
			parts := strings.Split(line, "\t")
			if len(parts) != 3 {
				return nil, fmt.Errorf("dataset: %s:%d: expected 3 tab-separated fields, got %d", path, lineNo, len(parts))
			}
			fileNo, err := strconv.Atoi(strings.TrimSpace(parts[2]))
			if err != nil {
				return nil, fmt.Errorf("dataset: %s:%d: bad file number: %w", path, lineNo, err)
			}
			rec = Record{Text: parts[0], Label: strings.TrimSpace(parts[1]), FileNo: fileNo}
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", path, err)
	}
	return records, nil
}

// Len returns the number of instances in the split.
func (d *Dataset) Len() int {
	return len(d.instances)
}

// Instance returns the numericalized token ids and label index at i.
func (d *Dataset) Instance(i int) ([]int, int) {
	return d.num.Numericalize(d.instances[i]), d.labelMap[d.labels[i]]
}

// RawLine returns the untokenized sentence at i.
func (d *Dataset) RawLine(i int) string {
	return d.lines[i]
}

// NumClasses returns the number of section labels.
func (d *Dataset) NumClasses() int {
	return len(SectionLabels)
}

// ClassName returns the label name for an index.
func (d *Dataset) ClassName(idx int) (string, error) {
	if idx < 0 || idx >= len(SectionLabels) {
		return "", fmt.Errorf("dataset: class index %d out of range", idx)
	}
	return SectionLabels[idx], nil
}

// ClassNames maps label indices to names; unknown indices become "?".
func (d *Dataset) ClassNames(indices []int) []string {
	names := make([]string, len(indices))
	for i, idx := range indices {
		name, err := d.ClassName(idx)
		if err != nil {
			name = "?"
		}
		names[i] = name
	}
	return names
}

// Vocab returns the shared vocabulary.
func (d *Dataset) Vocab() *vocab.Vocab {
	return d.vocab
}

// DisplaySentence renders numericalized ids back into a readable sentence.
func (d *Dataset) DisplaySentence(ids []int) string {
	return d.num.DisplaySentence(ids)
}

// TokensTensor packs the ids of rows into a (len(rows), maxLength) int tensor.
func (d *Dataset) TokensTensor(rows []int) *tensor.Dense {
	L := d.num.MaxLength()
	backing := make([]int, len(rows)*L)
	for bi, i := range rows {
		ids, _ := d.Instance(i)
		copy(backing[bi*L:(bi+1)*L], ids)
	}
	return tensor.New(tensor.WithShape(len(rows), L), tensor.WithBacking(backing))
}

// Stats renders a per-label count table for the split.
func (d *Dataset) Stats() string {
	counts := make(map[string]int)
	for _, label := range d.labels {
		counts[label]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "%s dataset: %d instances\n", d.split, d.Len())
	fmt.Fprintf(&b, "%-24s %8s %8s\n", "label", "index", "count")
	for _, name := range names {
		fmt.Fprintf(&b, "%-24s %8d %8d\n", name, d.labelMap[name], counts[name])
	}
	return b.String()
}
