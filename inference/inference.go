// Package inference loads a trained checkpoint, predicts over the test split
// and exposes the results for analysis: per-class metrics, the confusion
// matrix and the sentences behind any cell of it.
package inference

import (
	"fmt"
	"strings"

	"sectlabel/config"
	"sectlabel/dataset"
	"sectlabel/engine"
	"sectlabel/metrics"
	"sectlabel/model"
	"sectlabel/vocab"
)

// Record is one scored test sentence.
type Record struct {
	Sentence  string
	TrueIndex int
	PredIndex int
	TrueName  string
	PredName  string
	Prob      float32
}

// Runner holds a restored classifier and the test split it predicts over.
type Runner struct {
	clf     *model.Classifier
	ds      *dataset.Dataset
	metric  *metrics.PrecisionRecallF
	records []Record
	names   []string
}

// New rebuilds the pipeline described by the hyperparameter manifest, loads
// the checkpoint at checkpointPath and restores its parameters. The manifest's
// vocabulary file must exist so the test split is numericalized exactly as in
// training.
func New(checkpointPath string, hp *config.Hyperparams) (*Runner, error) {
	if !vocab.Exists(hp.VocabPath) {
		return nil, fmt.Errorf("inference: vocabulary %s not found, train first", hp.VocabPath)
	}
	ds, err := dataset.New(dataset.Config{
		Path:            hp.DataPath,
		Split:           dataset.Test,
		MaxNumWords:     hp.MaxNumWords,
		MinWordFreq:     hp.MinWordFreq,
		MaxLength:       hp.MaxLength,
		VocabPath:       hp.VocabPath,
		Tokenizer:       hp.Tokenizer,
		SubwordPath:     hp.SubwordPath,
		SubwordVocab:    hp.SubwordVocabSize,
		Debug:           hp.Debug,
		DebugProportion: hp.DebugProportion,
	})
	if err != nil {
		return nil, err
	}

	clf, err := model.New(model.Config{
		VocabSize:  ds.Vocab().Size(),
		EmbedDim:   hp.EmbedDim,
		HiddenDim:  hp.HiddenDim,
		NumClasses: ds.NumClasses(),
		BatchSize:  hp.BatchSize,
	})
	if err != nil {
		return nil, err
	}

	ck, err := engine.LoadCheckpoint(checkpointPath)
	if err != nil {
		clf.Close()
		return nil, err
	}
	if err := clf.ImportParams(ck.Model); err != nil {
		clf.Close()
		return nil, err
	}
	return newRunner(clf, ds)
}

func newRunner(clf *model.Classifier, ds *dataset.Dataset) (*Runner, error) {
	names := make([]string, ds.NumClasses())
	for c := range names {
		name, err := ds.ClassName(c)
		if err != nil {
			return nil, err
		}
		names[c] = name
	}
	return &Runner{
		clf:    clf,
		ds:     ds,
		metric: metrics.NewPrecisionRecallF(ds.NumClasses()),
		names:  names,
	}, nil
}

// Run predicts every test sentence and accumulates metrics. It can be called
// again to re-score from scratch.
func (r *Runner) Run() error {
	r.metric.Reset()
	r.records = r.records[:0]

	batchSize := r.clf.Config().BatchSize
	for i, b := range r.ds.Batches(batchSize, false, nil) {
		in, err := r.clf.Batchify(b.Tokens, b.Labels, b.Mask, vocab.PadID)
		if err != nil {
			return fmt.Errorf("inference: batch %d: %w", i, err)
		}
		_, probs, err := r.clf.Run(in)
		if err != nil {
			return fmt.Errorf("inference: batch %d: %w", i, err)
		}
		preds := metrics.ArgmaxRows(probs)
		if err := r.metric.Update(preds, b.Labels, b.Mask); err != nil {
			return err
		}
		for row := 0; row < b.Size; row++ {
			r.records = append(r.records, Record{
				Sentence:  r.ds.RawLine(b.Rows[row]),
				TrueIndex: b.Labels[row],
				PredIndex: preds[row],
				TrueName:  r.names[b.Labels[row]],
				PredName:  r.names[preds[row]],
				Prob:      probs[row][preds[row]],
			})
		}
	}
	return nil
}

// Records returns the scored sentences in corpus order.
func (r *Runner) Records() []Record { return r.records }

// MisclassifiedSentences returns the sentences whose true class is trueIdx
// but were predicted as predIdx. With trueIdx == predIdx it returns the
// correctly classified sentences of that class.
func (r *Runner) MisclassifiedSentences(trueIdx, predIdx int) []string {
	var out []string
	for _, rec := range r.records {
		if rec.TrueIndex == trueIdx && rec.PredIndex == predIdx {
			out = append(out, rec.Sentence)
		}
	}
	return out
}

// Metric exposes the accumulated precision/recall/f-score calculator.
func (r *Runner) Metric() *metrics.PrecisionRecallF { return r.metric }

// Report renders the per-class precision, recall and f-score table.
func (r *Runner) Report() string {
	return r.metric.Report(r.names)
}

// ConfusionString renders the confusion matrix with class names.
func (r *Runner) ConfusionString() string {
	return r.metric.FormatConfusion(r.names)
}

// ClassIndex resolves a class name to its index.
func (r *Runner) ClassIndex(name string) (int, error) {
	for i, n := range r.names {
		if n == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("inference: unknown class %q, have %s", name, strings.Join(r.names, ", "))
}

// Close releases the classifier's virtual machine.
func (r *Runner) Close() error { return r.clf.Close() }
