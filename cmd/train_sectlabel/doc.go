// Command train_sectlabel trains the section-label classifier on a corpus of
// labeled scientific-paper sentences. It builds the vocabulary from the train
// split, runs the epoch schedule with validation-based best-model selection,
// and writes checkpoints, the vocabulary, the hyperparameter manifest and the
// per-epoch metrics into the save directory.
//
// Usage:
//
//	train_sectlabel -data corpus.jsonl -save-dir output -epochs 10 -track macro_fscore
package main
