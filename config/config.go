// Package config defines the hyperparameter manifest shared by the training
// and inference binaries. The training run writes the manifest next to its
// checkpoints so inference can rebuild the exact same pipeline.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// ManifestName is the filename the training binary writes its hyperparameters
// under, inside the save directory.
const ManifestName = "hyperparams.json"

// Hyperparams captures everything needed to reconstruct a run: data and
// artifact paths, vocabulary limits, model dimensions and the training
// schedule.
type Hyperparams struct {
	DataPath  string `json:"data_path"`
	SaveDir   string `json:"save_dir"`
	VocabPath string `json:"vocab_path"`

	Tokenizer        string `json:"tokenizer"`
	SubwordPath      string `json:"subword_path,omitempty"`
	SubwordVocabSize int    `json:"subword_vocab_size,omitempty"`

	MaxNumWords int `json:"max_num_words"`
	MinWordFreq int `json:"min_word_freq"`
	MaxLength   int `json:"max_length"`

	Debug           bool    `json:"debug"`
	DebugProportion float64 `json:"debug_proportion,omitempty"`

	VocabSize  int `json:"vocab_size"`
	NumClasses int `json:"num_classes"`
	EmbedDim   int `json:"embed_dim"`
	HiddenDim  int `json:"hidden_dim"`
	BatchSize  int `json:"batch_size"`

	NumEpochs            int     `json:"num_epochs"`
	SaveEvery            int     `json:"save_every"`
	LogTrainMetricsEvery int     `json:"log_train_metrics_every"`
	EarlyStopPatience    int     `json:"early_stop_patience"`
	LR                   float64 `json:"lr"`
	Clip                 float64 `json:"clip"`
	L2                   float64 `json:"l2"`
	TrackForBest         string  `json:"track_for_best"`
	Seed                 int64   `json:"seed"`
}

// Save writes the manifest as indented JSON.
func (h *Hyperparams) Save(path string) error {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal hyperparams: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Load reads a manifest written by Save.
func Load(path string) (*Hyperparams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var h Hyperparams
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &h, nil
}
