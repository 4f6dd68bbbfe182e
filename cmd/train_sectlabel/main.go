package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"sectlabel/config"
	"sectlabel/dataset"
	"sectlabel/engine"
	"sectlabel/metrics"
	"sectlabel/model"
	"sectlabel/optim"
)

func main() {
	var hp config.Hyperparams
	flag.StringVar(&hp.DataPath, "data", "", "labeled corpus (JSON lines or tab separated)")
	flag.StringVar(&hp.SaveDir, "save-dir", "output", "directory for checkpoints, vocabulary and metrics")
	flag.StringVar(&hp.Tokenizer, "tokenizer", "word", "tokenizer: word or subword")
	flag.IntVar(&hp.SubwordVocabSize, "subword-vocab", 3000, "BPE vocabulary size for the subword tokenizer")
	flag.IntVar(&hp.MaxNumWords, "max-words", 3000, "vocabulary cap, 0 for unlimited")
	flag.IntVar(&hp.MinWordFreq, "min-freq", 1, "minimum token frequency for the vocabulary")
	flag.IntVar(&hp.MaxLength, "max-length", 15, "token ids per sentence including markers")
	flag.BoolVar(&hp.Debug, "debug", false, "train on a small deterministic subsample")
	flag.Float64Var(&hp.DebugProportion, "debug-proportion", 0.1, "fraction of each split kept in debug mode")
	flag.IntVar(&hp.EmbedDim, "embed", 50, "embedding dimension")
	flag.IntVar(&hp.HiddenDim, "hidden", 100, "hidden layer dimension")
	flag.IntVar(&hp.BatchSize, "batch-size", 32, "batch size")
	flag.IntVar(&hp.NumEpochs, "epochs", 10, "number of epochs")
	flag.IntVar(&hp.SaveEvery, "save-every", 1, "checkpoint every N epochs, 0 to disable")
	flag.IntVar(&hp.LogTrainMetricsEvery, "log-every", 50, "log training metrics every N batches, 0 to disable")
	flag.IntVar(&hp.EarlyStopPatience, "patience", 0, "stop after N epochs without improvement, 0 to disable")
	flag.Float64Var(&hp.LR, "lr", 1e-3, "learning rate")
	flag.Float64Var(&hp.Clip, "clip", 5.0, "per-element gradient clip, 0 to disable")
	flag.Float64Var(&hp.L2, "l2", 0, "weight decay coefficient")
	flag.StringVar(&hp.TrackForBest, "track", metrics.TrackLoss,
		"validation value selecting the best model: loss, macro_fscore or micro_fscore")
	flag.Int64Var(&hp.Seed, "seed", 42, "batch shuffling seed")
	flag.Parse()

	if hp.DataPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(&hp); err != nil {
		log.Fatal(err)
	}
}

func run(hp *config.Hyperparams) error {
	if err := os.MkdirAll(hp.SaveDir, 0o755); err != nil {
		return err
	}
	hp.VocabPath = filepath.Join(hp.SaveDir, "vocab.json")
	if hp.Tokenizer == "subword" {
		hp.SubwordPath = filepath.Join(hp.SaveDir, "subword")
	}

	splits := make(map[dataset.Split]*dataset.Dataset, 3)
	// The train split goes first so it builds the shared vocabulary.
	for _, split := range []dataset.Split{dataset.Train, dataset.Valid, dataset.Test} {
		ds, err := dataset.New(dataset.Config{
			Path:            hp.DataPath,
			Split:           split,
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
			return err
		}
		log.Print(ds.Stats())
		splits[split] = ds
	}
	train := splits[dataset.Train]

	hp.VocabSize = train.Vocab().Size()
	hp.NumClasses = train.NumClasses()
	clf, err := model.New(model.Config{
		VocabSize:  hp.VocabSize,
		EmbedDim:   hp.EmbedDim,
		HiddenDim:  hp.HiddenDim,
		NumClasses: hp.NumClasses,
		BatchSize:  hp.BatchSize,
	})
	if err != nil {
		return err
	}
	defer clf.Close()

	if err := hp.Save(filepath.Join(hp.SaveDir, config.ManifestName)); err != nil {
		return err
	}

	opt := optim.New(optim.Config{LR: hp.LR, Clip: hp.Clip, L2: hp.L2})
	eng, err := engine.New(engine.Config{
		NumEpochs:            hp.NumEpochs,
		SaveEvery:            hp.SaveEvery,
		LogTrainMetricsEvery: hp.LogTrainMetricsEvery,
		TrackForBest:         hp.TrackForBest,
		SaveDir:              hp.SaveDir,
		EarlyStopPatience:    hp.EarlyStopPatience,
		Seed:                 hp.Seed,
	}, clf, opt, train, splits[dataset.Valid], splits[dataset.Test])
	if err != nil {
		return err
	}
	return eng.Run()
}
