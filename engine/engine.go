// Package engine runs the training loop: for every epoch one pass over the
// training split with optimizer updates, one scoring pass over the validation
// split with best-model tracking and periodic checkpointing, and once training
// ends a final scoring pass over the test split using the best checkpoint.
package engine

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"sectlabel/dataset"
	"sectlabel/metrics"
	"sectlabel/model"
	"sectlabel/optim"
	"sectlabel/vocab"
)

const (
	// BestCheckpointName is the filename of the best-so-far checkpoint
	// inside the save directory.
	BestCheckpointName = "best_model.gob"
	// MetricsFileName is the per-epoch statistics file written next to the
	// checkpoints.
	MetricsFileName = "metrics.json"
)

// EpochCheckpointName returns the filename for the periodic checkpoint taken
// at the given epoch.
func EpochCheckpointName(epoch int) string {
	return fmt.Sprintf("model_epoch_%d.gob", epoch)
}

// Config controls the training schedule.
type Config struct {
	NumEpochs            int
	SaveEvery            int    // periodic checkpoint interval, 0 disables
	LogTrainMetricsEvery int    // train metric log interval in batches, 0 disables
	TrackForBest         string // loss, macro_fscore or micro_fscore
	SaveDir              string
	EarlyStopPatience    int // epochs without improvement before stopping, 0 disables
	Seed                 int64
}

// EpochStats records one epoch's training and validation numbers.
type EpochStats struct {
	Epoch          int     `json:"epoch"`
	TrainLoss      float64 `json:"train_loss"`
	ValidLoss      float64 `json:"valid_loss"`
	ValidMacroF    float64 `json:"valid_macro_fscore"`
	ValidMicroF    float64 `json:"valid_micro_fscore"`
	BestSoFar      bool    `json:"best_so_far"`
	SkippedBatches int     `json:"skipped_batches"`
}

// Engine wires a classifier, an optimizer and the three dataset splits into a
// full training run.
type Engine struct {
	cfg   Config
	clf   *model.Classifier
	opt   *optim.Adam
	train *dataset.Dataset
	valid *dataset.Dataset
	test  *dataset.Dataset
	rng   *rand.Rand

	bestValue float64
	bestEpoch int
	history   []EpochStats
}

// New validates the schedule and prepares the save directory.
func New(cfg Config, clf *model.Classifier, opt *optim.Adam, train, valid, test *dataset.Dataset) (*Engine, error) {
	if cfg.NumEpochs < 1 {
		return nil, fmt.Errorf("engine: num epochs must be at least 1, got %d", cfg.NumEpochs)
	}
	if cfg.SaveDir == "" {
		return nil, fmt.Errorf("engine: save dir is required")
	}
	switch cfg.TrackForBest {
	case metrics.TrackLoss, metrics.TrackMacroFscore, metrics.TrackMicroFscore:
	default:
		return nil, fmt.Errorf("engine: cannot track %q for best model, want %s, %s or %s",
			cfg.TrackForBest, metrics.TrackLoss, metrics.TrackMacroFscore, metrics.TrackMicroFscore)
	}
	if err := os.MkdirAll(cfg.SaveDir, 0o755); err != nil {
		return nil, fmt.Errorf("engine: create save dir: %w", err)
	}

	best := math.Inf(1)
	if cfg.TrackForBest != metrics.TrackLoss {
		best = math.Inf(-1)
	}
	return &Engine{
		cfg:       cfg,
		clf:       clf,
		opt:       opt,
		train:     train,
		valid:     valid,
		test:      test,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		bestValue: best,
	}, nil
}

// Run executes the whole schedule and finishes by scoring the restored best
// model on the test split.
func (e *Engine) Run() error {
	sinceBest := 0
	for epoch := 1; epoch <= e.cfg.NumEpochs; epoch++ {
		trainLoss, skipped, err := e.trainEpoch(epoch)
		if err != nil {
			return err
		}

		validLoss, validMetric, err := e.score(e.valid)
		if err != nil {
			return fmt.Errorf("engine: validation epoch %d: %w", epoch, err)
		}
		_, _, macroF := validMetric.Macro()
		_, _, microF := validMetric.Micro()
		log.Printf("epoch %d: train loss %.4f, valid loss %.4f, valid macro F1 %.4f, valid micro F1 %.4f",
			epoch, trainLoss, validLoss, macroF, microF)

		value := validLoss
		switch e.cfg.TrackForBest {
		case metrics.TrackMacroFscore:
			value = macroF
		case metrics.TrackMicroFscore:
			value = microF
		}
		isBest := e.isBest(value)
		if isBest {
			e.bestValue = value
			e.bestEpoch = epoch
			sinceBest = 0
			if err := e.save(filepath.Join(e.cfg.SaveDir, BestCheckpointName), epoch, validLoss); err != nil {
				return err
			}
			log.Printf("epoch %d: new best model (%s %.4f)", epoch, e.cfg.TrackForBest, value)
		} else {
			sinceBest++
		}

		if e.cfg.SaveEvery > 0 && epoch%e.cfg.SaveEvery == 0 {
			path := filepath.Join(e.cfg.SaveDir, EpochCheckpointName(epoch))
			if err := e.save(path, epoch, validLoss); err != nil {
				return err
			}
		}

		e.history = append(e.history, EpochStats{
			Epoch:          epoch,
			TrainLoss:      trainLoss,
			ValidLoss:      validLoss,
			ValidMacroF:    macroF,
			ValidMicroF:    microF,
			BestSoFar:      isBest,
			SkippedBatches: skipped,
		})

		if e.cfg.EarlyStopPatience > 0 && sinceBest >= e.cfg.EarlyStopPatience {
			log.Printf("no improvement for %d epochs, stopping early after epoch %d", sinceBest, epoch)
			break
		}
	}

	if err := e.writeHistory(); err != nil {
		return err
	}
	return e.testBest()
}

// isBest applies the tracking rule: loss must strictly improve, f-scores tie
// in favor of the later epoch.
func (e *Engine) isBest(value float64) bool {
	if e.cfg.TrackForBest == metrics.TrackLoss {
		return value < e.bestValue
	}
	return value >= e.bestValue
}

func (e *Engine) trainEpoch(epoch int) (loss float64, skipped int, err error) {
	batchSize := e.clf.Config().BatchSize
	meter := &LossMeter{}
	metric := metrics.NewPrecisionRecallF(e.train.NumClasses())
	batches := e.train.Batches(batchSize, true, e.rng)
	if len(batches) == 0 {
		return 0, 0, fmt.Errorf("engine: training split has fewer than %d instances", batchSize)
	}

	for i, b := range batches {
		in, err := e.clf.Batchify(b.Tokens, b.Labels, b.Mask, vocab.PadID)
		if err != nil {
			return 0, skipped, fmt.Errorf("engine: train batch %d: %w", i, err)
		}
		batchLoss, probs, err := e.clf.Run(in)
		if err != nil {
			return 0, skipped, fmt.Errorf("engine: train batch %d: %w", i, err)
		}
		if math.IsNaN(batchLoss) || math.IsInf(batchLoss, 0) {
			skipped++
			log.Printf("epoch %d batch %d: loss is %v, skipping update", epoch, i, batchLoss)
			continue
		}

		params, err := e.clf.Params()
		if err != nil {
			return 0, skipped, err
		}
		grads, err := e.clf.Grads()
		if err != nil {
			return 0, skipped, err
		}
		if err := e.opt.Step(params, grads); err != nil {
			return 0, skipped, fmt.Errorf("engine: train batch %d: %w", i, err)
		}

		meter.Add(batchLoss, in.Size)
		if err := metric.Update(metrics.ArgmaxRows(probs), b.Labels, b.Mask); err != nil {
			return 0, skipped, err
		}
		if e.cfg.LogTrainMetricsEvery > 0 && (i+1)%e.cfg.LogTrainMetricsEvery == 0 {
			_, _, f1 := metric.Macro()
			log.Printf("epoch %d batch %d/%d: loss %.4f, macro F1 %.4f",
				epoch, i+1, len(batches), meter.Average(), f1)
		}
	}
	return meter.Average(), skipped, nil
}

// score runs the model over a split without optimizer updates. The final
// batch is padded up to the graph's batch size, so the loss is recomputed
// from the probabilities with masked rows excluded rather than taken from
// the graph.
func (e *Engine) score(ds *dataset.Dataset) (float64, *metrics.PrecisionRecallF, error) {
	batchSize := e.clf.Config().BatchSize
	meter := &LossMeter{}
	metric := metrics.NewPrecisionRecallF(ds.NumClasses())

	for i, b := range ds.Batches(batchSize, false, nil) {
		in, err := e.clf.Batchify(b.Tokens, b.Labels, b.Mask, vocab.PadID)
		if err != nil {
			return 0, nil, fmt.Errorf("batch %d: %w", i, err)
		}
		_, probs, err := e.clf.Run(in)
		if err != nil {
			return 0, nil, fmt.Errorf("batch %d: %w", i, err)
		}
		loss, n := maskedNLL(probs, b.Labels, b.Mask)
		if n > 0 {
			meter.Add(loss, n)
		}
		if err := metric.Update(metrics.ArgmaxRows(probs), b.Labels, b.Mask); err != nil {
			return 0, nil, err
		}
	}
	return meter.Average(), metric, nil
}

// maskedNLL averages the negative log likelihood of the true labels over the
// unmasked rows.
func maskedNLL(probs [][]float32, labels []int, mask []float32) (loss float64, n int) {
	var total float64
	for i, row := range probs {
		if mask != nil && mask[i] == 0 {
			continue
		}
		p := float64(row[labels[i]])
		if p < 1e-12 {
			p = 1e-12
		}
		total += -math.Log(p)
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return total / float64(n), n
}

func (e *Engine) save(path string, epoch int, loss float64) error {
	snapshot, err := e.clf.ExportParams()
	if err != nil {
		return err
	}
	return SaveCheckpoint(path, &Checkpoint{
		Epoch: epoch,
		Loss:  loss,
		Model: snapshot,
		Optim: e.opt.State(),
	})
}

// testBest restores the best checkpoint and reports test-split metrics.
func (e *Engine) testBest() error {
	path := filepath.Join(e.cfg.SaveDir, BestCheckpointName)
	ck, err := LoadCheckpoint(path)
	if err != nil {
		return err
	}
	if err := e.clf.ImportParams(ck.Model); err != nil {
		return err
	}
	log.Printf("restored best model from epoch %d", ck.Epoch)

	testLoss, metric, err := e.score(e.test)
	if err != nil {
		return fmt.Errorf("engine: test epoch: %w", err)
	}
	names := make([]string, e.test.NumClasses())
	for c := range names {
		name, err := e.test.ClassName(c)
		if err != nil {
			return err
		}
		names[c] = name
	}
	_, _, macroF := metric.Macro()
	_, _, microF := metric.Micro()
	log.Printf("test loss %.4f, macro F1 %.4f, micro F1 %.4f", testLoss, macroF, microF)
	fmt.Println(metric.Report(names))
	return nil
}

func (e *Engine) writeHistory() error {
	data, err := json.MarshalIndent(e.history, "", "  ")
	if err != nil {
		return fmt.Errorf("engine: marshal history: %w", err)
	}
	path := filepath.Join(e.cfg.SaveDir, MetricsFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("engine: write %s: %w", path, err)
	}
	return nil
}

// BestEpoch reports the epoch of the best model so far, 0 before any epoch.
func (e *Engine) BestEpoch() int { return e.bestEpoch }

// History returns the per-epoch statistics accumulated so far.
func (e *Engine) History() []EpochStats { return e.history }
