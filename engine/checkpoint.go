package engine

import (
	"encoding/gob"
	"fmt"
	"os"

	"sectlabel/model"
	"sectlabel/optim"
)

// Checkpoint is the unit of persistence for a training run: the epoch it was
// taken at, the validation loss at that point, every model parameter and the
// optimizer moment estimates.
type Checkpoint struct {
	Epoch int
	Loss  float64
	Model map[string]model.ParamTensor
	Optim optim.State
}

// SaveCheckpoint gob-encodes a checkpoint to path.
func SaveCheckpoint(path string, ck *Checkpoint) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("engine: create checkpoint %s: %w", path, err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(ck); err != nil {
		return fmt.Errorf("engine: encode checkpoint %s: %w", path, err)
	}
	return nil
}

// LoadCheckpoint reads a checkpoint written by SaveCheckpoint.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("engine: open checkpoint %s: %w", path, err)
	}
	defer f.Close()
	var ck Checkpoint
	if err := gob.NewDecoder(f).Decode(&ck); err != nil {
		return nil, fmt.Errorf("engine: decode checkpoint %s: %w", path, err)
	}
	return &ck, nil
}
