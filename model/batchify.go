package model

import (
	"fmt"

	"gorgonia.org/tensor"
)

// BatchInput is one model-ready batch: X is the (BatchSize, VocabSize)
// bag-of-words matrix, Y the (BatchSize, NumClasses) one-hot targets. Mask,
// Labels and Size pass through from the dataset batch for loss and metric
// bookkeeping.
type BatchInput struct {
	X, Y   *tensor.Dense
	Labels []int
	Mask   []float32
	Size   int
}

// Batchify converts a (BatchSize, L) token-id tensor and its labels into a
// BatchInput. Pad ids are dropped and each row is normalized by its token
// count, so the embedding product averages the sentence's token embeddings.
// Masked rows get an all-zero target row and contribute nothing to the cost.
func (c *Classifier) Batchify(tokens *tensor.Dense, labels []int, mask []float32, padID int) (*BatchInput, error) {
	shape := tokens.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("model: tokens must be 2-d, got shape %v", shape)
	}
	B, L := shape[0], shape[1]
	if B != c.cfg.BatchSize {
		return nil, fmt.Errorf("model: batch has %d rows, graph expects %d", B, c.cfg.BatchSize)
	}
	if len(labels) != B {
		return nil, fmt.Errorf("model: %d labels for %d rows", len(labels), B)
	}
	ids, ok := tokens.Data().([]int)
	if !ok {
		return nil, fmt.Errorf("model: token tensor is not backed by []int")
	}

	V, C := c.cfg.VocabSize, c.cfg.NumClasses
	xb := make([]float32, B*V)
	yb := make([]float32, B*C)
	size := 0
	for row := 0; row < B; row++ {
		count := 0
		for l := 0; l < L; l++ {
			id := ids[row*L+l]
			if id == padID {
				continue
			}
			if id < 0 || id >= V {
				return nil, fmt.Errorf("model: token id %d outside vocabulary of %d", id, V)
			}
			xb[row*V+id]++
			count++
		}
		if count > 0 {
			inv := 1 / float32(count)
			base := row * V
			for v := 0; v < V; v++ {
				xb[base+v] *= inv
			}
		}

		if mask != nil && mask[row] == 0 {
			continue
		}
		if labels[row] < 0 || labels[row] >= C {
			return nil, fmt.Errorf("model: label %d outside %d classes", labels[row], C)
		}
		yb[row*C+labels[row]] = 1
		size++
	}

	return &BatchInput{
		X:      tensor.New(tensor.WithShape(B, V), tensor.WithBacking(xb)),
		Y:      tensor.New(tensor.WithShape(B, C), tensor.WithBacking(yb)),
		Labels: append([]int(nil), labels...),
		Mask:   append([]float32(nil), mask...),
		Size:   size,
	}, nil
}
