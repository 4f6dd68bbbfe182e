package dataset

import (
	"math/rand"

	"gorgonia.org/tensor"
)

// Batch is a rectangular slice of the dataset. Tokens has shape
// (BatchSize, MaxLength); rows past Size are evaluation padding and carry a
// zero mask entry.
type Batch struct {
	Tokens *tensor.Dense
	Labels []int
	Mask   []float32
	// Rows holds the dataset indices behind each real row, for analytics.
	Rows []int
	// Size is the number of real rows.
	Size int
}

// Batches cuts the split into batches of exactly batchSize rows. With
// dropLast, a trailing partial batch is discarded (training); otherwise it is
// padded up to batchSize with masked rows (evaluation). rng shuffles the
// instance order when non-nil.
func (d *Dataset) Batches(batchSize int, dropLast bool, rng *rand.Rand) []Batch {
	order := make([]int, d.Len())
	for i := range order {
		order[i] = i
	}
	if rng != nil {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	var batches []Batch
	for i := 0; i < len(order); i += batchSize {
		j := i + batchSize
		if j > len(order) {
			if dropLast {
				break
			}
			j = len(order)
		}
		rows := order[i:j]
		b := Batch{
			Labels: make([]int, batchSize),
			Mask:   make([]float32, batchSize),
			Rows:   append([]int(nil), rows...),
			Size:   len(rows),
		}
		L := d.num.MaxLength()
		backing := make([]int, batchSize*L)
		for bi, row := range rows {
			ids, label := d.Instance(row)
			copy(backing[bi*L:(bi+1)*L], ids)
			b.Labels[bi] = label
			b.Mask[bi] = 1
		}
		// padded rows keep pad-id tokens, label 0 and mask 0
		b.Tokens = tensor.New(tensor.WithShape(batchSize, L), tensor.WithBacking(backing))
		batches = append(batches, b)
	}
	return batches
}
