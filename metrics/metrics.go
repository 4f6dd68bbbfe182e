// Package metrics accumulates classification quality measures over batches.
package metrics

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Tracked metric names accepted by the training engine.
const (
	TrackLoss        = "loss"
	TrackMacroFscore = "macro_fscore"
	TrackMicroFscore = "micro_fscore"
)

// PrecisionRecallF accumulates per-class true/false positive and false
// negative counts plus a confusion matrix. One accumulator serves one data
// split and is reset at every epoch boundary.
type PrecisionRecallF struct {
	numClasses int
	tp, fp, fn []float64
	confusion  *mat.Dense // rows: true class, cols: predicted class
}

// NewPrecisionRecallF returns an empty accumulator for numClasses classes.
func NewPrecisionRecallF(numClasses int) *PrecisionRecallF {
	return &PrecisionRecallF{
		numClasses: numClasses,
		tp:         make([]float64, numClasses),
		fp:         make([]float64, numClasses),
		fn:         make([]float64, numClasses),
		confusion:  mat.NewDense(numClasses, numClasses, nil),
	}
}

// Reset clears all accumulated counts.
func (m *PrecisionRecallF) Reset() {
	for i := 0; i < m.numClasses; i++ {
		m.tp[i], m.fp[i], m.fn[i] = 0, 0, 0
	}
	m.confusion.Zero()
}

// Update accumulates one batch of predictions. mask may be nil; rows with a
// zero mask entry (evaluation padding) are skipped.
func (m *PrecisionRecallF) Update(preds, labels []int, mask []float32) error {
	if len(preds) != len(labels) {
		return fmt.Errorf("metrics: %d predictions vs %d labels", len(preds), len(labels))
	}
	if mask != nil && len(mask) != len(preds) {
		return fmt.Errorf("metrics: %d mask entries vs %d predictions", len(mask), len(preds))
	}
	for i := range preds {
		if mask != nil && mask[i] == 0 {
			continue
		}
		p, l := preds[i], labels[i]
		if p < 0 || p >= m.numClasses || l < 0 || l >= m.numClasses {
			return fmt.Errorf("metrics: class out of range: pred %d, label %d", p, l)
		}
		m.confusion.Set(l, p, m.confusion.At(l, p)+1)
		if p == l {
			m.tp[l]++
		} else {
			m.fp[p]++
			m.fn[l]++
		}
	}
	return nil
}

// NumClasses returns the number of classes tracked.
func (m *PrecisionRecallF) NumClasses() int {
	return m.numClasses
}

// PerClass returns precision, recall and F1 for one class. Classes with no
// predictions or no support score zero rather than NaN.
func (m *PrecisionRecallF) PerClass(c int) (precision, recall, f1 float64) {
	precision = safeDiv(m.tp[c], m.tp[c]+m.fp[c])
	recall = safeDiv(m.tp[c], m.tp[c]+m.fn[c])
	f1 = safeDiv(2*precision*recall, precision+recall)
	return
}

// Macro returns the unweighted mean of per-class precision, recall and F1.
func (m *PrecisionRecallF) Macro() (precision, recall, f1 float64) {
	for c := 0; c < m.numClasses; c++ {
		p, r, f := m.PerClass(c)
		precision += p
		recall += r
		f1 += f
	}
	n := float64(m.numClasses)
	return precision / n, recall / n, f1 / n
}

// Micro returns precision, recall and F1 computed from the pooled counts.
func (m *PrecisionRecallF) Micro() (precision, recall, f1 float64) {
	var tp, fp, fn float64
	for c := 0; c < m.numClasses; c++ {
		tp += m.tp[c]
		fp += m.fp[c]
		fn += m.fn[c]
	}
	precision = safeDiv(tp, tp+fp)
	recall = safeDiv(tp, tp+fn)
	f1 = safeDiv(2*precision*recall, precision+recall)
	return
}

// Value returns the named tracked metric (macro_fscore or micro_fscore).
func (m *PrecisionRecallF) Value(name string) (float64, error) {
	switch name {
	case TrackMacroFscore:
		_, _, f := m.Macro()
		return f, nil
	case TrackMicroFscore:
		_, _, f := m.Micro()
		return f, nil
	default:
		return 0, fmt.Errorf("metrics: unknown tracked metric %q", name)
	}
}

// Confusion returns a copy of the confusion matrix; rows are true classes,
// columns predicted classes.
func (m *PrecisionRecallF) Confusion() *mat.Dense {
	out := mat.NewDense(m.numClasses, m.numClasses, nil)
	out.Copy(m.confusion)
	return out
}

// Support returns the number of gold instances seen for class c.
func (m *PrecisionRecallF) Support(c int) int {
	return int(m.tp[c] + m.fn[c])
}

// FormatConfusion renders the confusion matrix with class name headers.
func (m *PrecisionRecallF) FormatConfusion(classNames []string) string {
	var b strings.Builder
	b.WriteString("confusion matrix (rows: true, cols: predicted)\n")
	for c := 0; c < m.numClasses; c++ {
		fmt.Fprintf(&b, "[%2d] %s\n", c, className(classNames, c))
	}
	fa := mat.Formatted(m.confusion, mat.Prefix(""), mat.Squeeze())
	fmt.Fprintf(&b, "%v\n", fa)
	return b.String()
}

// Report renders a per-class precision/recall/F1 table with macro and micro
// aggregates.
func (m *PrecisionRecallF) Report(classNames []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-24s %9s %9s %9s %9s\n", "class", "precision", "recall", "fscore", "support")
	for c := 0; c < m.numClasses; c++ {
		p, r, f := m.PerClass(c)
		fmt.Fprintf(&b, "%-24s %9.4f %9.4f %9.4f %9d\n", className(classNames, c), p, r, f, m.Support(c))
	}
	mp, mr, mf := m.Macro()
	fmt.Fprintf(&b, "%-24s %9.4f %9.4f %9.4f\n", "macro", mp, mr, mf)
	up, ur, uf := m.Micro()
	fmt.Fprintf(&b, "%-24s %9.4f %9.4f %9.4f\n", "micro", up, ur, uf)
	return b.String()
}

// Argmax returns the index of the largest value in row.
func Argmax(row []float32) int {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}

// ArgmaxRows applies Argmax to every row.
func ArgmaxRows(rows [][]float32) []int {
	out := make([]int, len(rows))
	for i, row := range rows {
		out[i] = Argmax(row)
	}
	return out
}

func className(names []string, c int) string {
	if c < len(names) {
		return names[c]
	}
	return fmt.Sprintf("class_%d", c)
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
