package engine

// LossMeter accumulates per-batch average losses weighted by batch size so
// that the epoch average is exact even when batches differ in size.
type LossMeter struct {
	total float64
	count int
}

// Add records a batch whose average loss over n instances was loss.
func (m *LossMeter) Add(loss float64, n int) {
	m.total += loss * float64(n)
	m.count += n
}

// Average returns the instance-weighted mean loss, or 0 before any Add.
func (m *LossMeter) Average() float64 {
	if m.count == 0 {
		return 0
	}
	return m.total / float64(m.count)
}

// Count reports how many instances have been accumulated.
func (m *LossMeter) Count() int { return m.count }

// Reset clears the meter for the next epoch.
func (m *LossMeter) Reset() {
	m.total = 0
	m.count = 0
}
