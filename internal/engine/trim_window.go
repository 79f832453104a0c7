package engine

import "math"

const (
	// TrimWindowSize is the number of fuel-trim samples retained.
	TrimWindowSize = 40

	// minStabilitySamples is the window length that must be exceeded
	// before a stability figure is reported.
	minStabilitySamples = 5
)

// TrimWindow is a bounded FIFO of recent short-term fuel-trim samples.
// The oldest sample is evicted when a sample beyond capacity is added.
type TrimWindow struct {
	samples  [TrimWindowSize]float64
	writeIdx int
	n        int
}

// Add appends a sample, evicting the oldest when full.
func (w *TrimWindow) Add(v float64) {
	w.samples[w.writeIdx] = v
	w.writeIdx = (w.writeIdx + 1) % TrimWindowSize
	if w.n < TrimWindowSize {
		w.n++
	}
}

// Len returns the number of samples held.
func (w *TrimWindow) Len() int {
	return w.n
}

// Samples returns the held samples, oldest first.
func (w *TrimWindow) Samples() []float64 {
	out := make([]float64, 0, w.n)
	start := (w.writeIdx - w.n + TrimWindowSize) % TrimWindowSize
	for i := 0; i < w.n; i++ {
		out = append(out, w.samples[(start+i)%TrimWindowSize])
	}
	return out
}

// Stability returns the population standard deviation of the window, or 0
// while the window holds too few samples.
func (w *TrimWindow) Stability() float64 {
	if w.n <= minStabilitySamples {
		return 0
	}

	var sum float64
	for i := 0; i < w.n; i++ {
		sum += w.samples[i]
	}
	mean := sum / float64(w.n)

	var variance float64
	for i := 0; i < w.n; i++ {
		d := w.samples[i] - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(w.n))
}
