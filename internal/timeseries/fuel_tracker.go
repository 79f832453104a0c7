// Package timeseries turns the engine's cumulative fuel total into rolling
// litres-per-hour averages.
//
// Observe is lock-free and may run on every frame. RecordSample and
// GetStats share a mutex over the sample ring.
package timeseries

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// historyLen covers the longest window at one sample per second.
const historyLen = 300

const secondsPerHour = 3600.0

// windows are the rolling spans reported in FuelStats, shortest first.
var windows = [...]time.Duration{time.Second, 30 * time.Second, time.Minute, 5 * time.Minute}

// Clock interface for testing with deterministic time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type sample struct {
	at     time.Time
	liters float64
}

// FuelTracker follows a monotonic fuel total. The producer calls Observe
// each frame and RecordSample once a second.
type FuelTracker struct {
	total atomic.Uint64 // math.Float64bits of the latest total

	mu    sync.RWMutex
	ring  [historyLen]sample
	head  int // next write position
	count int
	start time.Time

	clock Clock
}

// FuelStats holds consumption rates in litres per hour.
type FuelStats struct {
	TotalLiters float64

	Avg1s   float64
	Avg30s  float64
	Avg60s  float64
	Avg300s float64

	// AvgOverall spans the whole run.
	AvgOverall float64
}

// NewFuelTracker returns a tracker on the wall clock.
func NewFuelTracker() *FuelTracker {
	return NewFuelTrackerWithClock(realClock{})
}

// NewFuelTrackerWithClock returns a tracker driven by clock.
func NewFuelTrackerWithClock(clock Clock) *FuelTracker {
	t := &FuelTracker{clock: clock}
	t.restart(clock.Now())
	return t
}

// restart seeds the ring with a zero reading at now. Callers hold mu or
// own t exclusively.
func (t *FuelTracker) restart(now time.Time) {
	t.total.Store(0)
	t.head, t.count = 0, 0
	t.start = now
	t.push(sample{at: now})
}

func (t *FuelTracker) push(s sample) {
	t.ring[t.head] = s
	t.head = (t.head + 1) % historyLen
	if t.count < historyLen {
		t.count++
	}
}

// at returns the i-th newest sample, 0 being the latest.
func (t *FuelTracker) at(i int) sample {
	return t.ring[(t.head-1-i+historyLen)%historyLen]
}

// Observe stores a new cumulative total. Totals never shrink, so smaller
// or non-finite values are dropped.
func (t *FuelTracker) Observe(totalLiters float64) {
	if math.IsNaN(totalLiters) || math.IsInf(totalLiters, 0) {
		return
	}
	next := math.Float64bits(totalLiters)
	for {
		old := t.total.Load()
		if totalLiters <= math.Float64frombits(old) || t.total.CompareAndSwap(old, next) {
			return
		}
	}
}

func (t *FuelTracker) liters() float64 {
	return math.Float64frombits(t.total.Load())
}

// RecordSample appends the current total to the ring, evicting the
// oldest reading once the ring is full.
func (t *FuelTracker) RecordSample() {
	s := sample{at: t.clock.Now(), liters: t.liters()}

	t.mu.Lock()
	t.push(s)
	t.mu.Unlock()
}

// GetStats computes the rolling rates. A window longer than the recorded
// history falls back to the oldest sample.
func (t *FuelTracker) GetStats() FuelStats {
	now := t.clock.Now()
	liters := t.liters()

	t.mu.RLock()
	defer t.mu.RUnlock()

	var rates [len(windows)]float64
	for i, w := range windows {
		base := t.baseline(now.Add(-w))
		rates[i] = perHour(liters-base.liters, now.Sub(base.at))
	}

	return FuelStats{
		TotalLiters: liters,
		Avg1s:       rates[0],
		Avg30s:      rates[1],
		Avg60s:      rates[2],
		Avg300s:     rates[3],
		AvgOverall:  perHour(liters, now.Sub(t.start)),
	}
}

// baseline is the newest sample taken at or before cutoff, or the oldest
// one when the history does not reach back that far.
func (t *FuelTracker) baseline(cutoff time.Time) sample {
	for i := 0; i < t.count; i++ {
		if s := t.at(i); !s.at.After(cutoff) {
			return s
		}
	}
	return t.at(t.count - 1)
}

func perHour(liters float64, span time.Duration) float64 {
	if span <= 0 {
		return 0
	}
	return liters / span.Seconds() * secondsPerHour
}

// Reset discards the history and the total.
func (t *FuelTracker) Reset() {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.restart(now)
}

// SampleCount returns how many samples the ring holds.
func (t *FuelTracker) SampleCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}
