package engine

import (
	"sort"
	"time"
)

const (
	// LeaderboardSize is the number of best times retained.
	LeaderboardSize = 3

	// Launch detection band (exclusive) and completion speed, in km/h.
	perfIdleMax     = 2.0
	perfLaunchMax   = 8.0
	perfFinishSpeed = 100.0
)

// Leaderboard holds the best 0-100 times, ascending.
type Leaderboard struct {
	times []time.Duration
}

// Insert adds a time, keeping only the best LeaderboardSize entries.
func (l *Leaderboard) Insert(d time.Duration) {
	l.times = append(l.times, d)
	sort.Slice(l.times, func(i, j int) bool { return l.times[i] < l.times[j] })
	if len(l.times) > LeaderboardSize {
		l.times = l.times[:LeaderboardSize]
	}
}

// Times returns a copy of the entries, best first.
func (l *Leaderboard) Times() []time.Duration {
	out := make([]time.Duration, len(l.times))
	copy(out, l.times)
	return out
}

// Best returns the fastest time, if any.
func (l *Leaderboard) Best() (time.Duration, bool) {
	if len(l.times) == 0 {
		return 0, false
	}
	return l.times[0], true
}

// Reset clears the board.
func (l *Leaderboard) Reset() {
	l.times = l.times[:0]
}

// PerfTimer times 0-100 runs. A run starts on the rising edge from a
// standstill into the launch band, which ignores jitter around a steady
// speed. Once started it only ends at the finish speed; dips back to a
// standstill keep the original start time.
type PerfTimer struct {
	running   bool
	startedAt time.Time
	prevSpeed float64
	seen      bool
}

// Observe feeds one speed sample. It returns the elapsed time and true
// when a run completes.
func (p *PerfTimer) Observe(speed float64, now time.Time) (time.Duration, bool) {
	prev := p.prevSpeed
	hadPrev := p.seen
	p.prevSpeed = speed
	p.seen = true

	if p.running {
		if speed < perfFinishSpeed {
			return 0, false
		}
		p.running = false
		return now.Sub(p.startedAt), true
	}

	if hadPrev && prev <= perfIdleMax && speed > perfIdleMax && speed < perfLaunchMax {
		p.running = true
		p.startedAt = now
	}
	return 0, false
}

// Running reports whether a run is in progress.
func (p *PerfTimer) Running() bool {
	return p.running
}
