// Package snapshot holds the immutable per-frame view shared between the
// producer loop and its readers (dashboard, HTTP endpoint).
package snapshot

import (
	"sync/atomic"
	"time"

	"github.com/randomizedcoder/go-obd-telemetry/internal/derived"
	"github.com/randomizedcoder/go-obd-telemetry/internal/diagnostics"
	"github.com/randomizedcoder/go-obd-telemetry/internal/engine"
	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"
	"github.com/randomizedcoder/go-obd-telemetry/internal/timeseries"
)

// Snapshot is one published frame. Readers must treat it as read-only;
// the producer never mutates a Snapshot after publishing it.
type Snapshot struct {
	Seq  uint64
	Time time.Time
	Mode telemetry.SourceMode

	// Connected is false while the source is down and Metrics are zero.
	Connected bool

	// Logging reports whether frames are still being persisted.
	Logging bool

	Metrics   telemetry.DerivedMetrics
	Diagnosis diagnostics.Diagnosis
	Extras    derived.Extras
	Fuel      timeseries.FuelStats

	// FuelMap is nil for replayed frames.
	FuelMap     *engine.FuelMapGrid
	Leaderboard []time.Duration
}

// Slot is a single-writer, many-reader latest-value cell. Publishing
// overwrites; readers always see a complete Snapshot or nil.
type Slot struct {
	current atomic.Pointer[Snapshot]
	seq     atomic.Uint64
}

// Publish stamps s with the next sequence number and makes it current.
func (sl *Slot) Publish(s Snapshot) *Snapshot {
	s.Seq = sl.seq.Add(1)
	sl.current.Store(&s)
	return &s
}

// Load returns the latest snapshot, or nil before the first Publish.
func (sl *Slot) Load() *Snapshot {
	return sl.current.Load()
}

// Ghost is the latest frame of a replay running beside another stream.
type Ghost struct {
	Metrics telemetry.DerivedMetrics
	Emitted int64
	Total   int64
}

// GhostSlot is the Slot counterpart for ghost frames.
type GhostSlot struct {
	current atomic.Pointer[Ghost]
}

// Store makes g current.
func (sl *GhostSlot) Store(g Ghost) {
	sl.current.Store(&g)
}

// Load returns the latest ghost frame, or nil if none has been emitted.
func (sl *GhostSlot) Load() *Ghost {
	return sl.current.Load()
}
