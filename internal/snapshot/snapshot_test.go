package snapshot

import (
	"sync"
	"testing"

	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"
)

func TestSlot_EmptyLoad(t *testing.T) {
	var sl Slot
	if sl.Load() != nil {
		t.Error("Load() on empty slot should be nil")
	}
}

func TestSlot_PublishAssignsSequence(t *testing.T) {
	var sl Slot

	first := sl.Publish(Snapshot{Metrics: telemetry.DerivedMetrics{RPM: 800}})
	second := sl.Publish(Snapshot{Metrics: telemetry.DerivedMetrics{RPM: 900}})

	if first.Seq != 1 || second.Seq != 2 {
		t.Errorf("Seq = %d, %d, want 1, 2", first.Seq, second.Seq)
	}
	if got := sl.Load(); got != second {
		t.Errorf("Load() = %+v, want latest publish", got)
	}
	if first.Metrics.RPM != 800 {
		t.Error("earlier snapshot was mutated by a later publish")
	}
}

func TestSlot_ConcurrentReaders(t *testing.T) {
	var sl Slot
	const frames = 1000

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			for i := 0; i < frames; i++ {
				s := sl.Load()
				if s == nil {
					continue
				}
				if s.Seq < last {
					t.Errorf("sequence went backwards: %d after %d", s.Seq, last)
					return
				}
				// RPM is written as Seq*10 so a torn read would disagree.
				if s.Metrics.RPM != float64(s.Seq*10) {
					t.Errorf("torn snapshot: seq=%d rpm=%v", s.Seq, s.Metrics.RPM)
					return
				}
				last = s.Seq
			}
		}()
	}

	for i := 1; i <= frames; i++ {
		sl.Publish(Snapshot{Metrics: telemetry.DerivedMetrics{RPM: float64(i * 10)}})
	}
	wg.Wait()
}

func TestGhostSlot(t *testing.T) {
	var sl GhostSlot
	if sl.Load() != nil {
		t.Fatal("empty ghost slot should load nil")
	}

	sl.Store(Ghost{Metrics: telemetry.DerivedMetrics{Speed: 42}, Emitted: 3, Total: 10})
	g := sl.Load()
	if g == nil || g.Metrics.Speed != 42 || g.Emitted != 3 || g.Total != 10 {
		t.Errorf("Load() = %+v", g)
	}
}
