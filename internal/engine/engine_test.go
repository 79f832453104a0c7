package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/randomizedcoder/go-obd-telemetry/internal/source"
	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"
)

// mockClock provides deterministic time for testing.
type mockClock struct {
	mu   sync.Mutex
	time time.Time
}

func newMockClock(t time.Time) *mockClock {
	return &mockClock{time: t}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.time
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.time = c.time.Add(d)
}

// captureRecorder stores appended records and can fail on demand.
type captureRecorder struct {
	records []telemetry.LogRecord
	failAt  int
	err     error
}

func (r *captureRecorder) Append(rec telemetry.LogRecord) error {
	if r.err != nil && len(r.records) == r.failAt {
		return r.err
	}
	r.records = append(r.records, rec)
	return nil
}

func newTestEngine(t *testing.T, opts Options) (*Engine, *mockClock) {
	t.Helper()
	clock := newMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	opts.Clock = clock
	e, err := New(DefaultProfile(), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, clock
}

func frame(rpm, speed, maf, coolant, load, trim, intake float64) telemetry.RawFrame {
	return telemetry.RawFrame{
		RPM:        telemetry.Value(rpm),
		Speed:      telemetry.Value(speed),
		MAF:        telemetry.Value(maf),
		Coolant:    telemetry.Value(coolant),
		Load:       telemetry.Value(load),
		FuelTrim:   telemetry.Value(trim),
		IntakeTemp: telemetry.Value(intake),
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9*math.Max(1, math.Abs(b))
}

func TestNewEngineProfile(t *testing.T) {
	tests := []struct {
		name    string
		liters  float64
		wantErr bool
	}{
		{"typical", 2.0, false},
		{"small", 0.66, false},
		{"zero", 0, true},
		{"negative", -1.6, true},
		{"nan", math.NaN(), true},
		{"inf", math.Inf(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngineProfile(tt.liters)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewEngineProfile(%v) error = %v, wantErr %v", tt.liters, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidDisplacement) {
				t.Errorf("error %v should wrap ErrInvalidDisplacement", err)
			}
		})
	}
}

func TestNew_RejectsInvalidProfile(t *testing.T) {
	if _, err := New(EngineProfile{}, Options{}); !errors.Is(err, ErrInvalidDisplacement) {
		t.Errorf("New(zero profile) error = %v, want ErrInvalidDisplacement", err)
	}
}

func TestProcess_Formulas(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	m := e.Process(frame(3000, 80, 30, 90, 50, 0, 25))

	wantHP := 30 * 1.32
	if !almostEqual(m.HP, wantHP) {
		t.Errorf("HP = %v, want %v", m.HP, wantHP)
	}
	wantTorque := wantHP * 7127 / 3000
	if !almostEqual(m.Torque, wantTorque) {
		t.Errorf("Torque = %v, want %v", m.Torque, wantTorque)
	}
	density := 1.225 * 288.15 / (273.15 + 25)
	wantVE := 30 / (3000 * 2.0 * density / 120 * 1000) * 100
	if !almostEqual(m.VEPercent, wantVE) {
		t.Errorf("VE = %v, want %v", m.VEPercent, wantVE)
	}
	wantFuel := 30 * 3600 / (14.7 * 740)
	if !almostEqual(m.FuelRateLPH, wantFuel) {
		t.Errorf("FuelRate = %v, want %v", m.FuelRateLPH, wantFuel)
	}
	wantCum := wantFuel * 0.1 / 3600
	if !almostEqual(m.CumulativeFuelL, wantCum) {
		t.Errorf("CumulativeFuel = %v, want %v", m.CumulativeFuelL, wantCum)
	}
	if m.RPM != 3000 || m.Speed != 80 || m.Coolant != 90 || m.Load != 50 || m.IntakeTemp != 25 {
		t.Errorf("pass-through fields wrong: %+v", m)
	}
}

func TestProcess_TorqueZeroAtOrBelow500(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	for _, rpm := range []float64{0, 1, 250, 499.9, 500} {
		m := e.Process(frame(rpm, 0, 40, 90, 30, 0, 25))
		if m.Torque != 0 {
			t.Errorf("rpm=%v: Torque = %v, want 0", rpm, m.Torque)
		}
	}
	if m := e.Process(frame(500.1, 0, 40, 90, 30, 0, 25)); m.Torque == 0 {
		t.Error("rpm just above 500 should produce torque")
	}
}

func TestProcess_VEZeroAtOrBelow400(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	for _, rpm := range []float64{0, 100, 399, 400} {
		m := e.Process(frame(rpm, 0, 40, 90, 30, 0, 25))
		if m.VEPercent != 0 {
			t.Errorf("rpm=%v: VE = %v, want 0", rpm, m.VEPercent)
		}
	}
	if m := e.Process(frame(401, 0, 40, 90, 30, 0, 25)); m.VEPercent == 0 {
		t.Error("rpm just above 400 should produce VE")
	}
}

func TestProcess_MissingReadings(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	m := e.Process(telemetry.RawFrame{})

	want := telemetry.DerivedMetrics{IntakeTemp: telemetry.DefaultIntakeTemp}
	if m != want {
		t.Errorf("empty frame = %+v, want %+v", m, want)
	}

	// Intake absent changes density but not the failure mode.
	f := frame(3000, 0, 30, 90, 50, 0, 0)
	f.IntakeTemp = telemetry.Null
	withDefault := e.Process(f)
	explicit := e.Process(frame(3000, 0, 30, 90, 50, 0, 25))
	if !almostEqual(withDefault.VEPercent, explicit.VEPercent) {
		t.Errorf("absent intake VE = %v, want %v (25 C)", withDefault.VEPercent, explicit.VEPercent)
	}
}

func TestProcess_IntakeTempAffectsVE(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	cold := e.Process(frame(3000, 0, 30, 90, 50, 0, -10))
	hot := e.Process(frame(3000, 0, 30, 90, 50, 0, 60))
	if hot.VEPercent <= cold.VEPercent {
		t.Errorf("hotter intake (less dense air) should raise VE: cold=%v hot=%v", cold.VEPercent, hot.VEPercent)
	}
}

func TestProcess_DisplacementScalesVE(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	small := e.Process(frame(3000, 0, 30, 90, 50, 0, 25))

	p, _ := NewEngineProfile(4.0)
	if err := e.SetProfile(p); err != nil {
		t.Fatalf("SetProfile: %v", err)
	}
	large := e.Process(frame(3000, 0, 30, 90, 50, 0, 25))

	if !almostEqual(large.VEPercent*2, small.VEPercent) {
		t.Errorf("doubling displacement should halve VE: 2.0L=%v 4.0L=%v", small.VEPercent, large.VEPercent)
	}

	if err := e.SetProfile(EngineProfile{DisplacementLiters: -1}); err == nil {
		t.Error("SetProfile should reject invalid profile")
	}
	if e.Profile().DisplacementLiters != 4.0 {
		t.Errorf("invalid SetProfile changed profile to %v", e.Profile())
	}
}

func TestProcess_CumulativeFuelUsesPollInterval(t *testing.T) {
	e, clock := newTestEngine(t, Options{PollInterval: 500 * time.Millisecond})

	for i := 0; i < 10; i++ {
		// Wall clock advances irregularly; integration uses the configured step.
		clock.Advance(time.Duration(i) * time.Second)
		e.Process(frame(2000, 50, 20, 90, 30, 0, 25))
	}

	fuel := 20 * 3600 / (14.7 * 740)
	want := fuel * 0.5 / 3600 * 10
	if !almostEqual(e.CumulativeFuel(), want) {
		t.Errorf("CumulativeFuel = %v, want %v", e.CumulativeFuel(), want)
	}
}

func TestProcess_Stability(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	trims := []float64{2, -2, 2, -2, 2}
	for _, tr := range trims {
		m := e.Process(frame(800, 0, 5, 90, 20, tr, 25))
		if m.TrimStability != 0 {
			t.Fatalf("stability with <=5 samples = %v, want 0", m.TrimStability)
		}
	}

	m := e.Process(frame(800, 0, 5, 90, 20, -2, 25))
	if !almostEqual(m.TrimStability, 2) {
		t.Errorf("stability of alternating +-2 = %v, want 2", m.TrimStability)
	}
}

func TestPoll_DisconnectedSourceYieldsZero(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	src := source.NewMockSource(1)
	src.Disconnect()

	if m := e.Poll(context.Background(), src); m != (telemetry.DerivedMetrics{}) {
		t.Errorf("Poll(disconnected) = %+v, want zero", m)
	}
	if m := e.Poll(context.Background(), nil); m != (telemetry.DerivedMetrics{}) {
		t.Errorf("Poll(nil) = %+v, want zero", m)
	}
	if len(e.TrimSamples()) != 0 {
		t.Error("disconnected poll should not touch running state")
	}
}

func TestPoll_ConnectedSource(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	src := source.NewMockSource(1)

	m := e.Poll(context.Background(), src)
	if m.RPM <= 0 {
		t.Errorf("RPM = %v, want > 0 from mock source", m.RPM)
	}
}

func TestProcess_RecordsOnlyRunningEngine(t *testing.T) {
	rec := &captureRecorder{}
	e, _ := newTestEngine(t, Options{Recorder: rec})

	e.Process(frame(0, 0, 0, 20, 0, 0, 25))
	e.Process(frame(850, 0, 4, 20, 20, 0, 25))
	e.Process(frame(0, 0, 0, 20, 0, 0, 25))
	e.Process(frame(1200, 10, 8, 25, 30, 0, 25))

	if len(rec.records) != 2 {
		t.Fatalf("recorded %d rows, want 2", len(rec.records))
	}
	if rec.records[0].Metrics.RPM != 850 || rec.records[1].Metrics.RPM != 1200 {
		t.Errorf("records out of order: %+v", rec.records)
	}
}

func TestProcess_RecorderFailureDetaches(t *testing.T) {
	rec := &captureRecorder{failAt: 1, err: errors.New("disk full")}
	var reported []error
	e, _ := newTestEngine(t, Options{
		Recorder:      rec,
		OnRecordError: func(err error) { reported = append(reported, err) },
	})

	for i := 0; i < 5; i++ {
		m := e.Process(frame(1000, 0, 5, 90, 20, 0, 25))
		if m.RPM != 1000 {
			t.Fatalf("computation stopped after recorder failure: %+v", m)
		}
	}

	if len(reported) != 1 {
		t.Errorf("reported %d errors, want exactly 1", len(reported))
	}
	if e.Recording() {
		t.Error("recorder should be detached after failure")
	}
	if len(rec.records) != 1 {
		t.Errorf("recorded %d rows, want 1 before failure", len(rec.records))
	}
}

func TestProcess_FuelMapLastWriteWins(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	e.Process(frame(3000, 0, 40, 90, 50, 0, 25))
	e.Process(frame(3100, 0, 10, 90, 52, 0, 25)) // same cell: rpm bin 12, load bin 10

	grid := e.FuelMap()
	want := 10 * 3600 / (14.7 * 740)
	if !almostEqual(grid[10][12], want) {
		t.Errorf("cell = %v, want latest %v (not an average)", grid[10][12], want)
	}

	// Snapshot is a copy.
	grid[10][12] = -1
	if e.FuelMap()[10][12] == -1 {
		t.Error("FuelMap() returned live state")
	}
}

func TestProcess_LeaderboardFromLaunches(t *testing.T) {
	var laps []time.Duration
	e, clock := newTestEngine(t, Options{OnLapComplete: func(d time.Duration) { laps = append(laps, d) }})

	run := func(secs int) {
		e.Process(frame(800, 0, 5, 90, 20, 0, 25))
		clock.Advance(100 * time.Millisecond)
		e.Process(frame(1500, 5, 20, 90, 80, 0, 25))
		clock.Advance(time.Duration(secs) * time.Second)
		e.Process(frame(6000, 101, 90, 90, 90, 0, 25))
		clock.Advance(time.Second)
	}

	for _, s := range []int{9, 7, 12, 8} {
		run(s)
	}

	lb := e.Leaderboard()
	want := []time.Duration{7 * time.Second, 8 * time.Second, 9 * time.Second}
	if len(lb) != len(want) {
		t.Fatalf("leaderboard = %v, want %v", lb, want)
	}
	for i := range want {
		if lb[i] != want[i] {
			t.Errorf("leaderboard[%d] = %v, want %v", i, lb[i], want[i])
		}
	}
	if len(laps) != 4 {
		t.Errorf("OnLapComplete called %d times, want 4", len(laps))
	}

	e.ResetLeaderboard()
	if len(e.Leaderboard()) != 0 {
		t.Error("ResetLeaderboard did not clear")
	}
}
