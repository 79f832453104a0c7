package source

import (
	"context"
	"testing"

	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"
)

// scriptedSource answers fixed readings and records query order.
type scriptedSource struct {
	readings map[Signal]telemetry.Reading
	queried  []Signal
	cancel   context.CancelFunc
	cancelAt Signal
}

func (s *scriptedSource) IsConnected() bool { return true }

func (s *scriptedSource) Query(ctx context.Context, sig Signal) telemetry.Reading {
	s.queried = append(s.queried, sig)
	if s.cancel != nil && sig == s.cancelAt {
		s.cancel()
	}
	return s.readings[sig]
}

func TestReadFrame_MapsSignals(t *testing.T) {
	src := &scriptedSource{readings: map[Signal]telemetry.Reading{
		SignalRPM:         telemetry.Value(3000),
		SignalSpeed:       telemetry.Value(60),
		SignalMAF:         telemetry.Value(25),
		SignalCoolantTemp: telemetry.Value(90),
		SignalEngineLoad:  telemetry.Value(40),
		SignalFuelTrim:    telemetry.Value(-2.5),
		// intake temp unsupported
	}}

	f := ReadFrame(context.Background(), src)

	want := telemetry.RawFrame{
		RPM:      telemetry.Value(3000),
		Speed:    telemetry.Value(60),
		MAF:      telemetry.Value(25),
		Coolant:  telemetry.Value(90),
		Load:     telemetry.Value(40),
		FuelTrim: telemetry.Value(-2.5),
	}
	if f != want {
		t.Errorf("ReadFrame = %+v, want %+v", f, want)
	}
	if f.IntakeTemp.Valid {
		t.Error("unsupported intake temp should be null")
	}
	if len(src.queried) != len(Signals) {
		t.Errorf("queried %d signals, want %d", len(src.queried), len(Signals))
	}
}

func TestReadFrame_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &scriptedSource{
		readings: map[Signal]telemetry.Reading{SignalRPM: telemetry.Value(1000)},
		cancel:   cancel,
		cancelAt: SignalSpeed,
	}

	f := ReadFrame(ctx, src)
	if len(src.queried) != 2 {
		t.Errorf("queried %v, want stop after %s", src.queried, SignalSpeed)
	}
	if !f.RPM.Valid || f.MAF.Valid {
		t.Errorf("frame = %+v, want RPM only", f)
	}
}

func TestMockSource_Deterministic(t *testing.T) {
	a := NewMockSource(7)
	b := NewMockSource(7)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		fa := ReadFrame(ctx, a)
		fb := ReadFrame(ctx, b)
		if fa != fb {
			t.Fatalf("frame %d differs: %+v vs %+v", i, fa, fb)
		}
	}
}

func TestMockSource_Disconnected(t *testing.T) {
	m := NewMockSource(1)
	m.Disconnect()

	if m.IsConnected() {
		t.Fatal("IsConnected() = true after Disconnect")
	}
	if r := m.Query(context.Background(), SignalRPM); r.Valid {
		t.Errorf("Query on disconnected source = %+v, want null", r)
	}

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !m.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}
}

func TestMockSource_Unsupported(t *testing.T) {
	m := NewMockSource(1)
	m.Unsupported = map[Signal]bool{SignalIntakeTemp: true}

	f := ReadFrame(context.Background(), m)
	if f.IntakeTemp.Valid {
		t.Error("unsupported signal should answer null")
	}
	if !f.RPM.Valid {
		t.Error("supported signal should answer")
	}
}

func TestMockSource_ReachesLaunchSpeed(t *testing.T) {
	m := NewMockSource(3)
	ctx := context.Background()

	var maxSpeed float64
	for i := 0; i < 300; i++ {
		f := ReadFrame(ctx, m)
		if f.Speed.Value > maxSpeed {
			maxSpeed = f.Speed.Value
		}
	}
	if maxSpeed < 100 {
		t.Errorf("max speed over first 30 s = %v, want >= 100", maxSpeed)
	}
}
