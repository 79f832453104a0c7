package source

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"
)

// mockStep is the virtual time advanced per frame (one 10 Hz poll).
const mockStep = 0.1

// MockSource generates a simulated drive cycle: a cold start idling while
// the coolant warms, repeated launches to highway speed, and cruising.
//
// The frame advances when RPM is queried, so a full ReadFrame observes
// one consistent instant.
type MockSource struct {
	mu        sync.Mutex
	connected bool
	t         float64
	rng       *rand.Rand
	frame     telemetry.RawFrame

	// Unsupported signals always answer null.
	Unsupported map[Signal]bool
}

// NewMockSource creates a connected mock source. The same seed always
// yields the same drive cycle.
func NewMockSource(seed int64) *MockSource {
	return &MockSource{
		connected: true,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// IsConnected reports whether the simulated adapter is attached.
func (m *MockSource) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Connect attaches the simulated adapter.
func (m *MockSource) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	return nil
}

// Disconnect detaches the simulated adapter.
func (m *MockSource) Disconnect() {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
}

// Close releases the source.
func (m *MockSource) Close() error {
	m.Disconnect()
	return nil
}

// Query answers one signal for the current simulated instant.
func (m *MockSource) Query(ctx context.Context, sig Signal) telemetry.Reading {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected || ctx.Err() != nil || m.Unsupported[sig] {
		return telemetry.Null
	}

	if sig == SignalRPM {
		m.advance()
	}

	switch sig {
	case SignalRPM:
		return m.frame.RPM
	case SignalSpeed:
		return m.frame.Speed
	case SignalMAF:
		return m.frame.MAF
	case SignalCoolantTemp:
		return m.frame.Coolant
	case SignalEngineLoad:
		return m.frame.Load
	case SignalFuelTrim:
		return m.frame.FuelTrim
	case SignalIntakeTemp:
		return m.frame.IntakeTemp
	default:
		return telemetry.Null
	}
}

// advance moves the simulation forward one step. Must be called with mu held.
func (m *MockSource) advance() {
	m.t += mockStep

	// Coolant warms from 20 C towards 90 C over the first few minutes.
	coolant := 90 - 70*math.Exp(-m.t/120)

	// 60 s cycle: 10 s idle, 15 s launch, 35 s cruise.
	phase := math.Mod(m.t, 60)
	var speed, rpm, load float64
	switch {
	case phase < 10:
		speed = 0
		rpm = 800
		load = 20
	case phase < 25:
		p := (phase - 10) / 15
		speed = 110 * p
		rpm = 1500 + 4500*math.Mod(p*4, 1)
		load = 85
	default:
		speed = 95 + 5*math.Sin(phase)
		rpm = 3100
		load = 25
	}

	rpm += m.rng.Float64()*50 - 25
	trim := m.rng.NormFloat64() * 1.5
	maf := rpm * load / 1000 * 0.9
	intake := 30 + m.rng.Float64()*8

	m.frame = telemetry.RawFrame{
		RPM:        telemetry.Value(rpm),
		Speed:      telemetry.Value(speed),
		MAF:        telemetry.Value(maf),
		Coolant:    telemetry.Value(coolant),
		Load:       telemetry.Value(load),
		FuelTrim:   telemetry.Value(trim),
		IntakeTemp: telemetry.Value(intake),
	}
}
