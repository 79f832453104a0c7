// Package metrics provides Prometheus metrics for go-obd-telemetry.
//
// Metrics are organized into panels:
//   - Panel 1: Run overview (mode, vehicle, elapsed time)
//   - Panel 2: Live engine values (one gauge per derived metric)
//   - Panel 3: Diagnostics and derived ratios
//   - Panel 4: Performance (0-100 runs)
//   - Panel 5: Pipeline health (frames, source link, telemetry log, replay)
//
// Gauges always hold the latest frame; Prometheus scrapes them at its own
// cadence, so intermediate frames are not exported.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-obd-telemetry/internal/derived"
	"github.com/randomizedcoder/go-obd-telemetry/internal/diagnostics"
	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"
	"github.com/randomizedcoder/go-obd-telemetry/internal/timeseries"
)

// --- Panel 1: Run Overview ---
var (
	obdInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "obd_telemetry_info",
			Help: "Information about the run (value always 1)",
		},
		[]string{"version", "mode", "vehicle"},
	)

	obdDisplacementLiters = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "obd_engine_displacement_liters",
			Help: "Configured engine displacement",
		},
	)

	obdElapsedSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "obd_run_elapsed_seconds",
			Help: "Seconds since the run started",
		},
	)
)

// --- Panel 2: Live Engine Values ---
var (
	obdRPM = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "obd_engine_rpm",
			Help: "Engine speed (revolutions per minute)",
		},
	)

	obdSpeed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "obd_vehicle_speed_kmh",
			Help: "Road speed (km/h)",
		},
	)

	obdHorsepower = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "obd_engine_horsepower",
			Help: "Estimated power from mass air flow (hp)",
		},
	)

	obdTorque = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "obd_engine_torque_nm",
			Help: "Estimated torque (Nm, 0 at or below 500 rpm)",
		},
	)

	obdVolumetricEfficiency = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "obd_volumetric_efficiency_percent",
			Help: "Volumetric efficiency (%, 0 at or below 400 rpm)",
		},
	)

	obdFuelRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "obd_fuel_rate_liters_per_hour",
			Help: "Instantaneous fuel consumption (L/h)",
		},
	)

	obdCoolant = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "obd_coolant_temp_celsius",
			Help: "Coolant temperature",
		},
	)

	obdLoad = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "obd_engine_load_percent",
			Help: "Calculated engine load",
		},
	)

	obdFuelConsumed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "obd_fuel_consumed_liters",
			Help: "Cumulative fuel consumed this run",
		},
	)

	obdTrimStability = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "obd_fuel_trim_stability",
			Help: "Standard deviation of short-term fuel trim over the last 40 frames",
		},
	)

	obdIntakeTemp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "obd_intake_temp_celsius",
			Help: "Intake air temperature",
		},
	)

	obdFuelRateWindow = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "obd_fuel_rate_window_liters_per_hour",
			Help: "Fuel consumption averaged over a rolling window",
		},
		[]string{"window"},
	)
)

// --- Panel 3: Diagnostics & Derived Ratios ---
var (
	obdDiagnosisSeverity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "obd_diagnosis_severity",
			Help: "Severity of the current diagnosis (0 info, 1 caution, 2 critical)",
		},
	)

	obdDiagnosesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obd_diagnoses_total",
			Help: "Frames by matched diagnostic rule",
		},
		[]string{"rule", "severity"},
	)

	obdEconomy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "obd_economy_liters_per_100km",
			Help: "Instantaneous fuel economy (0 when stationary)",
		},
	)

	obdPowerToWeight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "obd_power_to_weight_hp_per_tonne",
			Help: "Horsepower per tonne of vehicle mass",
		},
	)
)

// --- Panel 4: Performance ---
var (
	obdLapSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "obd_zero_to_hundred_seconds",
			Help:    "Completed 0-100 km/h run times",
			Buckets: []float64{4, 5, 6, 7, 8, 9, 10, 12, 15, 20, 30},
		},
	)

	obdBestLapSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "obd_zero_to_hundred_best_seconds",
			Help: "Fastest 0-100 km/h time this run (0 = none yet)",
		},
	)
)

// --- Panel 5: Pipeline Health ---
var (
	obdFramesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "obd_frames_total",
			Help: "Frames produced by the metric engine",
		},
	)

	obdFrameDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "obd_frame_duration_seconds",
			Help:    "Time to query the source and compute one frame",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	obdSourceConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "obd_source_connected",
			Help: "1 when the sample source is connected",
		},
	)

	obdSourceReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "obd_source_reconnects_total",
			Help: "Successful source reconnects",
		},
	)

	obdLoggingEnabled = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "obd_logging_enabled",
			Help: "1 while records are being persisted",
		},
	)

	obdLogRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "obd_log_rows_total",
			Help: "Records appended to the telemetry log",
		},
	)

	obdLogErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "obd_log_errors_total",
			Help: "Telemetry log write failures",
		},
	)

	obdReplayFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "obd_replay_frames_total",
			Help: "Frames emitted by replay streams",
		},
		[]string{"stream"},
	)
)

// Collector updates the exported metrics and keeps the few totals the
// exit summary needs.
type Collector struct {
	mu sync.Mutex

	startTime  time.Time
	frames     int64
	logRows    int64
	logErrors  int64
	reconnects int64
	replayed   map[string]int64
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version            string
	Mode               string
	Vehicle            string
	DisplacementLiters float64
}

// NewCollector creates a new metrics collector.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		startTime: time.Now(),
		replayed:  make(map[string]int64),
	}

	registry.MustRegister(
		// Panel 1: Run Overview
		obdInfo,
		obdDisplacementLiters,
		obdElapsedSeconds,

		// Panel 2: Live Engine Values
		obdRPM,
		obdSpeed,
		obdHorsepower,
		obdTorque,
		obdVolumetricEfficiency,
		obdFuelRate,
		obdCoolant,
		obdLoad,
		obdFuelConsumed,
		obdTrimStability,
		obdIntakeTemp,
		obdFuelRateWindow,

		// Panel 3: Diagnostics
		obdDiagnosisSeverity,
		obdDiagnosesTotal,
		obdEconomy,
		obdPowerToWeight,

		// Panel 4: Performance
		obdLapSeconds,
		obdBestLapSeconds,

		// Panel 5: Pipeline Health
		obdFramesTotal,
		obdFrameDurationSeconds,
		obdSourceConnected,
		obdSourceReconnectsTotal,
		obdLoggingEnabled,
		obdLogRowsTotal,
		obdLogErrorsTotal,
		obdReplayFramesTotal,
	)

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	obdInfo.Reset()
	obdInfo.WithLabelValues(version, cfg.Mode, cfg.Vehicle).Set(1)
	obdDisplacementLiters.Set(cfg.DisplacementLiters)

	return c
}

// =============================================================================
// Update Methods
// =============================================================================

// RecordFrame exports one produced frame.
func (c *Collector) RecordFrame(m telemetry.DerivedMetrics, d diagnostics.Diagnosis, e derived.Extras, took time.Duration) {
	obdRPM.Set(m.RPM)
	obdSpeed.Set(m.Speed)
	obdHorsepower.Set(m.HP)
	obdTorque.Set(m.Torque)
	obdVolumetricEfficiency.Set(m.VEPercent)
	obdFuelRate.Set(m.FuelRateLPH)
	obdCoolant.Set(m.Coolant)
	obdLoad.Set(m.Load)
	obdFuelConsumed.Set(m.CumulativeFuelL)
	obdTrimStability.Set(m.TrimStability)
	obdIntakeTemp.Set(m.IntakeTemp)

	obdDiagnosisSeverity.Set(float64(d.Severity))
	obdDiagnosesTotal.WithLabelValues(d.Rule, d.Severity.String()).Inc()

	obdEconomy.Set(e.LPer100Km)
	obdPowerToWeight.Set(e.HPPerTonne)

	obdFramesTotal.Inc()
	obdFrameDurationSeconds.Observe(took.Seconds())

	c.mu.Lock()
	c.frames++
	obdElapsedSeconds.Set(time.Since(c.startTime).Seconds())
	c.mu.Unlock()
}

// RecordFuelWindows exports the rolling consumption rates.
func (c *Collector) RecordFuelWindows(s timeseries.FuelStats) {
	obdFuelRateWindow.WithLabelValues("1s").Set(s.Avg1s)
	obdFuelRateWindow.WithLabelValues("30s").Set(s.Avg30s)
	obdFuelRateWindow.WithLabelValues("60s").Set(s.Avg60s)
	obdFuelRateWindow.WithLabelValues("300s").Set(s.Avg300s)
}

// RecordLap records a completed 0-100 run and the current best time.
func (c *Collector) RecordLap(d, best time.Duration) {
	obdLapSeconds.Observe(d.Seconds())
	obdBestLapSeconds.Set(best.Seconds())
}

// ResetLaps clears the best-time gauge after a leaderboard reset.
func (c *Collector) ResetLaps() {
	obdBestLapSeconds.Set(0)
}

// =============================================================================
// Event Recording Methods
// =============================================================================

// SetSourceConnected records the source link state.
func (c *Collector) SetSourceConnected(connected bool) {
	obdSourceConnected.Set(boolToFloat(connected))
}

// SourceReconnected records a successful reconnect.
func (c *Collector) SourceReconnected() {
	obdSourceReconnectsTotal.Inc()

	c.mu.Lock()
	c.reconnects++
	c.mu.Unlock()
}

// SetLoggingEnabled records whether the telemetry log is attached.
func (c *Collector) SetLoggingEnabled(enabled bool) {
	obdLoggingEnabled.Set(boolToFloat(enabled))
}

// LogRowWritten records one persisted record.
func (c *Collector) LogRowWritten() {
	obdLogRowsTotal.Inc()

	c.mu.Lock()
	c.logRows++
	c.mu.Unlock()
}

// LogFailed records a telemetry log write failure.
func (c *Collector) LogFailed() {
	obdLogErrorsTotal.Inc()
	obdLoggingEnabled.Set(0)

	c.mu.Lock()
	c.logErrors++
	c.mu.Unlock()
}

// ReplayFrame records one frame emitted by a replay stream.
func (c *Collector) ReplayFrame(stream string) {
	obdReplayFramesTotal.WithLabelValues(stream).Inc()

	c.mu.Lock()
	c.replayed[stream]++
	c.mu.Unlock()
}

// =============================================================================
// Accessors
// =============================================================================

// Frames returns the number of frames recorded by this collector.
func (c *Collector) Frames() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// LogRows returns the number of rows recorded by this collector.
func (c *Collector) LogRows() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logRows
}

// Reconnects returns the number of reconnects recorded by this collector.
func (c *Collector) Reconnects() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnects
}

// ReplayedFrames returns the number of frames emitted by the named stream.
func (c *Collector) ReplayedFrames(stream string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replayed[stream]
}

// Elapsed returns the time since the collector was created.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
