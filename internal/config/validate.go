package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type problems []error

func (p *problems) check(ok bool, field, format string, args ...any) {
	if !ok {
		*p = append(*p, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}
}

// Validate reports every invalid field at once, joined into one error.
func Validate(cfg *Config) error {
	var p problems

	mode, err := telemetry.ParseSourceMode(cfg.Mode)
	p.check(err == nil, "mode", "must be one of: live, mock, replay (got %q)", cfg.Mode)
	p.check(err != nil || mode != telemetry.ModeReplay || cfg.ReplayPath != "",
		"replay_path", "required in replay mode")
	p.check(cfg.ReplayCadence > 0, "replay_cadence", "must be positive")
	p.check(positive(cfg.ReplaySpeed), "replay_speed", "must be a positive number")

	p.check(cfg.PollInterval > 0, "poll_interval", "must be positive")
	p.check(positive(cfg.DisplacementLiters), "displacement_liters", "must be a positive number of liters")
	p.check(positive(cfg.Tonnage), "tonnage", "must be a positive number of tonnes")
	p.check(cfg.Vehicle == "" || cfg.VehicleDB != "", "vehicle", "requires -vehicle-db")
	p.check(cfg.VehicleSearch == "" || cfg.VehicleDB != "", "vehicle_search", "requires -vehicle-db")

	p.check(!cfg.LoggingEnabled || cfg.LogDir != "", "log_dir", "required when logging is enabled")
	p.check(cfg.LogFormat == "json" || cfg.LogFormat == "text",
		"log_format", "must be 'json' or 'text' (got %q)", cfg.LogFormat)

	p.check(cfg.ConnectTimeout > 0, "connect_timeout", "must be positive")
	p.check(cfg.BackoffInitial > 0, "backoff_initial", "must be positive")
	p.check(cfg.BackoffMax >= cfg.BackoffInitial, "backoff_max", "must be >= backoff_initial")
	p.check(cfg.BackoffMultiply >= 1, "backoff_multiply", "must be >= 1.0")

	p.check(cfg.Duration >= 0, "duration", "must not be negative")
	p.check(cfg.ShutdownTimeout > 0, "shutdown_timeout", "must be positive")

	return errors.Join(p...)
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// ApplyCheckMode modifies config for --check mode.
func ApplyCheckMode(cfg *Config) {
	cfg.Mode = "mock"
	cfg.Duration = 10 * time.Second
	cfg.TUIEnabled = false
	cfg.Verbose = true
}
