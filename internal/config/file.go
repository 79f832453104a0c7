package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// LoadFile overlays the settings in path onto cfg. Keys use the json tag
// names of Config; keys missing from the file leave cfg unchanged. The
// format follows the file extension (yaml, json, toml).
func LoadFile(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	boolean := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	str("mode", &cfg.Mode)
	str("replay_path", &cfg.ReplayPath)
	str("ghost_path", &cfg.GhostPath)
	str("vehicle_db", &cfg.VehicleDB)
	str("vehicle", &cfg.Vehicle)
	str("vehicle_search", &cfg.VehicleSearch)
	str("log_dir", &cfg.LogDir)
	str("metrics_addr", &cfg.MetricsAddr)
	str("log_format", &cfg.LogFormat)

	boolean("logging_enabled", &cfg.LoggingEnabled)
	boolean("log_sync", &cfg.LogSync)
	boolean("verbose", &cfg.Verbose)
	boolean("tui", &cfg.TUIEnabled)
	boolean("check", &cfg.Check)
	boolean("skip_preflight", &cfg.SkipPreflight)

	durations := map[string]*time.Duration{
		"replay_cadence":   &cfg.ReplayCadence,
		"poll_interval":    &cfg.PollInterval,
		"connect_timeout":  &cfg.ConnectTimeout,
		"backoff_initial":  &cfg.BackoffInitial,
		"backoff_max":      &cfg.BackoffMax,
		"duration":         &cfg.Duration,
		"shutdown_timeout": &cfg.ShutdownTimeout,
	}
	for key, dst := range durations {
		if v.IsSet(key) {
			*dst = v.GetDuration(key)
		}
	}

	floats := map[string]*float64{
		"replay_speed":        &cfg.ReplaySpeed,
		"displacement_liters": &cfg.DisplacementLiters,
		"tonnage":             &cfg.Tonnage,
		"backoff_multiply":    &cfg.BackoffMultiply,
	}
	for key, dst := range floats {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}

	if v.IsSet("mock_seed") {
		cfg.MockSeed = v.GetInt64("mock_seed")
	}

	return nil
}
