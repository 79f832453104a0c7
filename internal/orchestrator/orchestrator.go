// Package orchestrator wires the source, engine, log, replayers and
// presentation into one run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-obd-telemetry/internal/config"
	"github.com/randomizedcoder/go-obd-telemetry/internal/derived"
	"github.com/randomizedcoder/go-obd-telemetry/internal/diagnostics"
	"github.com/randomizedcoder/go-obd-telemetry/internal/engine"
	"github.com/randomizedcoder/go-obd-telemetry/internal/metrics"
	"github.com/randomizedcoder/go-obd-telemetry/internal/preflight"
	"github.com/randomizedcoder/go-obd-telemetry/internal/replay"
	"github.com/randomizedcoder/go-obd-telemetry/internal/snapshot"
	"github.com/randomizedcoder/go-obd-telemetry/internal/source"
	"github.com/randomizedcoder/go-obd-telemetry/internal/stats"
	"github.com/randomizedcoder/go-obd-telemetry/internal/supervisor"
	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"
	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetrylog"
	"github.com/randomizedcoder/go-obd-telemetry/internal/timeseries"
	"github.com/randomizedcoder/go-obd-telemetry/internal/tui"
	"github.com/randomizedcoder/go-obd-telemetry/internal/vehicle"
)

// Stream names used in logs and the replay metrics.
const (
	streamReplay = "replay"
	streamGhost  = "ghost"
)

// ErrNoLiveSource is returned in live mode when the host supplied no adapter.
var ErrNoLiveSource = errors.New("live mode needs a sensor adapter; use -mode mock or -mode replay")

// Options carries what the host supplies beyond the configuration.
type Options struct {
	Version string

	// Source is the adapter used in live mode.
	Source source.SampleSource

	// Stdout receives preflight results and the exit summary.
	Stdout io.Writer

	// Registry replaces the default Prometheus registry.
	Registry *prometheus.Registry
}

// Orchestrator coordinates all components for a telemetry run.
type Orchestrator struct {
	config *config.Config
	logger *slog.Logger
	opts   Options

	metrics       *metrics.Collector
	metricsServer *metrics.Server
	stats         *stats.RunStats
	fuel          *timeseries.FuelTracker

	slot      snapshot.Slot
	ghostSlot snapshot.GhostSlot

	producer *Producer
	replayer *replay.Replayer
	ghost    *replay.Replayer
	catalog  *vehicle.Catalog
	log      *telemetrylog.Writer

	vehicleName string
	profile     engine.EngineProfile
	plugin      derived.Plugin

	startTime time.Time
}

// New creates a new Orchestrator with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, opts Options) *Orchestrator {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	return &Orchestrator{
		config:  cfg,
		logger:  logger,
		opts:    opts,
		stats:   stats.NewRunStats(),
		fuel:    timeseries.NewFuelTracker(),
		profile: engine.DefaultProfile(),
		plugin:  derived.New(cfg.Tonnage),
	}
}

// Run executes the telemetry run. It blocks until the duration elapses,
// a signal arrives, the dashboard quits, ctx is cancelled or (without a
// dashboard) a replay reaches its end.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.config.SearchOnly() {
		return o.searchVehicles(ctx)
	}

	o.startTime = time.Now()
	mode := o.config.SourceMode()

	// Run preflight checks
	if !o.config.SkipPreflight {
		result := preflight.RunAll(o.preflightOptions(mode))
		preflight.PrintResults(o.opts.Stdout, result)
		if !result.Passed {
			return fmt.Errorf("preflight checks failed (use --skip-preflight to override)")
		}
	}

	if err := o.resolveVehicle(ctx); err != nil {
		return err
	}
	defer o.closeCatalog()

	o.setupMetrics(mode)
	if o.metricsServer != nil {
		if err := o.metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	// Setup signal handling
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	var streamDone <-chan struct{}
	switch mode {
	case telemetry.ModeReplay:
		done, err := o.startReplay()
		if err != nil {
			o.shutdownServer()
			return err
		}
		streamDone = done
	default:
		if err := o.startProducer(ctx, mode); err != nil {
			o.shutdownServer()
			return err
		}
	}

	if o.config.GhostEnabled() {
		o.startGhost()
	}

	var tuiDone chan error
	if o.config.TUIEnabled {
		tuiDone = make(chan error, 1)
		go func() {
			tuiDone <- tui.Run(ctx, o.tuiConfig(mode))
		}()
		// The dashboard decides when a finished replay is dismissed.
		streamDone = nil
	}

	// Setup duration timer if configured
	var durationTimer <-chan time.Time
	if o.config.Duration > 0 {
		timer := time.NewTimer(o.config.Duration)
		defer timer.Stop()
		durationTimer = timer.C
	}

	// Wait for completion signal
	var runErr error
	select {
	case sig := <-sigCh:
		o.logger.Info("received_signal", "signal", sig.String())
	case <-durationTimer:
		o.logger.Info("duration_elapsed", "duration", o.config.Duration.String())
	case <-streamDone:
		o.logger.Info("replay_finished")
	case err := <-tuiDone:
		if err != nil {
			runErr = fmt.Errorf("dashboard: %w", err)
		}
		o.logger.Info("dashboard_closed")
	case <-ctx.Done():
		o.logger.Info("context_cancelled")
	}

	cancel()
	o.shutdown()

	// Print exit summary
	o.printExitSummary(mode)

	return runErr
}

func (o *Orchestrator) preflightOptions(mode telemetry.SourceMode) preflight.Options {
	opts := preflight.Options{
		GhostPath: o.config.GhostPath,
		VehicleDB: o.config.VehicleDB,
	}
	if mode.Computes() && o.config.LoggingEnabled {
		opts.LogDir = o.config.LogDir
	}
	if mode == telemetry.ModeReplay {
		opts.ReplayPath = o.config.ReplayPath
	}
	return opts
}

// searchVehicles prints the catalog models matching -vehicle-search.
func (o *Orchestrator) searchVehicles(ctx context.Context) error {
	catalog, err := vehicle.Open(ctx, o.config.VehicleDB)
	if err != nil {
		return err
	}
	defer catalog.Close()

	query := o.config.VehicleSearch
	models, err := catalog.Search(ctx, query, vehicle.DefaultSearchLimit)
	if err != nil {
		return err
	}
	o.logger.Info("vehicle_search", "query", query, "matches", len(models))

	if len(models) == 0 {
		fmt.Fprintf(o.opts.Stdout, "No vehicles match %q\n", query)
		return nil
	}
	for _, m := range models {
		fmt.Fprintln(o.opts.Stdout, m)
	}
	return nil
}

// resolveVehicle picks the engine profile and tonnage: an explicit
// -vehicle, else the catalog's last active vehicle, else the configured
// displacement and tonnage.
func (o *Orchestrator) resolveVehicle(ctx context.Context) error {
	profile, err := engine.NewEngineProfile(o.config.DisplacementLiters)
	if err != nil {
		return err
	}
	o.profile = profile
	o.plugin = derived.New(o.config.Tonnage)

	if !o.config.VehicleCatalogEnabled() {
		return nil
	}

	catalog, err := vehicle.Open(ctx, o.config.VehicleDB)
	if err != nil {
		return err
	}
	o.catalog = catalog

	var specs vehicle.Specs
	if o.config.Vehicle != "" {
		specs, err = catalog.Get(ctx, o.config.Vehicle)
		if err != nil {
			return fmt.Errorf("vehicle %q: %w", o.config.Vehicle, err)
		}
		if err := catalog.SaveActive(ctx, specs.Model); err != nil {
			o.logger.Warn("vehicle_save_failed", "model", specs.Model, "error", err)
		}
	} else {
		specs, err = catalog.LastActive(ctx)
		if errors.Is(err, vehicle.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
	}

	profile, err = specs.Profile()
	if err != nil {
		return fmt.Errorf("vehicle %q: %w", specs.Model, err)
	}
	o.profile = profile
	if t := specs.Tonnage(); t > 0 {
		o.plugin = derived.New(t)
	}
	o.vehicleName = specs.Model

	o.logger.Info("vehicle_selected",
		"model", specs.Model,
		"displacement_liters", profile.DisplacementLiters,
		"tonnage", o.plugin.Tonnage(),
	)
	return nil
}

func (o *Orchestrator) closeCatalog() {
	if o.catalog == nil {
		return
	}
	if err := o.catalog.Close(); err != nil {
		o.logger.Warn("vehicle_catalog_close_error", "error", err)
	}
}

func (o *Orchestrator) setupMetrics(mode telemetry.SourceMode) {
	collectorCfg := metrics.CollectorConfig{
		Version:            o.opts.Version,
		Mode:               mode.String(),
		Vehicle:            o.vehicleName,
		DisplacementLiters: o.profile.DisplacementLiters,
	}

	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if o.opts.Registry != nil {
		o.metrics = metrics.NewCollectorWithRegistry(collectorCfg, o.opts.Registry)
		gatherer = o.opts.Registry
	} else {
		o.metrics = metrics.NewCollector(collectorCfg)
	}

	if o.config.MetricsAddr == "" {
		return
	}
	o.metricsServer = metrics.NewServer(metrics.ServerConfig{
		Addr:     o.config.MetricsAddr,
		Logger:   o.logger,
		Gatherer: gatherer,
		Ready:    func() bool { return o.Snapshot() != nil },
	})
	o.metricsServer.Handle("/snapshot", o.snapshotHandler())
}

func (o *Orchestrator) startProducer(ctx context.Context, mode telemetry.SourceMode) error {
	var src source.SampleSource
	switch mode {
	case telemetry.ModeLive:
		if o.opts.Source == nil {
			return ErrNoLiveSource
		}
		src = o.opts.Source
	default:
		src = source.NewMockSource(o.config.MockSeed)
	}

	cfg := ProducerConfig{
		Mode:         mode,
		Source:       src,
		Profile:      o.profile,
		Plugin:       o.plugin,
		PollInterval: o.config.PollInterval,
		Slot:         &o.slot,
		Metrics:      o.metrics,
		Stats:        o.stats,
		Fuel:         o.fuel,
		Backoff: supervisor.BackoffConfig{
			Initial:    o.config.BackoffInitial,
			Max:        o.config.BackoffMax,
			Multiplier: o.config.BackoffMultiply,
			JitterPct:  0.4,
		},
		ConnectTimeout:  o.config.ConnectTimeout,
		Seed:            time.Now().UnixNano(),
		ShutdownTimeout: o.config.ShutdownTimeout,
		Logger:          o.logger,
	}

	// A log that cannot be opened disables logging; the run continues.
	if o.config.LoggingEnabled {
		w, err := telemetrylog.Open(o.config.LogDir, o.startTime, telemetrylog.Options{
			Sync:   o.config.LogSync,
			Logger: o.logger,
		})
		if err != nil {
			o.logger.Error("log_open_failed", "dir", o.config.LogDir, "error", err)
			o.metrics.LogFailed()
		} else {
			o.log = w
			cfg.Log = w
			o.logger.Info("logging_to", "path", w.Path())
		}
	}

	p, err := NewProducer(cfg)
	if err != nil {
		if o.log != nil {
			o.log.Close()
		}
		return err
	}
	o.producer = p
	return p.Start(ctx)
}

func (o *Orchestrator) startReplay() (<-chan struct{}, error) {
	records, err := replay.Load(o.config.ReplayPath)
	if err != nil {
		return nil, err
	}

	pub := &publisher{
		mode:    telemetry.ModeReplay,
		rules:   diagnostics.DefaultRules,
		plugin:  o.plugin,
		slot:    &o.slot,
		metrics: o.metrics,
		stats:   o.stats,
		fuel:    o.fuel,
		clock:   realClock{},
	}

	o.replayer = replay.New(replay.Options{
		Cadence: o.config.ReplayCadence,
		Speed:   o.config.ReplaySpeed,
		Name:    streamReplay,
		Logger:  o.logger,
	})
	err = o.replayer.Start(records, func(m telemetry.DerivedMetrics) {
		pub.publish(frame{metrics: m, connected: true})
		o.metrics.ReplayFrame(streamReplay)
	})
	if err != nil {
		return nil, err
	}
	return o.replayer.Done(), nil
}

// startGhost plays the ghost file beside the main stream. A ghost that
// fails to load is logged and skipped.
func (o *Orchestrator) startGhost() {
	records, err := replay.Load(o.config.GhostPath)
	if err != nil {
		o.logger.Warn("ghost_load_failed", "path", o.config.GhostPath, "error", err)
		return
	}

	ghost := replay.New(replay.Options{
		Cadence: o.config.ReplayCadence,
		Speed:   o.config.ReplaySpeed,
		Name:    streamGhost,
		Logger:  o.logger,
	})
	o.ghost = ghost
	err = ghost.Start(records, func(m telemetry.DerivedMetrics) {
		emitted, total := ghost.Progress()
		o.ghostSlot.Store(snapshot.Ghost{Metrics: m, Emitted: emitted, Total: total})
		o.metrics.ReplayFrame(streamGhost)
	})
	if err != nil {
		o.logger.Warn("ghost_start_failed", "error", err)
	}
}

// shutdown stops the streams, then the producer, then the HTTP server.
func (o *Orchestrator) shutdown() {
	if o.ghost != nil {
		o.ghost.Stop()
	}
	if o.replayer != nil {
		o.replayer.Stop()
	}

	if o.producer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), o.config.ShutdownTimeout)
		defer cancel()
		if err := o.producer.Shutdown(ctx); err != nil {
			o.logger.Warn("shutdown_incomplete", "error", err)
		}
	}

	o.shutdownServer()
}

func (o *Orchestrator) shutdownServer() {
	if o.metricsServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.config.ShutdownTimeout)
	defer cancel()
	if err := o.metricsServer.Shutdown(ctx); err != nil {
		o.logger.Warn("metrics_server_shutdown_error", "error", err)
	}
}

// printExitSummary prints a summary of the run.
func (o *Orchestrator) printExitSummary(mode telemetry.SourceMode) {
	cfg := stats.SummaryConfig{
		Mode:        mode.String(),
		Duration:    time.Since(o.startTime),
		MetricsAddr: o.config.MetricsAddr,
	}

	if o.log != nil {
		cfg.LogPath = o.log.Path()
		cfg.LogRows = o.log.Rows()
	}
	if o.producer != nil {
		cfg.Leaderboard = o.producer.Leaderboard()
		cfg.Reconnects = o.producer.Reconnects()
		if err := o.producer.LogError(); err != nil {
			cfg.LogError = err.Error()
		}
	}
	if o.replayer != nil {
		cfg.ReplayedFrames = o.replayer.Emitted()
	}
	if o.ghost != nil {
		cfg.GhostFrames = o.ghost.Emitted()
	}

	fmt.Fprint(o.opts.Stdout, stats.FormatExitSummary(o.stats.Summary(), cfg))
}

// Snapshot returns the latest published frame of the main stream.
func (o *Orchestrator) Snapshot() *snapshot.Snapshot {
	return o.slot.Load()
}

// Ghost returns the latest ghost frame, or nil.
func (o *Orchestrator) Ghost() *snapshot.Ghost {
	return o.ghostSlot.Load()
}

// Producer returns the polling loop, or nil in replay mode.
func (o *Orchestrator) Producer() *Producer {
	return o.producer
}

// Metrics returns the metrics collector for external access.
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}
