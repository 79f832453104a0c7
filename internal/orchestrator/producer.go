package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randomizedcoder/go-obd-telemetry/internal/derived"
	"github.com/randomizedcoder/go-obd-telemetry/internal/diagnostics"
	"github.com/randomizedcoder/go-obd-telemetry/internal/engine"
	"github.com/randomizedcoder/go-obd-telemetry/internal/metrics"
	"github.com/randomizedcoder/go-obd-telemetry/internal/snapshot"
	"github.com/randomizedcoder/go-obd-telemetry/internal/source"
	"github.com/randomizedcoder/go-obd-telemetry/internal/stats"
	"github.com/randomizedcoder/go-obd-telemetry/internal/supervisor"
	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"
	"github.com/randomizedcoder/go-obd-telemetry/internal/timeseries"
)

// DefaultShutdownTimeout bounds Shutdown when the caller's context has no
// deadline.
const DefaultShutdownTimeout = 5 * time.Second

// controlQueueSize bounds pending runtime controls. Sends never block; a
// control that finds the queue full is dropped and logged.
const controlQueueSize = 8

var (
	// ErrShutdownTimeout is returned when shutdown does not finish in time.
	ErrShutdownTimeout = errors.New("producer shutdown timed out")

	// ErrAlreadyStarted is returned by Start on a running producer.
	ErrAlreadyStarted = errors.New("producer already started")

	// ErrProducerClosed is returned by Start after Shutdown.
	ErrProducerClosed = errors.New("producer is shut down")
)

// RunLog is a telemetry log the producer appends to and closes.
type RunLog interface {
	telemetry.Recorder
	io.Closer
}

// ProducerConfig configures a Producer.
type ProducerConfig struct {
	Mode    telemetry.SourceMode
	Source  source.SampleSource
	Profile engine.EngineProfile
	Plugin  derived.Plugin

	// Rules defaults to diagnostics.DefaultRules.
	Rules []diagnostics.Rule

	PollInterval time.Duration

	// Log, when set, receives every frame with rpm > 0 and is closed on
	// Shutdown.
	Log RunLog

	// OnLogError is called once when the log fails.
	OnLogError func(err error)

	// Sink receives every frame after it is published.
	Sink telemetry.Sink

	Slot    *snapshot.Slot
	Metrics *metrics.Collector
	Stats   *stats.RunStats
	Fuel    *timeseries.FuelTracker

	// Backoff and ConnectTimeout configure reconnects for sources that
	// implement source.Connector.
	Backoff        supervisor.BackoffConfig
	ConnectTimeout time.Duration
	Seed           int64

	ShutdownTimeout time.Duration

	Logger *slog.Logger
	Clock  Clock
}

// Producer is the single polling loop. It alone drives the engine;
// everything else observes it through the snapshot slot and changes it
// only by queueing controls, which the loop applies between frames.
type Producer struct {
	cfg    ProducerConfig
	logger *slog.Logger

	// Owned by the goroutine calling Step.
	engine   *engine.Engine
	recorder *countingRecorder

	controls chan control
	profile  atomic.Pointer[engine.EngineProfile] // latest accepted
	logging  atomic.Bool                          // requested logging state

	errMu  sync.Mutex
	logErr error

	pub         *publisher
	reconnector *supervisor.Reconnector

	lifeMu   sync.Mutex
	started  bool
	closed   bool
	cancel   context.CancelFunc
	loopDone chan struct{}

	shutdownOnce sync.Once
	shutdownDone chan struct{}
	shutdownErr  error
}

// NewProducer builds the engine and its collaborators. It fails only on
// an invalid profile.
func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	if cfg.Rules == nil {
		cfg.Rules = diagnostics.DefaultRules
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = engine.DefaultPollInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Slot == nil {
		cfg.Slot = &snapshot.Slot{}
	}

	p := &Producer{
		cfg:      cfg,
		logger:   cfg.Logger,
		controls: make(chan control, controlQueueSize),
		loopDone: make(chan struct{}),
		pub: &publisher{
			mode:    cfg.Mode,
			rules:   cfg.Rules,
			plugin:  cfg.Plugin,
			slot:    cfg.Slot,
			metrics: cfg.Metrics,
			stats:   cfg.Stats,
			fuel:    cfg.Fuel,
			sink:    cfg.Sink,
			clock:   cfg.Clock,
		},
	}

	opts := engine.Options{
		PollInterval:  cfg.PollInterval,
		OnRecordError: p.onRecordError,
		OnLapComplete: p.onLapComplete,
		Clock:         cfg.Clock,
	}
	if cfg.Log != nil {
		p.recorder = &countingRecorder{log: cfg.Log, metrics: cfg.Metrics}
		opts.Recorder = p.recorder
	}

	eng, err := engine.New(cfg.Profile, opts)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	p.engine = eng
	profile := cfg.Profile
	p.profile.Store(&profile)
	p.logging.Store(p.recorder != nil)

	if link, ok := cfg.Source.(supervisor.Link); ok {
		p.reconnector = supervisor.New(supervisor.Config{
			Link:           link,
			Backoff:        supervisor.NewBackoff(cfg.Seed, cfg.Backoff),
			Logger:         cfg.Logger,
			Clock:          cfg.Clock,
			ConnectTimeout: cfg.ConnectTimeout,
			Callbacks: supervisor.Callbacks{
				OnStateChange: p.onSourceState,
			},
		})
	}

	if cfg.Metrics != nil {
		cfg.Metrics.SetLoggingEnabled(cfg.Log != nil)
	}
	return p, nil
}

// Start launches the polling loop. The loop stops when ctx is cancelled
// or Shutdown is called.
func (p *Producer) Start(ctx context.Context) error {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	if p.closed {
		return ErrProducerClosed
	}
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	go p.run(loopCtx)
	return nil
}

func (p *Producer) run(ctx context.Context) {
	defer close(p.loopDone)

	p.logger.Info("producer_started",
		"mode", p.cfg.Mode.String(),
		"poll_interval", p.cfg.PollInterval.String(),
		"displacement_liters", p.Profile().DisplacementLiters,
	)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	var frames int64
	for {
		p.Step(ctx)
		frames++

		select {
		case <-ctx.Done():
			p.logger.Info("producer_stopped", "frames", frames)
			return
		case <-ticker.C:
		}
	}
}

// Step applies queued controls, then produces and publishes one frame.
// Only one goroutine may call Step: the loop after Start, or a test
// driving the producer directly.
func (p *Producer) Step(ctx context.Context) *snapshot.Snapshot {
	start := time.Now()

	p.applyControls()
	if p.reconnector != nil {
		p.reconnector.Check(ctx)
	}
	src := p.cfg.Source
	connected := src != nil && src.IsConnected()
	m := p.engine.Poll(ctx, src)

	grid := p.engine.FuelMap()
	f := frame{
		metrics:     m,
		connected:   connected,
		logging:     p.engine.Recording(),
		leaderboard: p.engine.Leaderboard(),
		fuelMap:     &grid,
		took:        time.Since(start),
	}
	return p.pub.publish(f)
}

// Snapshot returns the latest published frame, or nil before the first.
func (p *Producer) Snapshot() *snapshot.Snapshot {
	return p.cfg.Slot.Load()
}

// Done is closed when the polling loop exits.
func (p *Producer) Done() <-chan struct{} {
	return p.loopDone
}

// Profile returns the most recently accepted engine profile.
func (p *Producer) Profile() engine.EngineProfile {
	return *p.profile.Load()
}

// SetProfile validates profile and queues it for the next frame.
func (p *Producer) SetProfile(profile engine.EngineProfile) error {
	if _, err := engine.NewEngineProfile(profile.DisplacementLiters); err != nil {
		return err
	}
	if !p.send(control{kind: controlProfile, profile: profile}) {
		return errControlQueueFull
	}
	p.profile.Store(&profile)
	return nil
}

// SetLogging queues a pause or resume of persistence and reports whether
// frames will be logged. A log that has failed cannot be resumed.
func (p *Producer) SetLogging(enabled bool) bool {
	if p.recorder == nil || p.LogError() != nil {
		return false
	}
	if !p.send(control{kind: controlLogging, enabled: enabled}) {
		return p.logging.Load()
	}
	p.logging.Store(enabled)
	return enabled
}

// Logging reports the requested logging state. Snapshot.Logging shows
// what the last frame actually did.
func (p *Producer) Logging() bool {
	return p.logging.Load()
}

// LogError returns the error that disabled logging, if any.
func (p *Producer) LogError() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.logErr
}

// ResetLeaderboard queues clearing the 0-100 times.
func (p *Producer) ResetLeaderboard() {
	p.send(control{kind: controlResetLeaderboard})
}

// Leaderboard returns the best 0-100 times as of the last frame.
func (p *Producer) Leaderboard() []time.Duration {
	snap := p.Snapshot()
	if snap == nil {
		return nil
	}
	return append([]time.Duration(nil), snap.Leaderboard...)
}

// Reconnects returns the number of successful source reconnects.
func (p *Producer) Reconnects() int {
	if p.reconnector == nil {
		return 0
	}
	return p.reconnector.Reconnects()
}

// Shutdown stops polling, waits for the in-flight frame, then closes the
// log and the source, in that order. It returns ErrShutdownTimeout if
// ctx (or DefaultShutdownTimeout when ctx has no deadline) expires first;
// the remaining steps still run in the background. Safe to call more
// than once.
func (p *Producer) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ShutdownTimeout)
		defer cancel()
	}

	p.shutdownOnce.Do(func() {
		p.shutdownDone = make(chan struct{})
		go func() {
			defer close(p.shutdownDone)
			p.shutdownErr = p.shutdown()
		}()
	})

	select {
	case <-p.shutdownDone:
		return p.shutdownErr
	case <-ctx.Done():
		p.logger.Warn("producer_shutdown_timeout")
		return ErrShutdownTimeout
	}
}

func (p *Producer) shutdown() error {
	p.lifeMu.Lock()
	p.closed = true
	started := p.started
	if p.cancel != nil {
		p.cancel()
	}
	p.lifeMu.Unlock()

	if started {
		<-p.loopDone
	}
	if p.reconnector != nil {
		p.reconnector.Stop()
	}

	var errs []error

	// The loop has exited, so the engine is ours.
	p.engine.SetRecorder(nil)

	if p.cfg.Log != nil {
		if err := p.cfg.Log.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log: %w", err))
		}
	}
	if closer, ok := p.cfg.Source.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close source: %w", err))
		}
	}

	p.logger.Info("producer_shutdown_complete")
	return errors.Join(errs...)
}

// Engine callbacks run on the goroutine calling Step.

func (p *Producer) onRecordError(err error) {
	p.errMu.Lock()
	p.logErr = err
	p.errMu.Unlock()
	p.logging.Store(false)
	p.logger.Error("log_write_failed", "error", err)
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.LogFailed()
	}
	if p.cfg.OnLogError != nil {
		p.cfg.OnLogError(err)
	}
}

func (p *Producer) onLapComplete(d time.Duration) {
	board := p.engine.Leaderboard()
	p.logger.Info("zero_to_hundred_complete", "duration", d.String(), "best", board[0].String())
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordLap(d, board[0])
	}
}

func (p *Producer) onSourceState(oldState, newState supervisor.State) {
	p.logger.Debug("source_state_changed", "from", oldState.String(), "to", newState.String())
	if p.cfg.Metrics == nil {
		return
	}
	p.cfg.Metrics.SetSourceConnected(newState == supervisor.StateConnected)
	if oldState == supervisor.StateConnecting && newState == supervisor.StateConnected {
		p.cfg.Metrics.SourceReconnected()
	}
}

// countingRecorder counts persisted rows into the metrics collector.
type countingRecorder struct {
	log     RunLog
	metrics *metrics.Collector
}

func (r *countingRecorder) Append(rec telemetry.LogRecord) error {
	if err := r.log.Append(rec); err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.LogRowWritten()
	}
	return nil
}
