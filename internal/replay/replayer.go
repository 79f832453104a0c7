package replay

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randomizedcoder/go-obd-telemetry/internal/telemetry"
)

// DefaultCadence is the emission interval of a recorded run (10 Hz).
const DefaultCadence = 100 * time.Millisecond

var (
	// ErrAlreadyRunning is returned by Start while a previous run is still emitting.
	ErrAlreadyRunning = errors.New("replay already running")

	// ErrNilSink is returned by Start when no sink is given.
	ErrNilSink = errors.New("replay sink is nil")
)

// Options configures a Replayer.
type Options struct {
	// Cadence is the interval between records at Speed 1.
	Cadence time.Duration

	// Speed scales playback; 2 plays twice as fast. Non-positive means 1.
	Speed float64

	// Name labels the stream in logs, e.g. "replay" or "ghost".
	Name string

	Logger *slog.Logger
}

// Replayer emits a loaded run record by record from its own goroutine.
// Each Replayer owns one stream; a ghost is simply a second Replayer with
// its own sink.
type Replayer struct {
	opts     Options
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	emitted atomic.Int64
	total   atomic.Int64
}

// New creates an idle Replayer.
func New(opts Options) *Replayer {
	if opts.Cadence <= 0 {
		opts.Cadence = DefaultCadence
	}
	if !(opts.Speed > 0) {
		opts.Speed = 1
	}
	if opts.Name == "" {
		opts.Name = "replay"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	interval := time.Duration(float64(opts.Cadence) / opts.Speed)
	if interval <= 0 {
		interval = time.Nanosecond
	}

	done := make(chan struct{})
	close(done)

	return &Replayer{
		opts:     opts,
		interval: interval,
		logger:   opts.Logger.With("stream", opts.Name),
		done:     done,
	}
}

// Start begins emitting records to sink, one per interval. Emission stops
// by itself after the last record; there is no looping.
func (r *Replayer) Start(records []telemetry.LogRecord, sink telemetry.Sink) error {
	if sink == nil {
		return ErrNilSink
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return ErrAlreadyRunning
	}
	r.running = true
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.emitted.Store(0)
	r.total.Store(int64(len(records)))

	r.logger.Info("replay_started",
		"records", len(records),
		"interval", r.interval,
	)

	go r.run(records, sink, r.stop, r.done)
	return nil
}

func (r *Replayer) run(records []telemetry.LogRecord, sink telemetry.Sink, stop, done chan struct{}) {
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		close(done)
	}()

	if len(records) == 0 {
		r.logger.Info("replay_complete", "emitted", 0)
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for _, rec := range records {
		select {
		case <-stop:
			r.logger.Info("replay_stopped", "emitted", r.emitted.Load())
			return
		case <-ticker.C:
		}

		// A Stop that raced with the tick wins.
		select {
		case <-stop:
			r.logger.Info("replay_stopped", "emitted", r.emitted.Load())
			return
		default:
		}

		r.emitted.Add(1)
		sink(rec.Metrics)
	}

	r.logger.Info("replay_complete", "emitted", r.emitted.Load())
}

// Stop ends emission and waits for the emitting goroutine to exit. No
// record is delivered after Stop returns. Safe to call repeatedly and on
// an idle Replayer. Must not be called from the sink.
func (r *Replayer) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	done := r.done
	r.mu.Unlock()

	<-done
}

// Done returns a channel closed when the current run has ended, whether it
// completed or was stopped. Before the first Start it is already closed.
func (r *Replayer) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Running reports whether records are still being emitted.
func (r *Replayer) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Emitted returns the number of records delivered in the current run.
func (r *Replayer) Emitted() int64 {
	return r.emitted.Load()
}

// Progress returns emitted and total record counts for the current run.
// Called from the sink, emitted includes the record being delivered.
func (r *Replayer) Progress() (emitted, total int64) {
	return r.emitted.Load(), r.total.Load()
}

// Interval returns the effective emission interval after speed scaling.
func (r *Replayer) Interval() time.Duration {
	return r.interval
}
