package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultConnectTimeout bounds a single connect attempt.
const DefaultConnectTimeout = 2 * time.Second

var errNotConnected = errors.New("connect returned but source is not connected")

// Link is a source that can report and re-establish its connection.
type Link interface {
	IsConnected() bool
	Connect(ctx context.Context) error
}

// Clock interface for testing with deterministic time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Callbacks contains optional callback functions for reconnect events.
type Callbacks struct {
	// OnStateChange is called when the connection state changes.
	OnStateChange func(oldState, newState State)

	// OnRetry is called after a failed attempt with the delay before the next one.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Config holds configuration for creating a new Reconnector.
type Config struct {
	Link           Link
	Backoff        *Backoff
	Logger         *slog.Logger
	Callbacks      Callbacks
	Clock          Clock
	ConnectTimeout time.Duration
}

// Reconnector tracks a Link's connection and reconnects it with backoff.
//
// It never sleeps: Check is called from the producer loop once per frame
// and either returns immediately or makes a single bounded connect attempt,
// so frames keep flowing (as zeros) while the source is down.
type Reconnector struct {
	link      Link
	backoff   *Backoff
	logger    *slog.Logger
	callbacks Callbacks
	clock     Clock
	timeout   time.Duration

	mu          sync.RWMutex
	state       State
	connectedAt time.Time
	nextAttempt time.Time
	attempts    int
	reconnects  int
	lastErr     error
}

// New creates a Reconnector with the given configuration.
func New(cfg Config) *Reconnector {
	if cfg.Backoff == nil {
		cfg.Backoff = NewBackoff(time.Now().UnixNano(), DefaultBackoffConfig())
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	return &Reconnector{
		link:      cfg.Link,
		backoff:   cfg.Backoff,
		logger:    cfg.Logger,
		callbacks: cfg.Callbacks,
		clock:     cfg.Clock,
		timeout:   cfg.ConnectTimeout,
		state:     StateCreated,
	}
}

// Check reports whether the link is connected, attempting a reconnect when
// it is down and the backoff delay has elapsed.
func (r *Reconnector) Check(ctx context.Context) bool {
	if r.State().IsTerminal() {
		return r.link.IsConnected()
	}

	now := r.clock.Now()

	if r.link.IsConnected() {
		if r.State() != StateConnected {
			r.markConnected(now)
		}
		return true
	}

	if r.State() == StateConnected {
		r.mu.Lock()
		uptime := now.Sub(r.connectedAt)
		r.nextAttempt = now
		r.mu.Unlock()

		if ShouldReset(uptime) {
			r.backoff.Reset()
		}
		r.logger.Warn("source_disconnected", "uptime", uptime.String())
		r.setState(StateBackoff)
	}

	r.mu.RLock()
	wait := r.nextAttempt.Sub(now)
	r.mu.RUnlock()
	if wait > 0 {
		return false
	}

	return r.attempt(ctx, now)
}

func (r *Reconnector) attempt(ctx context.Context, now time.Time) bool {
	if ctx.Err() != nil {
		return false
	}
	r.setState(StateConnecting)

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	err := r.link.Connect(cctx)
	cancel()

	r.mu.Lock()
	r.attempts++
	attempt := r.attempts
	r.mu.Unlock()

	if err == nil && r.link.IsConnected() {
		r.mu.Lock()
		r.reconnects++
		r.lastErr = nil
		r.mu.Unlock()
		r.markConnected(r.clock.Now())
		return true
	}
	if err == nil {
		err = errNotConnected
	}

	delay := r.backoff.Next()

	r.mu.Lock()
	r.nextAttempt = now.Add(delay)
	r.lastErr = err
	r.mu.Unlock()

	if r.callbacks.OnRetry != nil {
		r.callbacks.OnRetry(attempt, err, delay)
	}
	r.logger.Info("source_reconnect_scheduled",
		"attempt", attempt,
		"delay", delay.String(),
		"error", err,
	)
	r.setState(StateBackoff)
	return false
}

func (r *Reconnector) markConnected(now time.Time) {
	r.mu.Lock()
	r.connectedAt = now
	r.attempts = 0
	r.mu.Unlock()

	r.logger.Info("source_connected")
	r.setState(StateConnected)
}

func (r *Reconnector) setState(s State) {
	r.mu.Lock()
	old := r.state
	r.state = s
	r.mu.Unlock()

	if old != s && r.callbacks.OnStateChange != nil {
		r.callbacks.OnStateChange(old, s)
	}
}

// Stop ends supervision. Later Checks only report the link's state.
func (r *Reconnector) Stop() {
	r.setState(StateStopped)
}

// State returns the current connection state.
func (r *Reconnector) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Reconnects returns the number of successful connect attempts.
func (r *Reconnector) Reconnects() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reconnects
}

// LastError returns the error from the most recent failed attempt.
func (r *Reconnector) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// Uptime returns how long the link has been connected, or 0 when it is down.
func (r *Reconnector) Uptime() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state != StateConnected {
		return 0
	}
	return r.clock.Now().Sub(r.connectedAt)
}
