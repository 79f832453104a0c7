package supervisor

import (
	"math/rand"
	"time"
)

// BackoffResetThreshold is how long a link must stay up before the next
// drop restarts from the initial delay.
const BackoffResetThreshold = 30 * time.Second

// ShouldReset reports whether a connection that lasted uptime was stable.
func ShouldReset(uptime time.Duration) bool {
	return uptime >= BackoffResetThreshold
}

// BackoffConfig shapes the delay between reconnect attempts.
//
// JitterPct is the full width of the jitter band, so 0.4 spreads each
// delay over ±20%.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	JitterPct  float64
}

// DefaultBackoffConfig suits an ELM327 adapter that drops off the bus
// while the ignition cycles.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    500 * time.Millisecond,
		Max:        15 * time.Second,
		Multiplier: 1.7,
		JitterPct:  0.4,
	}
}

// normalized fills zero or nonsensical fields from the defaults.
func (c BackoffConfig) normalized() BackoffConfig {
	def := DefaultBackoffConfig()
	if c.Initial <= 0 {
		c.Initial = def.Initial
	}
	if c.Max < c.Initial {
		c.Max = c.Initial
	}
	if c.Multiplier < 1 {
		c.Multiplier = 1
	}
	if c.JitterPct < 0 {
		c.JitterPct = 0
	}
	return c
}

// Backoff yields growing reconnect delays. It is owned by a single
// Reconnector and is not safe for concurrent use.
type Backoff struct {
	cfg      BackoffConfig
	ceiling  float64 // un-jittered delay for the next attempt, in ns
	attempts int
	rng      *rand.Rand
}

// NewBackoff returns a Backoff whose jitter is reproducible for a seed.
func NewBackoff(seed int64, cfg BackoffConfig) *Backoff {
	b := &Backoff{
		cfg: cfg.normalized(),
		rng: rand.New(rand.NewSource(seed)),
	}
	b.Reset()
	return b
}

// Next returns the delay before the next attempt and advances the schedule.
func (b *Backoff) Next() time.Duration {
	d := b.jitter(b.ceiling)
	b.attempts++
	b.ceiling *= b.cfg.Multiplier
	if limit := float64(b.cfg.Max); b.ceiling > limit {
		b.ceiling = limit
	}
	return d
}

func (b *Backoff) jitter(ns float64) time.Duration {
	if b.cfg.JitterPct == 0 {
		return time.Duration(ns)
	}
	offset := (b.rng.Float64() - 0.5) * b.cfg.JitterPct * ns
	if ns+offset < 0 {
		return 0
	}
	return time.Duration(ns + offset)
}

// Reset restarts the schedule at the initial delay.
func (b *Backoff) Reset() {
	b.attempts = 0
	b.ceiling = float64(b.cfg.Initial)
}

// Attempts is the number of delays handed out since the last Reset.
func (b *Backoff) Attempts() int {
	return b.attempts
}
