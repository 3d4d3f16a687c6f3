package connection

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Backoff defaults for the lobby session.
const (
	// InitialBackoff is the delay before the first retry.
	InitialBackoff = 1 * time.Second

	// MaxBackoff caps the retry delay.
	MaxBackoff = 30 * time.Second

	// BackoffMultiplier is the factor by which backoff increases.
	BackoffMultiplier = 2.0

	// DefaultMaxAttempts is the retry budget before a terminal failure.
	DefaultMaxAttempts = 5
)

// BackoffConfig allows customizing backoff parameters.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64

	// Jitter is the maximum extra delay as a fraction of the base delay.
	// Zero disables jitter.
	Jitter float64
}

// DefaultBackoffConfig returns the default backoff configuration.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    InitialBackoff,
		Max:        MaxBackoff,
		Multiplier: BackoffMultiplier,
	}
}

func (c BackoffConfig) normalized() BackoffConfig {
	if c.Initial <= 0 {
		c.Initial = InitialBackoff
	}
	if c.Max <= 0 {
		c.Max = MaxBackoff
	}
	if c.Max < c.Initial {
		c.Max = c.Initial
	}
	if c.Multiplier <= 1 {
		c.Multiplier = BackoffMultiplier
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	return c
}

// Delay returns the base delay (without jitter) for attempt N, counting from 1:
// min(Initial * Multiplier^(N-1), Max).
func Delay(cfg BackoffConfig, attempt int) time.Duration {
	cfg = cfg.normalized()
	if attempt <= 1 {
		return cfg.Initial
	}
	d := float64(cfg.Initial) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if d >= float64(cfg.Max) || math.IsInf(d, 1) {
		return cfg.Max
	}
	return time.Duration(d)
}

// Backoff tracks the attempt counter and produces delays with optional jitter.
type Backoff struct {
	mu sync.Mutex

	config   BackoffConfig
	attempts int

	// Random source for jitter
	rng *rand.Rand
}

// NewBackoff creates a new backoff calculator with default settings.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(DefaultBackoffConfig())
}

// NewBackoffWithConfig creates a backoff calculator with custom settings.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	return &Backoff{
		config: cfg.normalized(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next advances the attempt counter and returns the delay for that attempt.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.attempts++
	return b.addJitter(Delay(b.config, b.attempts))
}

// Peek returns the delay the next call to Next would use, without jitter.
func (b *Backoff) Peek() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Delay(b.config, b.attempts+1)
}

// Reset resets the attempt counter.
// Call this after a successful connection.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts = 0
}

// Attempts returns the number of attempts since the last reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// addJitter adds random jitter to a delay. Caller holds b.mu.
func (b *Backoff) addJitter(d time.Duration) time.Duration {
	if b.config.Jitter <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*b.config.Jitter*b.rng.Float64())
}

// BackoffSequence returns the base delays for attempts 1..n with the default
// configuration.
func BackoffSequence(n int) []time.Duration {
	cfg := DefaultBackoffConfig()
	seq := make([]time.Duration, n)
	for i := range seq {
		seq[i] = Delay(cfg, i+1)
	}
	return seq
}
