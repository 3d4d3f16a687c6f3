package connection

import (
	"sync"
	"time"
)

// AttemptFunc performs one reconnection attempt and reports whether it
// succeeded. It is called from the scheduler's timer goroutine.
type AttemptFunc func() bool

// Attempt is a snapshot of the retry cycle.
type Attempt struct {
	// Count is the number of retries started in the current cycle.
	Count int

	// NextDelay is the delay of the pending retry, zero when none is pending.
	NextDelay time.Duration
}

// SchedulerConfig configures the reconnect scheduler.
type SchedulerConfig struct {
	Backoff BackoffConfig

	// MaxAttempts is the number of failed retries after which the cycle
	// ends with a terminal failure. Only attempts made by the scheduler
	// count: a cycle started by a failed Connect dials 1+MaxAttempts times
	// in total before the terminal failure.
	MaxAttempts int
}

// DefaultSchedulerConfig returns the default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Backoff:     DefaultBackoffConfig(),
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Scheduler runs bounded retry cycles. At most one cycle is active and at
// most one attempt of that cycle runs at any time.
type Scheduler struct {
	mu sync.Mutex

	config  SchedulerConfig
	backoff *Backoff
	attempt AttemptFunc

	active    bool
	gen       uint64
	timer     *time.Timer
	nextDelay time.Duration

	// Callbacks
	onRetry     func(attempt int, delay time.Duration)
	onExhausted func(attempts int)
}

// NewScheduler creates a scheduler that calls attempt for every retry.
func NewScheduler(config SchedulerConfig, attempt AttemptFunc) *Scheduler {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	return &Scheduler{
		config:  config,
		backoff: NewBackoffWithConfig(config.Backoff),
		attempt: attempt,
	}
}

// OnRetry sets a callback invoked whenever a retry is scheduled.
func (s *Scheduler) OnRetry(fn func(attempt int, delay time.Duration)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRetry = fn
}

// OnExhausted sets a callback invoked once per cycle when the retry budget
// is used up.
func (s *Scheduler) OnExhausted(fn func(attempts int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExhausted = fn
}

// Schedule starts a retry cycle. It returns false without doing anything if
// a cycle is already active.
func (s *Scheduler) Schedule() bool {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return false
	}
	s.active = true
	s.gen++
	attempt, delay := s.scheduleNextLocked(s.gen)
	onRetry := s.onRetry
	s.mu.Unlock()

	if onRetry != nil {
		onRetry(attempt, delay)
	}
	return true
}

// Cancel stops the active cycle and discards its attempt counter. A pending
// timer is stopped before Cancel returns; an attempt already running on the
// timer goroutine completes but its result is ignored.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.active = false
	s.nextDelay = 0
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.backoff.Reset()
}

// Active reports whether a retry cycle is running.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Attempt returns a snapshot of the current cycle.
func (s *Scheduler) Attempt() Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Attempt{Count: s.backoff.Attempts(), NextDelay: s.nextDelay}
}

// scheduleNextLocked arms the timer for the next retry. Caller holds s.mu.
func (s *Scheduler) scheduleNextLocked(gen uint64) (int, time.Duration) {
	delay := s.backoff.Next()
	s.nextDelay = delay
	s.timer = time.AfterFunc(delay, func() { s.fire(gen) })
	return s.backoff.Attempts(), delay
}

// fire runs one retry on the timer goroutine.
func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if !s.active || s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.nextDelay = 0
	s.mu.Unlock()

	ok := s.attempt()

	s.mu.Lock()
	if !s.active || s.gen != gen {
		// Cancelled while the attempt was running.
		s.mu.Unlock()
		return
	}

	if ok {
		s.active = false
		s.backoff.Reset()
		s.mu.Unlock()
		return
	}

	if s.backoff.Attempts() >= s.config.MaxAttempts {
		attempts := s.backoff.Attempts()
		s.active = false
		s.backoff.Reset()
		onExhausted := s.onExhausted
		s.mu.Unlock()

		if onExhausted != nil {
			onExhausted(attempts)
		}
		return
	}

	attempt, delay := s.scheduleNextLocked(gen)
	onRetry := s.onRetry
	s.mu.Unlock()

	if onRetry != nil {
		onRetry(attempt, delay)
	}
}
