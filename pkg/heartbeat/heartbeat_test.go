package heartbeat

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// idleConfig returns a config whose tasks never tick during a test, so the
// counters are driven by explicit calls only.
func idleConfig() Config {
	return Config{
		Interval:         time.Hour,
		MinInterval:      10 * time.Minute,
		MaxInterval:      4 * time.Hour,
		ResponseTimeout:  time.Hour,
		FailureThreshold: 3,
		SuccessThreshold: 5,
		Adaptive:         true,
	}
}

func noopProbe(uint32) error { return nil }

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Interval != DefaultInterval {
		t.Errorf("Interval = %v, want %v", cfg.Interval, DefaultInterval)
	}
	if cfg.FailureThreshold != 3 {
		t.Errorf("FailureThreshold = %d, want 3", cfg.FailureThreshold)
	}
	if cfg.SuccessThreshold != 5 {
		t.Errorf("SuccessThreshold = %d, want 5", cfg.SuccessThreshold)
	}
	if !cfg.Adaptive {
		t.Error("Adaptive should default to true")
	}
}

func TestConfigNormalization(t *testing.T) {
	c := New(Config{Interval: 100 * time.Millisecond}, noopProbe, Hooks{})
	cfg := c.Config()

	if cfg.MinInterval != 100*time.Millisecond {
		t.Errorf("MinInterval = %v, want clamped to interval", cfg.MinInterval)
	}
	if cfg.MaxInterval != DefaultMaxInterval {
		t.Errorf("MaxInterval = %v, want %v", cfg.MaxInterval, DefaultMaxInterval)
	}
	if cfg.HealthCheckInterval != 100*time.Millisecond {
		t.Errorf("HealthCheckInterval = %v, want interval", cfg.HealthCheckInterval)
	}
	if cfg.FailureThreshold != DefaultFailureThreshold {
		t.Errorf("FailureThreshold = %d, want %d", cfg.FailureThreshold, DefaultFailureThreshold)
	}
}

func TestProbesAreSent(t *testing.T) {
	var probes atomic.Int32

	c := New(Config{
		Interval:        20 * time.Millisecond,
		ResponseTimeout: time.Second,
	}, func(seq uint32) error {
		probes.Add(1)
		return nil
	}, Hooks{})

	c.Start()
	time.Sleep(75 * time.Millisecond)
	c.Stop()

	// Initial probe plus at least two ticks.
	if probes.Load() < 3 {
		t.Errorf("expected at least 3 probes, got %d", probes.Load())
	}
}

func TestDeadAfterThreshold(t *testing.T) {
	var failures, dead atomic.Int32
	deadCh := make(chan Stats, 1)

	c := New(Config{
		Interval:         20 * time.Millisecond,
		MinInterval:      5 * time.Millisecond,
		ResponseTimeout:  10 * time.Millisecond,
		FailureThreshold: 3,
		Adaptive:         true,
	}, noopProbe, Hooks{
		OnFailure: func(Stats) { failures.Add(1) },
		OnDead: func(s Stats) {
			dead.Add(1)
			deadCh <- s
		},
	})

	c.Start()

	select {
	case s := <-deadCh:
		if s.ConsecutiveFailures != 3 {
			t.Errorf("ConsecutiveFailures = %d, want 3", s.ConsecutiveFailures)
		}
	case <-time.After(time.Second):
		t.Fatal("OnDead was not called")
	}

	time.Sleep(50 * time.Millisecond)

	if failures.Load() != 2 {
		t.Errorf("OnFailure called %d times, want 2", failures.Load())
	}
	if dead.Load() != 1 {
		t.Errorf("OnDead called %d times, want 1", dead.Load())
	}
	if c.IsRunning() {
		t.Error("controller should stop itself after OnDead")
	}
}

// TestMissedResponseCountsOnce drops the reply to the second probe while
// the check task ticks ten times per interval. The silence must count as a
// single failure.
func TestMissedResponseCountsOnce(t *testing.T) {
	var (
		c          *Controller
		failures   atomic.Int32
		worst      atomic.Int32
		dead       atomic.Int32
		recoveries atomic.Int32
	)

	c = New(Config{
		Interval:            100 * time.Millisecond,
		HealthCheckInterval: 10 * time.Millisecond,
		ResponseTimeout:     50 * time.Millisecond,
		FailureThreshold:    3,
	}, func(seq uint32) error {
		if seq != 2 {
			c.Ack(seq)
		}
		return nil
	}, Hooks{
		OnSuccess: func(s Stats) {
			if failures.Load() > 0 {
				recoveries.Add(1)
			}
		},
		OnFailure: func(s Stats) {
			failures.Add(1)
			if n := int32(s.ConsecutiveFailures); n > worst.Load() {
				worst.Store(n)
			}
		},
		OnDead: func(Stats) { dead.Add(1) },
	})

	c.Start()
	time.Sleep(450 * time.Millisecond)
	c.Stop()

	if dead.Load() != 0 {
		t.Fatal("one missed response reported the connection dead")
	}
	if failures.Load() != 1 {
		t.Errorf("OnFailure called %d times, want 1", failures.Load())
	}
	if worst.Load() != 1 {
		t.Errorf("ConsecutiveFailures peaked at %d, want 1", worst.Load())
	}
	if recoveries.Load() == 0 {
		t.Error("the next answered probe should have reset the failure")
	}
}

func TestProbeSendErrorCountsAsFailure(t *testing.T) {
	var failures atomic.Int32

	c := New(idleConfig(), func(uint32) error {
		return errors.New("write: broken pipe")
	}, Hooks{
		OnFailure: func(Stats) { failures.Add(1) },
	})

	c.Start() // initial probe fails
	defer c.Stop()

	deadline := time.Now().Add(time.Second)
	for failures.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if c.Stats().ConsecutiveFailures != 1 {
		t.Errorf("ConsecutiveFailures = %d, want 1", c.Stats().ConsecutiveFailures)
	}
}

func TestSuccessResetsFailures(t *testing.T) {
	var recovered atomic.Int32

	c := New(idleConfig(), noopProbe, Hooks{
		OnSuccess: func(Stats) { recovered.Add(1) },
	})
	c.Start()
	defer c.Stop()

	c.HandleProbeFailure()
	c.HandleProbeFailure()
	if got := c.Stats().ConsecutiveFailures; got != 2 {
		t.Fatalf("ConsecutiveFailures = %d, want 2", got)
	}

	c.HandleProbeSuccess(time.Millisecond)

	stats := c.Stats()
	if stats.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d after success, want 0", stats.ConsecutiveFailures)
	}
	if stats.ConsecutiveSuccesses != 1 {
		t.Errorf("ConsecutiveSuccesses = %d, want 1", stats.ConsecutiveSuccesses)
	}
	if stats.LastResponseAt.IsZero() {
		t.Error("LastResponseAt not recorded")
	}
	if recovered.Load() != 1 {
		t.Errorf("OnSuccess called %d times, want 1", recovered.Load())
	}
}

func TestAdaptiveShrink(t *testing.T) {
	c := New(idleConfig(), noopProbe, Hooks{})
	c.Start()
	defer c.Stop()

	c.HandleProbeFailure()
	if got := c.Interval(); got != 30*time.Minute {
		t.Errorf("Interval after 1 failure = %v, want 30m", got)
	}

	c.HandleProbeFailure()
	if got := c.Interval(); got != 15*time.Minute {
		t.Errorf("Interval after 2 failures = %v, want 15m", got)
	}

	// Success resets the counter so the bound can be probed without dying.
	c.HandleProbeSuccess(-1)
	c.HandleProbeFailure()
	c.HandleProbeFailure()
	if got := c.Interval(); got != 10*time.Minute {
		t.Errorf("Interval = %v, want bounded at MinInterval 10m", got)
	}
}

func TestAdaptiveGrow(t *testing.T) {
	c := New(idleConfig(), noopProbe, Hooks{})
	c.Start()
	defer c.Stop()

	for i := 0; i < 5; i++ {
		c.HandleProbeSuccess(time.Millisecond)
	}
	if got := c.Interval(); got != time.Hour {
		t.Fatalf("Interval at streak threshold = %v, want 1h", got)
	}

	c.HandleProbeSuccess(time.Millisecond)
	if got := c.Interval(); got != 90*time.Minute {
		t.Errorf("Interval after 6 successes = %v, want 1h30m", got)
	}

	if got := c.Stats().ConsecutiveSuccesses; got != 0 {
		t.Errorf("ConsecutiveSuccesses after growth = %d, want 0", got)
	}

	for i := 0; i < 5; i++ {
		c.HandleProbeSuccess(time.Millisecond)
	}
	if got := c.Interval(); got != 90*time.Minute {
		t.Fatalf("Interval = %v, want 1h30m until the next streak completes", got)
	}

	for i := 0; i < 20; i++ {
		c.HandleProbeSuccess(time.Millisecond)
	}
	if got := c.Interval(); got != 4*time.Hour {
		t.Errorf("Interval = %v, want bounded at MaxInterval 4h", got)
	}
}

func TestAdaptiveGrowRequiresFastRTT(t *testing.T) {
	c := New(idleConfig(), noopProbe, Hooks{})
	c.Start()
	defer c.Stop()

	for i := 0; i < 10; i++ {
		c.HandleProbeSuccess(45 * time.Minute) // not well under the 1h interval
	}
	if got := c.Interval(); got != time.Hour {
		t.Errorf("Interval = %v, want unchanged 1h for slow RTT", got)
	}

	for i := 0; i < 10; i++ {
		c.HandleProbeSuccess(-1) // unknown RTT
	}
	if got := c.Interval(); got != time.Hour {
		t.Errorf("Interval = %v, want unchanged 1h for unknown RTT", got)
	}
}

func TestNonAdaptiveKeepsInterval(t *testing.T) {
	cfg := idleConfig()
	cfg.Adaptive = false
	c := New(cfg, noopProbe, Hooks{})
	c.Start()
	defer c.Stop()

	c.HandleProbeFailure()
	for i := 0; i < 10; i++ {
		c.HandleProbeSuccess(time.Millisecond)
	}
	if got := c.Interval(); got != time.Hour {
		t.Errorf("Interval = %v, want 1h", got)
	}
}

func TestAckMatchesLatestProbe(t *testing.T) {
	var lastSeq atomic.Uint32
	c := New(idleConfig(), func(seq uint32) error {
		lastSeq.Store(seq)
		return nil
	}, Hooks{})
	c.Start()
	defer c.Stop()

	deadline := time.Now().Add(time.Second)
	for lastSeq.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	c.Ack(lastSeq.Load() + 100) // stale or unknown sequence
	if got := c.Stats().LastRTT; got != -1 {
		t.Errorf("LastRTT = %v after unmatched ack, want -1", got)
	}

	c.Ack(lastSeq.Load())
	if got := c.Stats().LastRTT; got < 0 {
		t.Errorf("LastRTT = %v after matched ack, want >= 0", got)
	}
	if got := c.Stats().ConsecutiveSuccesses; got != 2 {
		t.Errorf("ConsecutiveSuccesses = %d, want 2", got)
	}
}

func TestStoppedControllerIgnoresResults(t *testing.T) {
	var calls atomic.Int32
	hook := func(Stats) { calls.Add(1) }

	c := New(idleConfig(), noopProbe, Hooks{OnSuccess: hook, OnFailure: hook, OnDead: hook})
	c.Start()
	c.Stop()

	c.HandleProbeFailure()
	c.HandleProbeFailure()
	c.HandleProbeFailure()
	c.HandleProbeSuccess(time.Millisecond)
	c.Ack(1)

	if calls.Load() != 0 {
		t.Errorf("hooks called %d times after Stop, want 0", calls.Load())
	}
}

func TestRestartResetsState(t *testing.T) {
	c := New(idleConfig(), noopProbe, Hooks{})
	c.Start()
	c.HandleProbeFailure()
	c.Stop()

	c.Start()
	defer c.Stop()

	stats := c.Stats()
	if stats.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d after restart, want 0", stats.ConsecutiveFailures)
	}
	if stats.CurrentInterval != time.Hour {
		t.Errorf("CurrentInterval = %v after restart, want 1h", stats.CurrentInterval)
	}
}

// TestRescheduleRace toggles the interval from many goroutines while both
// tasks are ticking. It must neither deadlock nor produce a probe storm.
func TestRescheduleRace(t *testing.T) {
	var probes atomic.Int32

	c := New(Config{
		Interval:         10 * time.Millisecond,
		MinInterval:      5 * time.Millisecond,
		MaxInterval:      20 * time.Millisecond,
		ResponseTimeout:  time.Second,
		FailureThreshold: 1000,
		SuccessThreshold: 1,
		Adaptive:         true,
	}, func(uint32) error {
		probes.Add(1)
		return nil
	}, Hooks{})

	c.Start()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(fail bool) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if fail {
					c.HandleProbeFailure()
				} else {
					c.HandleProbeSuccess(time.Microsecond)
				}
				time.Sleep(time.Millisecond)
			}
		}(i%2 == 0)
	}

	time.Sleep(200 * time.Millisecond)
	close(stop)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		c.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("deadlock while rescheduling")
	}

	// 200ms at a 5ms floor allows ~40 ticks; rescheduling may add at most a
	// stale tick per change but never an immediate probe.
	if n := probes.Load(); n > 120 {
		t.Errorf("probe storm: %d probes in 200ms", n)
	}
}
