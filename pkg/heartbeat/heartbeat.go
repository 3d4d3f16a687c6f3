package heartbeat

import (
	"sync"
	"sync/atomic"
	"time"
)

// Heartbeat defaults.
const (
	// DefaultInterval is the base interval between probes.
	DefaultInterval = 10 * time.Second

	// DefaultMinInterval bounds adaptive shrinking.
	DefaultMinInterval = 2 * time.Second

	// DefaultMaxInterval bounds adaptive growth.
	DefaultMaxInterval = 60 * time.Second

	// DefaultResponseTimeout is the grace period on top of the interval before
	// a missing response counts as a failure.
	DefaultResponseTimeout = 5 * time.Second

	// DefaultFailureThreshold is the number of consecutive failures after
	// which the connection is considered dead.
	DefaultFailureThreshold = 3

	// DefaultSuccessThreshold is the success streak the interval may grow
	// after. The streak must exceed it.
	DefaultSuccessThreshold = 5
)

// Config configures a Controller. Zero values fall back to the defaults,
// except Adaptive which is taken as given.
type Config struct {
	// Interval is the starting interval for both tasks.
	Interval time.Duration

	// MinInterval and MaxInterval bound adaptive changes.
	MinInterval time.Duration
	MaxInterval time.Duration

	// HealthCheckInterval caps the check task period. The check task runs
	// at min(HealthCheckInterval, current interval).
	HealthCheckInterval time.Duration

	// ResponseTimeout is added to the interval when judging staleness.
	ResponseTimeout time.Duration

	FailureThreshold int
	SuccessThreshold int

	// Adaptive enables interval adjustment.
	Adaptive bool
}

// DefaultConfig returns the default heartbeat configuration.
func DefaultConfig() Config {
	return Config{
		Interval:            DefaultInterval,
		MinInterval:         DefaultMinInterval,
		MaxInterval:         DefaultMaxInterval,
		HealthCheckInterval: DefaultInterval,
		ResponseTimeout:     DefaultResponseTimeout,
		FailureThreshold:    DefaultFailureThreshold,
		SuccessThreshold:    DefaultSuccessThreshold,
		Adaptive:            true,
	}
}

func (c Config) normalized() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MinInterval <= 0 || c.MinInterval > c.Interval {
		c.MinInterval = min(DefaultMinInterval, c.Interval)
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = max(DefaultMaxInterval, c.Interval)
	}
	if c.MaxInterval < c.Interval {
		c.MaxInterval = c.Interval
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = c.Interval
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = DefaultResponseTimeout
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = DefaultSuccessThreshold
	}
	return c
}

// Stats contains heartbeat statistics.
type Stats struct {
	LastResponseAt       time.Time
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	CurrentInterval      time.Duration

	// LastRTT is the round trip of the last matched probe, -1 if unknown.
	LastRTT time.Duration
}

// ProbeFunc sends a liveness probe carrying seq.
type ProbeFunc func(seq uint32) error

// Hooks receive the controller's verdicts. They are called without any
// controller lock held and may call back into the controller.
type Hooks struct {
	// OnSuccess is called after every successful probe response.
	OnSuccess func(Stats)

	// OnFailure is called for failures below the threshold.
	OnFailure func(Stats)

	// OnDead is called once when the threshold is reached. The controller
	// has already stopped itself.
	OnDead func(Stats)
}

// Controller manages probing and health judgement for one connection.
type Controller struct {
	config Config
	probe  ProbeFunc
	hooks  Hooks

	sequence atomic.Uint32

	mu             sync.Mutex
	running        bool
	interval       time.Duration
	lastProbeSeq   uint32
	lastProbeAt    time.Time
	lastResponseAt time.Time
	lastFailureAt  time.Time
	lastRTT        time.Duration
	failures       int
	successes      int
	probeTask      *task
	checkTask      *task
}

// New creates a controller. Call Start to begin probing.
func New(config Config, probe ProbeFunc, hooks Hooks) *Controller {
	config = config.normalized()
	return &Controller{
		config:   config,
		probe:    probe,
		hooks:    hooks,
		interval: config.Interval,
		lastRTT:  -1,
	}
}

// Config returns the effective configuration.
func (c *Controller) Config() Config {
	return c.config
}

// Start begins both periodic tasks and sends an initial probe.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.interval = c.config.Interval
	c.failures = 0
	c.successes = 0
	c.lastRTT = -1
	c.lastResponseAt = time.Now()
	c.lastFailureAt = time.Time{}
	c.scheduleLocked(true)
	c.mu.Unlock()
}

// Stop cancels both tasks. Results arriving afterwards are ignored.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// IsRunning returns true if the controller is active.
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Interval returns the current probe interval.
func (c *Controller) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// Stats returns current heartbeat statistics.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked()
}

// Ack records a probe response. The RTT is known only when seq matches the
// most recent probe; older responses still prove the channel is alive.
func (c *Controller) Ack(seq uint32) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	rtt := time.Duration(-1)
	if seq == c.lastProbeSeq && !c.lastProbeAt.IsZero() {
		rtt = time.Since(c.lastProbeAt)
	}
	c.mu.Unlock()

	c.HandleProbeSuccess(rtt)
}

// HandleProbeSuccess resets the failure counter and extends the success
// streak. A negative rtt means the round trip is unknown. Once the streak
// exceeds SuccessThreshold the interval grows and a new streak starts.
func (c *Controller) HandleProbeSuccess(rtt time.Duration) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}

	c.failures = 0
	c.successes++
	c.lastResponseAt = time.Now()
	if rtt >= 0 {
		c.lastRTT = rtt
	}

	if c.config.Adaptive && c.successes > c.config.SuccessThreshold &&
		rtt >= 0 && rtt < c.interval/2 {
		next := min(c.interval+c.interval/2, c.config.MaxInterval)
		if next != c.interval {
			c.interval = next
			c.successes = 0
			c.scheduleLocked(false)
		}
	}

	stats := c.statsLocked()
	onSuccess := c.hooks.OnSuccess
	c.mu.Unlock()

	if onSuccess != nil {
		onSuccess(stats)
	}
}

// HandleProbeFailure counts a failure. At the threshold the controller
// stops and reports the connection dead.
func (c *Controller) HandleProbeFailure() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}

	c.failures++
	c.successes = 0
	c.lastFailureAt = time.Now()

	if c.failures >= c.config.FailureThreshold {
		stats := c.statsLocked()
		c.stopLocked()
		onDead := c.hooks.OnDead
		c.mu.Unlock()

		if onDead != nil {
			onDead(stats)
		}
		return
	}

	if c.config.Adaptive {
		next := max(c.interval/2, c.config.MinInterval)
		if next != c.interval {
			c.interval = next
			c.scheduleLocked(false)
		}
	}

	stats := c.statsLocked()
	onFailure := c.hooks.OnFailure
	c.mu.Unlock()

	if onFailure != nil {
		onFailure(stats)
	}
}

// sendProbe is the probe task body.
func (c *Controller) sendProbe() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	seq := c.sequence.Add(1)
	c.lastProbeSeq = seq
	c.lastProbeAt = time.Now()
	c.mu.Unlock()

	if err := c.probe(seq); err != nil {
		c.HandleProbeFailure()
	}
}

// check is the health-check task body. A silence counts once per
// interval+ResponseTimeout window; any failure restarts the window.
func (c *Controller) check() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	since := c.lastResponseAt
	if c.lastFailureAt.After(since) {
		since = c.lastFailureAt
	}
	stale := time.Since(since) > c.interval+c.config.ResponseTimeout
	c.mu.Unlock()

	if stale {
		c.HandleProbeFailure()
	}
}

// scheduleLocked cancels and restarts both tasks with the current interval.
// Caller holds c.mu.
func (c *Controller) scheduleLocked(probeNow bool) {
	c.cancelTasksLocked()
	c.probeTask = startTask(c.interval, probeNow, c.sendProbe)
	c.checkTask = startTask(min(c.config.HealthCheckInterval, c.interval), false, c.check)
}

func (c *Controller) stopLocked() {
	c.running = false
	c.cancelTasksLocked()
}

func (c *Controller) cancelTasksLocked() {
	if c.probeTask != nil {
		c.probeTask.cancel()
		c.probeTask = nil
	}
	if c.checkTask != nil {
		c.checkTask.cancel()
		c.checkTask = nil
	}
}

func (c *Controller) statsLocked() Stats {
	return Stats{
		LastResponseAt:       c.lastResponseAt,
		ConsecutiveFailures:  c.failures,
		ConsecutiveSuccesses: c.successes,
		CurrentInterval:      c.interval,
		LastRTT:              c.lastRTT,
	}
}
