package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanlobby/lobby-go/pkg/connection"
	"github.com/lanlobby/lobby-go/pkg/credentials"
	"github.com/lanlobby/lobby-go/pkg/heartbeat"
	"github.com/lanlobby/lobby-go/pkg/subscription"
	"github.com/lanlobby/lobby-go/pkg/transport"
)

const (
	settle = 2 * time.Second
	tick   = 2 * time.Millisecond
)

var errRefused = fmt.Errorf("dial: %w", syscall.ECONNREFUSED)

// idleHeartbeat never fires on its own within a test.
func idleHeartbeat() heartbeat.Config {
	return heartbeat.Config{
		Interval:            time.Hour,
		MinInterval:         time.Minute,
		MaxInterval:         2 * time.Hour,
		HealthCheckInterval: time.Hour,
		ResponseTimeout:     time.Hour,
		FailureThreshold:    3,
		SuccessThreshold:    5,
	}
}

func testConfig() Config {
	cfg := DefaultConfig("mem://lobby")
	cfg.Name = "test-client"
	cfg.ConnectTimeout = 500 * time.Millisecond
	cfg.Heartbeat = idleHeartbeat()
	cfg.Reconnect = connection.SchedulerConfig{
		Backoff:     connection.BackoffConfig{Initial: 10 * time.Millisecond, Max: 40 * time.Millisecond},
		MaxAttempts: 5,
	}
	return cfg
}

type harness struct {
	broker *transport.Memory
	creds  *credentials.MemoryStore
	client *Client

	mu          sync.Mutex
	events      []Event
	transitions []Transition
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()

	h := &harness{
		broker: transport.NewMemory(),
		creds:  credentials.NewMemoryStore("token"),
	}

	bus := NewEventBus()
	bus.Subscribe(func(e Event) {
		h.mu.Lock()
		h.events = append(h.events, e)
		h.mu.Unlock()
	})

	cfg := testConfig()
	cfg.Events = bus
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := New(cfg, h.broker, h.creds)
	require.NoError(t, err)
	c.OnStateChange(func(tr Transition) {
		h.mu.Lock()
		h.transitions = append(h.transitions, tr)
		h.mu.Unlock()
	})
	h.client = c
	t.Cleanup(func() { _ = c.Close() })
	return h
}

func (h *harness) eventsOf(typ EventType) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Event
	for _, e := range h.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (h *harness) states() []connection.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]connection.State, len(h.transitions))
	for i, tr := range h.transitions {
		out[i] = tr.To
	}
	return out
}

func (h *harness) waitState(t *testing.T, want connection.State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.client.State() == want },
		settle, tick, "state = %s, want %s", h.client.State(), want)
}

func (h *harness) currentLink() *link {
	h.client.mu.Lock()
	defer h.client.mu.Unlock()
	return h.client.link
}

// killCurrent drops the client's connection as a network failure would.
func (h *harness) killCurrent(t *testing.T) string {
	t.Helper()
	id := h.client.ConnectionID()
	require.NotEmpty(t, id)
	require.True(t, h.broker.Kill(id, syscall.ECONNRESET))
	return id
}

func TestNewValidatesConfig(t *testing.T) {
	broker := transport.NewMemory()
	creds := credentials.Static("t")

	_, err := New(Config{}, broker, creds)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(testConfig(), nil, creds)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(testConfig(), broker, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg := testConfig()
	cfg.ProbeReplyDestination = ""
	_, err = New(cfg, broker, creds)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConnect(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		h := newHarness(t, nil)

		require.True(t, h.client.Connect())
		assert.Equal(t, connection.StateConnected, h.client.State())
		assert.True(t, h.client.IsConnected())
		assert.True(t, h.client.Usable())
		assert.Equal(t, []string{h.client.ConnectionID()}, h.broker.Conns())
		assert.NoError(t, h.client.LastError())
	})

	t.Run("IdempotentWhileConnected", func(t *testing.T) {
		h := newHarness(t, nil)

		require.True(t, h.client.Connect())
		require.True(t, h.client.Connect())
		assert.Equal(t, 1, h.broker.Dials())
	})

	t.Run("RefusedWithoutCredential", func(t *testing.T) {
		h := newHarness(t, nil)
		h.creds.Set("")

		assert.False(t, h.client.Connect())
		assert.Equal(t, 0, h.broker.Dials())
		assert.Equal(t, connection.StateDisconnected, h.client.State())
	})

	t.Run("RefusedAfterInvalidation", func(t *testing.T) {
		h := newHarness(t, nil)
		h.creds.Invalidate()

		assert.False(t, h.client.Connect())
		assert.Equal(t, 0, h.broker.Dials())
	})

	t.Run("PassesToken", func(t *testing.T) {
		h := newHarness(t, nil)
		var seen atomic.Value
		h.broker.SetAuthorizer(func(token string) error {
			seen.Store(token)
			return nil
		})

		require.True(t, h.client.Connect())
		assert.Equal(t, "token", seen.Load())
	})

	t.Run("TimeoutIsExpectedFailure", func(t *testing.T) {
		h := newHarness(t, func(c *Config) {
			c.ConnectTimeout = 20 * time.Millisecond
			c.AutoReconnect = false
		})
		h.broker.SetDialDelay(time.Second)

		assert.False(t, h.client.Connect())
		assert.Equal(t, connection.StateFailed, h.client.State())
		assert.ErrorIs(t, h.client.LastError(), transport.ErrDialTimeout)
		assert.True(t, transport.IsExpected(h.client.LastError()))
	})
}

func TestConnectFailureStartsReconnect(t *testing.T) {
	h := newHarness(t, nil)
	h.broker.SetDialError(errRefused)

	assert.False(t, h.client.Connect())
	assert.Equal(t, connection.StateReconnecting, h.client.State())
	assert.False(t, h.client.Connect(), "Connect while reconnecting must be refused")

	h.broker.SetDialError(nil)
	h.waitState(t, connection.StateConnected)

	require.Eventually(t, func() bool { return len(h.eventsOf(EventReconnected)) == 1 }, settle, tick)
	assert.Empty(t, h.eventsOf(EventConnectionFailed))
	assert.Equal(t, 0, h.client.ReconnectAttempt().Count)

	states := h.states()
	require.GreaterOrEqual(t, len(states), 4)
	assert.Equal(t, []connection.State{
		connection.StateConnecting,
		connection.StateFailed,
		connection.StateReconnecting,
		connection.StateConnected,
	}, states[:4])
}

func TestConnectFailureWithoutAutoReconnect(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.AutoReconnect = false })
	h.broker.SetDialError(errRefused)

	assert.False(t, h.client.Connect())
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, connection.StateFailed, h.client.State())
	assert.Equal(t, 1, h.broker.Dials())
}

func TestReconnectBudgetExhausted(t *testing.T) {
	h := newHarness(t, nil)
	h.broker.SetDialError(errRefused)

	assert.False(t, h.client.Connect())
	h.waitState(t, connection.StateFailed)

	require.Eventually(t, func() bool { return len(h.eventsOf(EventConnectionFailed)) == 1 }, settle, tick)
	failed := h.eventsOf(EventConnectionFailed)[0]
	assert.Equal(t, 5, failed.Attempts)
	assert.ErrorIs(t, failed.Err, syscall.ECONNREFUSED)
	assert.Equal(t, "mem://lobby", failed.Server)

	// Initial attempt plus five retries, then nothing more.
	dials := h.broker.Dials()
	assert.Equal(t, 6, dials)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, dials, h.broker.Dials())
	assert.Len(t, h.eventsOf(EventConnectionFailed), 1)
	assert.Equal(t, connection.StateFailed, h.client.State())

	// A fresh Connect is allowed again.
	h.broker.SetDialError(nil)
	assert.True(t, h.client.Connect())
}

func TestCredentialInvalidatedDuringRetry(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Reconnect.Backoff = connection.BackoffConfig{Initial: 30 * time.Millisecond, Max: 30 * time.Millisecond}
	})
	require.True(t, h.client.Connect())

	h.broker.SetDialError(errRefused)
	h.killCurrent(t)
	h.waitState(t, connection.StateReconnecting)

	h.creds.Invalidate()
	h.waitState(t, connection.StateFailed)

	require.Eventually(t, func() bool { return len(h.eventsOf(EventConnectionFailed)) == 1 }, settle, tick)
	assert.ErrorIs(t, h.eventsOf(EventConnectionFailed)[0].Err, credentials.ErrInvalidated)
	assert.False(t, h.client.Connect())
}

func TestConnectionLossReconnects(t *testing.T) {
	h := newHarness(t, nil)

	var got atomic.Int32
	require.NoError(t, h.client.Subscribe("/topic/lobby", subscription.RawKind, func(subscription.Message) {
		got.Add(1)
	}))
	require.True(t, h.client.Connect())
	first := h.client.ConnectionID()

	h.killCurrent(t)
	require.Eventually(t, func() bool {
		id := h.client.ConnectionID()
		return h.client.State() == connection.StateConnected && id != "" && id != first
	}, settle, tick)

	second := h.client.ConnectionID()
	assert.Contains(t, h.broker.Subscriptions(second), "/topic/lobby")
	require.Eventually(t, func() bool { return len(h.eventsOf(EventReconnected)) == 1 }, settle, tick)
	assert.Equal(t, second, h.eventsOf(EventReconnected)[0].ConnectionID)

	h.broker.Publish("/topic/lobby", []byte("hi"))
	require.Eventually(t, func() bool { return got.Load() == 1 }, settle, tick)

	assert.NoError(t, h.client.LastError())
}

func TestLossWithInvalidCredentialStaysDisconnected(t *testing.T) {
	h := newHarness(t, nil)
	require.True(t, h.client.Connect())

	h.creds.Invalidate()
	h.killCurrent(t)
	h.waitState(t, connection.StateDisconnected)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, connection.StateDisconnected, h.client.State())
	assert.Equal(t, 1, h.broker.Dials())
}

func TestSetAutoReconnect(t *testing.T) {
	t.Run("DisabledLossStaysDisconnected", func(t *testing.T) {
		h := newHarness(t, nil)
		require.True(t, h.client.Connect())

		h.client.SetAutoReconnect(false)
		assert.False(t, h.client.AutoReconnect())
		h.killCurrent(t)
		h.waitState(t, connection.StateDisconnected)

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 1, h.broker.Dials())
	})

	t.Run("DisablingStopsCycle", func(t *testing.T) {
		h := newHarness(t, func(c *Config) {
			c.Reconnect.Backoff = connection.BackoffConfig{Initial: 50 * time.Millisecond, Max: 50 * time.Millisecond}
		})
		h.broker.SetDialError(errRefused)
		assert.False(t, h.client.Connect())
		require.Equal(t, connection.StateReconnecting, h.client.State())

		h.client.SetAutoReconnect(false)
		assert.Equal(t, connection.StateDisconnected, h.client.State())

		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, 1, h.broker.Dials())
	})
}

func TestDisconnect(t *testing.T) {
	t.Run("KeepsSubscriptions", func(t *testing.T) {
		h := newHarness(t, nil)
		require.NoError(t, h.client.Subscribe("/topic/lobby", subscription.RawKind, func(subscription.Message) {}))
		require.True(t, h.client.Connect())

		h.client.Disconnect()
		assert.Equal(t, connection.StateDisconnected, h.client.State())
		assert.Empty(t, h.broker.Conns())
		assert.Equal(t, []string{"/topic/lobby"}, h.client.Subscriptions())
		assert.Empty(t, h.client.ConnectionID())

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 1, h.broker.Dials(), "Disconnect must not schedule a reconnect")

		require.True(t, h.client.Connect())
		assert.Contains(t, h.broker.Subscriptions(h.client.ConnectionID()), "/topic/lobby")
	})

	t.Run("CancelsReconnectCycle", func(t *testing.T) {
		h := newHarness(t, func(c *Config) {
			c.Reconnect.Backoff = connection.BackoffConfig{Initial: 50 * time.Millisecond, Max: 50 * time.Millisecond}
		})
		h.broker.SetDialError(errRefused)
		assert.False(t, h.client.Connect())

		h.client.Disconnect()
		assert.Equal(t, connection.StateDisconnected, h.client.State())
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, 1, h.broker.Dials())
		assert.Equal(t, connection.StateDisconnected, h.client.State())
	})

	t.Run("StopsHeartbeat", func(t *testing.T) {
		h := newHarness(t, nil)
		require.True(t, h.client.Connect())
		l := h.currentLink()
		require.NotNil(t, l.heartbeat)
		require.True(t, l.heartbeat.IsRunning())

		h.client.Disconnect()
		assert.False(t, l.heartbeat.IsRunning())
		_, ok := h.client.HeartbeatStats()
		assert.False(t, ok)
	})
}

func TestCleanDisconnectDuringInFlightReconnect(t *testing.T) {
	h := newHarness(t, nil)
	require.True(t, h.client.Connect())

	h.broker.SetDialDelay(100 * time.Millisecond)
	h.killCurrent(t)

	// Wait until the retry is blocked in the transport.
	require.Eventually(t, func() bool { return h.broker.Dials() == 2 }, settle, tick)

	h.client.CleanDisconnect()
	assert.Equal(t, connection.StateDisconnected, h.client.State())

	// The in-flight dial succeeds after the disconnect; it must not win.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, connection.StateDisconnected, h.client.State())
	assert.Empty(t, h.broker.Conns())
	assert.Equal(t, 2, h.broker.Dials())
	assert.Empty(t, h.eventsOf(EventReconnected))

	// Auto-reconnect is re-armed for the next session.
	assert.True(t, h.client.AutoReconnect())
	h.broker.SetDialDelay(0)
	require.True(t, h.client.Connect())
	h.killCurrent(t)
	require.Eventually(t, func() bool { return len(h.eventsOf(EventReconnected)) == 1 }, settle, tick)
}

func TestDisconnectDuringInitialConnect(t *testing.T) {
	h := newHarness(t, nil)
	h.broker.SetDialDelay(80 * time.Millisecond)

	result := make(chan bool, 1)
	go func() { result <- h.client.Connect() }()

	require.Eventually(t, func() bool { return h.client.State() == connection.StateConnecting }, settle, tick)
	h.client.Disconnect()

	assert.False(t, <-result)
	assert.Equal(t, connection.StateDisconnected, h.client.State())
	assert.Empty(t, h.broker.Conns())
}

func TestHeartbeatVerdicts(t *testing.T) {
	h := newHarness(t, nil)
	require.True(t, h.client.Connect())
	hb := h.currentLink().heartbeat

	t.Run("FailuresBelowThresholdMarkUnhealthy", func(t *testing.T) {
		hb.HandleProbeFailure()
		assert.Equal(t, connection.StateUnhealthy, h.client.State())

		hb.HandleProbeFailure()
		assert.Equal(t, connection.StateUnhealthy, h.client.State())
		assert.False(t, h.client.IsConnected())
		assert.True(t, h.client.Usable())
		assert.NoError(t, h.client.Send("/app/chat", "still flowing"))
		assert.NoError(t, h.client.Subscribe("/topic/unhealthy", subscription.RawKind, func(subscription.Message) {}))
		assert.Contains(t, h.broker.Subscriptions(h.client.ConnectionID()), "/topic/unhealthy")
	})

	t.Run("SuccessRestoresConnected", func(t *testing.T) {
		hb.HandleProbeSuccess(time.Millisecond)
		assert.Equal(t, connection.StateConnected, h.client.State())
		assert.True(t, h.client.IsConnected())

		stats, ok := h.client.HeartbeatStats()
		require.True(t, ok)
		assert.Equal(t, 0, stats.ConsecutiveFailures)
	})

	t.Run("ThresholdDisconnectsAndReconnects", func(t *testing.T) {
		first := h.client.ConnectionID()
		hb.HandleProbeFailure()
		hb.HandleProbeFailure()
		hb.HandleProbeFailure()

		assert.Equal(t, connection.StateReconnecting, h.client.State())
		assert.NotContains(t, h.broker.Conns(), first)

		h.waitState(t, connection.StateConnected)
		require.Eventually(t, func() bool {
			i := slices.Index(h.states(), connection.StateDisconnected)
			return i > 0 && len(h.states()) > i+2
		}, settle, tick)

		states := h.states()
		i := slices.Index(states, connection.StateDisconnected)
		assert.Equal(t, connection.StateUnhealthy, states[i-1])
		assert.Equal(t, connection.StateReconnecting, states[i+1])
		assert.Equal(t, connection.StateConnected, states[i+2])
	})
}

func TestStaleHeartbeatIgnored(t *testing.T) {
	h := newHarness(t, nil)
	require.True(t, h.client.Connect())
	old := h.currentLink()

	h.client.Disconnect()
	require.True(t, h.client.Connect())

	hooks := h.client.heartbeatHooks(old)
	hooks.OnFailure(heartbeat.Stats{ConsecutiveFailures: 1})
	hooks.OnDead(heartbeat.Stats{ConsecutiveFailures: 3})

	assert.Equal(t, connection.StateConnected, h.client.State())
	assert.Equal(t, 2, h.broker.Dials())
}

func TestHeartbeatOverTransport(t *testing.T) {
	fast := heartbeat.Config{
		Interval:            20 * time.Millisecond,
		MinInterval:         10 * time.Millisecond,
		MaxInterval:         40 * time.Millisecond,
		HealthCheckInterval: 10 * time.Millisecond,
		ResponseTimeout:     10 * time.Millisecond,
		FailureThreshold:    3,
		SuccessThreshold:    5,
	}

	t.Run("EchoKeepsConnectionHealthy", func(t *testing.T) {
		relaxed := fast
		relaxed.ResponseTimeout = 200 * time.Millisecond
		h := newHarness(t, func(c *Config) { c.Heartbeat = relaxed })
		h.broker.Echo(DefaultProbeDestination, DefaultProbeReplyDestination)
		require.True(t, h.client.Connect())

		require.Eventually(t, func() bool {
			stats, ok := h.client.HeartbeatStats()
			return ok && stats.LastRTT >= 0 && stats.ConsecutiveSuccesses >= 2
		}, settle, tick)

		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, connection.StateConnected, h.client.State())
		assert.Equal(t, 1, h.broker.Dials())
	})

	t.Run("SilenceDisconnects", func(t *testing.T) {
		h := newHarness(t, func(c *Config) {
			c.Heartbeat = fast
			c.AutoReconnect = false
		})
		require.True(t, h.client.Connect())

		h.waitState(t, connection.StateDisconnected)
		require.Eventually(t, func() bool {
			return slices.Contains(h.states(), connection.StateUnhealthy)
		}, settle, tick)
	})

	t.Run("Disabled", func(t *testing.T) {
		h := newHarness(t, func(c *Config) {
			c.Heartbeat = fast
			c.DisableHeartbeat = true
		})
		require.True(t, h.client.Connect())

		assert.NotContains(t, h.broker.Subscriptions(h.client.ConnectionID()), DefaultProbeReplyDestination)
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, connection.StateConnected, h.client.State())
		_, ok := h.client.HeartbeatStats()
		assert.False(t, ok)
	})
}

type chatMessage struct {
	From string `json:"from"`
	Text string `json:"text"`
}

func TestSubscribe(t *testing.T) {
	t.Run("Validation", func(t *testing.T) {
		h := newHarness(t, nil)
		assert.ErrorIs(t, h.client.Subscribe("", subscription.RawKind, func(subscription.Message) {}), ErrInvalidDestination)
		assert.ErrorIs(t, h.client.Subscribe("/topic/x", subscription.RawKind, nil), ErrNilHandler)
		assert.Empty(t, h.client.Subscriptions())
	})

	t.Run("OfflineIsRecordedOnly", func(t *testing.T) {
		h := newHarness(t, nil)
		require.NoError(t, h.client.Subscribe("/topic/x", subscription.RawKind, func(subscription.Message) {}))
		assert.Equal(t, []string{"/topic/x"}, h.client.Subscriptions())
		assert.Empty(t, h.client.BoundSubscriptions())
	})

	t.Run("TypedDelivery", func(t *testing.T) {
		h := newHarness(t, nil)
		got := make(chan subscription.Message, 1)
		require.NoError(t, h.client.Subscribe("/topic/chat", subscription.JSONKind[chatMessage](), func(m subscription.Message) {
			got <- m
		}))
		require.True(t, h.client.Connect())

		body, _ := json.Marshal(chatMessage{From: "ann", Text: "gg"})
		assert.Equal(t, 1, h.broker.Publish("/topic/chat", body))

		select {
		case m := <-got:
			assert.Equal(t, "/topic/chat", m.Destination)
			assert.Equal(t, chatMessage{From: "ann", Text: "gg"}, m.Value)
		case <-time.After(settle):
			t.Fatal("message not delivered")
		}
	})

	t.Run("UndecodableDropped", func(t *testing.T) {
		h := newHarness(t, nil)
		var got atomic.Int32
		require.NoError(t, h.client.Subscribe("/topic/chat", subscription.JSONKind[chatMessage](), func(subscription.Message) {
			got.Add(1)
		}))
		require.True(t, h.client.Connect())

		h.broker.Publish("/topic/chat", []byte("{not json"))
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int32(0), got.Load())
		assert.Equal(t, connection.StateConnected, h.client.State())
	})

	t.Run("ReplaceHandlerWithoutRebinding", func(t *testing.T) {
		h := newHarness(t, nil)
		require.True(t, h.client.Connect())

		var first, second atomic.Int32
		require.NoError(t, h.client.Subscribe("/topic/x", subscription.RawKind, func(subscription.Message) { first.Add(1) }))
		require.NoError(t, h.client.Subscribe("/topic/x", subscription.RawKind, func(subscription.Message) { second.Add(1) }))

		subs := h.broker.Subscriptions(h.client.ConnectionID())
		assert.Equal(t, 1, countOf(subs, "/topic/x"), "destination bound more than once")

		h.broker.Publish("/topic/x", []byte("a"))
		require.Eventually(t, func() bool { return second.Load() == 1 }, settle, tick)
		assert.Equal(t, int32(0), first.Load())
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		h := newHarness(t, nil)
		require.True(t, h.client.Connect())
		require.NoError(t, h.client.Subscribe("/topic/x", subscription.RawKind, func(subscription.Message) {}))

		assert.True(t, h.client.Unsubscribe("/topic/x"))
		assert.False(t, h.client.Unsubscribe("/topic/x"))
		assert.NotContains(t, h.broker.Subscriptions(h.client.ConnectionID()), "/topic/x")
		assert.Empty(t, h.client.Subscriptions())
	})
}

func countOf(list []string, s string) int {
	n := 0
	for _, v := range list {
		if v == s {
			n++
		}
	}
	return n
}

func TestConcurrentSubscriptionsAcrossReconnects(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Reconnect.Backoff = connection.BackoffConfig{Initial: time.Millisecond, Max: 2 * time.Millisecond}
		c.Reconnect.MaxAttempts = 50
	})
	require.True(t, h.client.Connect())

	const workers = 8
	const rounds = 40

	stop := make(chan struct{})
	killerDone := make(chan struct{})
	go func() {
		defer close(killerDone)
		for {
			select {
			case <-stop:
				return
			case <-time.After(3 * time.Millisecond):
				h.broker.KillAll(syscall.ECONNRESET)
			}
		}
	}()

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dest := fmt.Sprintf("/topic/room-%d", w)
			for r := range rounds {
				if r%3 == 2 {
					h.client.Unsubscribe(dest)
				} else {
					_ = h.client.Subscribe(dest, subscription.RawKind, func(subscription.Message) {})
				}
			}
			// Odd workers end unsubscribed.
			if w%2 == 1 {
				h.client.Unsubscribe(dest)
			} else {
				_ = h.client.Subscribe(dest, subscription.RawKind, func(subscription.Message) {})
			}
		}()
	}
	wg.Wait()
	close(stop)
	<-killerDone

	var want []string
	for w := 0; w < workers; w += 2 {
		want = append(want, fmt.Sprintf("/topic/room-%d", w))
	}
	assert.Equal(t, want, h.client.Subscriptions())

	h.waitState(t, connection.StateConnected)
	require.Eventually(t, func() bool {
		return slices.Equal(h.client.BoundSubscriptions(), want)
	}, settle, tick)

	// Exactly one physical subscription per destination.
	subs := h.broker.Subscriptions(h.client.ConnectionID())
	for _, d := range want {
		assert.Equal(t, 1, countOf(subs, d), d)
	}
	for w := 1; w < workers; w += 2 {
		assert.Zero(t, countOf(subs, fmt.Sprintf("/topic/room-%d", w)))
	}
}

func TestSend(t *testing.T) {
	t.Run("NotConnected", func(t *testing.T) {
		h := newHarness(t, nil)
		assert.ErrorIs(t, h.client.Send("/app/chat", "hi"), ErrNotConnected)
		assert.ErrorIs(t, h.client.Send("", "hi"), ErrInvalidDestination)
	})

	t.Run("EncodesPayload", func(t *testing.T) {
		h := newHarness(t, nil)
		got := make(chan []byte, 1)
		h.broker.Handle("/app/chat", func(_ string, f transport.Frame) { got <- f.Body })
		require.True(t, h.client.Connect())

		require.NoError(t, h.client.Send("/app/chat", chatMessage{From: "bob", Text: "hello"}))
		assert.JSONEq(t, `{"from":"bob","text":"hello"}`, string(<-got))

		require.NoError(t, h.client.Send("/app/chat", []byte{1, 2}))
		assert.Equal(t, []byte{1, 2}, <-got)
	})

	t.Run("EncodeErrorKeepsConnection", func(t *testing.T) {
		h := newHarness(t, nil)
		require.True(t, h.client.Connect())

		err := h.client.Send("/app/chat", make(chan int))
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrSendFailed)
		assert.Equal(t, connection.StateConnected, h.client.State())
	})

	t.Run("TransportErrorIsConnectionLoss", func(t *testing.T) {
		h := newHarness(t, func(c *Config) { c.DisableHeartbeat = true })
		require.True(t, h.client.Connect())
		first := h.client.ConnectionID()

		h.broker.SetSendError(errors.New("broken pipe"))
		err := h.client.Send("/app/chat", "hi")
		assert.ErrorIs(t, err, ErrSendFailed)
		assert.Equal(t, connection.StateReconnecting, h.client.State())

		h.broker.SetSendError(nil)
		require.Eventually(t, func() bool {
			id := h.client.ConnectionID()
			return h.client.State() == connection.StateConnected && id != first
		}, settle, tick)
		assert.NoError(t, h.client.Send("/app/chat", "hi"))
	})
}

func TestLogoutAndClose(t *testing.T) {
	t.Run("LogoutClearsSubscriptions", func(t *testing.T) {
		h := newHarness(t, nil)
		require.NoError(t, h.client.Subscribe("/topic/x", subscription.RawKind, func(subscription.Message) {}))
		require.True(t, h.client.Connect())

		h.client.Logout()
		assert.Equal(t, connection.StateDisconnected, h.client.State())
		assert.Empty(t, h.client.Subscriptions())

		require.True(t, h.client.Connect())
		assert.NotContains(t, h.broker.Subscriptions(h.client.ConnectionID()), "/topic/x")
	})

	t.Run("CloseMakesClientUnusable", func(t *testing.T) {
		h := newHarness(t, nil)
		require.True(t, h.client.Connect())

		require.NoError(t, h.client.Close())
		require.NoError(t, h.client.Close())

		assert.Equal(t, connection.StateDisconnected, h.client.State())
		assert.False(t, h.client.Connect())
		assert.ErrorIs(t, h.client.Send("/app/chat", "x"), ErrClosed)
		assert.ErrorIs(t, h.client.Subscribe("/topic/x", subscription.RawKind, func(subscription.Message) {}), ErrClosed)
		assert.Empty(t, h.broker.Conns())
	})
}

func TestStateListenerOrder(t *testing.T) {
	h := newHarness(t, nil)
	require.True(t, h.client.Connect())
	h.client.Disconnect()

	require.Eventually(t, func() bool { return len(h.states()) == 3 }, settle, tick)
	assert.Equal(t, []connection.State{
		connection.StateConnecting,
		connection.StateConnected,
		connection.StateDisconnected,
	}, h.states())
}
