package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lanlobby/lobby-go/pkg/connection"
	"github.com/lanlobby/lobby-go/pkg/credentials"
	"github.com/lanlobby/lobby-go/pkg/heartbeat"
	"github.com/lanlobby/lobby-go/pkg/log"
	"github.com/lanlobby/lobby-go/pkg/subscription"
	"github.com/lanlobby/lobby-go/pkg/transport"
	"github.com/lanlobby/lobby-go/pkg/wire"
)

// errSuperseded is returned by an attempt whose result arrived after the
// client moved on (disconnect, newer attempt, close).
var errSuperseded = errors.New("connection attempt superseded")

// Client is the resilient session client.
type Client struct {
	config    Config
	transport transport.Transport
	creds     credentials.Source
	logger    *slog.Logger
	events    log.Logger

	registry   *subscription.Registry
	dispatcher *Dispatcher
	scheduler  *connection.Scheduler
	notify     *notifier

	mu            sync.Mutex
	state         connection.State
	link          *link
	epoch         uint64
	autoReconnect bool
	suppress      int
	closed        bool
	lastErr       error
	listeners     []StateListener
}

// New creates a client. It does not connect.
func New(config Config, tr transport.Transport, creds credentials.Source) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if tr == nil {
		return nil, fmt.Errorf("%w: transport is required", ErrInvalidConfig)
	}
	if creds == nil {
		return nil, fmt.Errorf("%w: credential source is required", ErrInvalidConfig)
	}
	config = config.normalized()

	c := &Client{
		config:        config,
		transport:     tr,
		creds:         creds,
		logger:        config.Logger.With(slog.String("server", config.ServerURL)),
		events:        config.EventLogger,
		state:         connection.StateDisconnected,
		autoReconnect: config.AutoReconnect,
	}
	c.registry = subscription.NewRegistry(c.logger)
	c.dispatcher = NewDispatcher(config.DispatchShards, config.DispatchQueue, c.logger)
	c.notify = newNotifier()
	c.scheduler = connection.NewScheduler(config.Reconnect, c.retry)
	c.scheduler.OnRetry(c.onRetry)
	c.scheduler.OnExhausted(c.onExhausted)

	return c, nil
}

// Connect makes a single connection attempt bounded by ConnectTimeout.
//
// It returns true without doing anything when already connected. It returns
// false immediately when an attempt or a retry cycle is in progress, or
// when no valid credential is available. A failed attempt moves the client
// to FAILED and, with auto-reconnect on, hands off to the retry cycle.
func (c *Client) Connect() bool {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return false
	case c.state.IsLive() && c.link != nil:
		c.mu.Unlock()
		return true
	case c.state.InFlight() || c.scheduler.Active():
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	token, err := c.creds.Token()
	if err != nil || token == "" {
		c.logger.Warn("connect refused: no valid credential", slog.Any("error", err))
		return false
	}

	c.mu.Lock()
	switch {
	case c.closed, c.state.InFlight(), c.scheduler.Active():
		c.mu.Unlock()
		return false
	case c.state.IsLive() && c.link != nil:
		c.mu.Unlock()
		return true
	}
	c.epoch++
	epoch := c.epoch
	c.setStateLocked(connection.StateConnecting, "connect requested")
	c.mu.Unlock()

	err = c.attempt(epoch, token)
	if err == nil {
		return true
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return false
	}
	c.lastErr = err
	c.setStateLocked(connection.StateFailed, err.Error())
	c.mu.Unlock()

	c.scheduleReconnect(epoch, "initial connect failed")
	return false
}

// Disconnect closes the connection and cancels the heartbeat and any retry
// cycle before returning. The client ends in DISCONNECTED with its
// subscriptions kept for the next Connect.
func (c *Client) Disconnect() {
	c.teardown("disconnect requested")
}

// CleanDisconnect is Disconnect with auto-reconnect suppressed for the
// duration of the call. An attempt completing on another goroutine while it
// runs cannot bring the client back to CONNECTED.
func (c *Client) CleanDisconnect() {
	c.mu.Lock()
	c.suppress++
	c.mu.Unlock()

	c.teardown("clean disconnect")

	c.mu.Lock()
	c.suppress--
	c.mu.Unlock()
}

// Logout is CleanDisconnect followed by dropping every subscription.
func (c *Client) Logout() {
	c.CleanDisconnect()
	n := c.registry.Clear()
	c.logger.Info("logged out", slog.Int("subscriptions_cleared", n))
}

// Close logs out and releases the dispatcher. The client cannot be used
// afterwards. Close must not be called from a message handler or a state
// listener.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.Logout()
	c.dispatcher.Close()
	c.notify.close()
	return nil
}

// Subscribe records the subscription and binds it on the live connection
// if there is one. Binding failures are logged; the subscription is
// replayed on the next connect.
func (c *Client) Subscribe(destination string, kind subscription.Kind, handler subscription.Handler) error {
	if destination == "" {
		return ErrInvalidDestination
	}
	if handler == nil {
		return ErrNilHandler
	}
	if c.isClosed() {
		return ErrClosed
	}

	if c.registry.Register(destination, kind, handler) {
		c.logger.Debug("subscription handler replaced", slog.String("destination", destination))
	}

	l := c.liveLink()
	if l == nil {
		return nil
	}
	if err := l.bind(destination, c.inbound(l, destination)); err != nil {
		c.logger.Warn("live subscribe failed, will replay on reconnect",
			slog.String("conn_id", l.id),
			slog.String("destination", destination),
			slog.Any("error", err))
		return nil
	}
	// Unsubscribed concurrently.
	if !c.registry.Contains(destination) {
		_ = l.unbind(destination)
	}
	return nil
}

// Unsubscribe removes the subscription and its live binding. It reports
// whether the destination was subscribed.
func (c *Client) Unsubscribe(destination string) bool {
	removed := c.registry.Unregister(destination)

	l := c.liveLink()
	if l == nil {
		return removed
	}
	if err := l.unbind(destination); err != nil {
		c.logger.Debug("live unsubscribe failed",
			slog.String("conn_id", l.id),
			slog.String("destination", destination),
			slog.Any("error", err))
	}
	// Subscribed again concurrently.
	if c.registry.Contains(destination) {
		_ = l.bind(destination, c.inbound(l, destination))
	}
	return removed
}

// Send publishes payload to destination. Payloads other than []byte and
// string are encoded with the configured codec.
//
// Without a usable connection the message is dropped and ErrNotConnected
// returned; nothing is queued. A transport error is treated as connection
// loss and returned wrapped in ErrSendFailed.
func (c *Client) Send(destination string, payload any) error {
	if destination == "" {
		return ErrInvalidDestination
	}
	if c.isClosed() {
		return ErrClosed
	}

	l := c.liveLink()
	if l == nil {
		c.logger.Warn("dropping message: not connected", slog.String("destination", destination))
		return ErrNotConnected
	}

	body, err := wire.EncodePayload(c.config.Codec, payload)
	if err != nil {
		return err
	}

	if err := l.conn.Send(destination, body); err != nil {
		c.reportError(l, "send", err)
		c.connectionLost(l, "send failed", err)
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	c.recordMessage(l, log.DirectionOut, wire.CmdSend, destination, body)
	return nil
}

// IsConnected reports whether the connection is open and healthy. An
// UNHEALTHY client is not connected by this measure although Send still
// works.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	l, state := c.link, c.state
	c.mu.Unlock()
	return state == connection.StateConnected && l != nil && l.isOpen()
}

// Usable reports whether Send and Subscribe reach the server now.
func (c *Client) Usable() bool {
	return c.liveLink() != nil
}

// State returns the current state.
func (c *Client) State() connection.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConnectionID returns the id of the current connection, empty when not
// connected.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.link == nil {
		return ""
	}
	return c.link.id
}

// HeartbeatStats returns the statistics of the current connection's
// heartbeat. The boolean is false when no heartbeat runs.
func (c *Client) HeartbeatStats() (heartbeat.Stats, bool) {
	c.mu.Lock()
	l := c.link
	c.mu.Unlock()
	if l == nil || l.heartbeat == nil {
		return heartbeat.Stats{}, false
	}
	return l.heartbeat.Stats(), true
}

// ReconnectAttempt returns the retry cycle snapshot.
func (c *Client) ReconnectAttempt() connection.Attempt {
	return c.scheduler.Attempt()
}

// LastError returns the cause of the most recent failure, nil after a
// successful connect.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Subscriptions returns the subscribed destinations, sorted.
func (c *Client) Subscriptions() []string {
	return c.registry.Destinations()
}

// BoundSubscriptions returns the destinations bound on the live
// connection, sorted.
func (c *Client) BoundSubscriptions() []string {
	l := c.liveLink()
	if l == nil {
		return nil
	}
	return l.destinations()
}

// OnStateChange registers fn for every later state change. Listeners run
// on the notification goroutine in transition order and may call back into
// the client.
func (c *Client) OnStateChange(fn StateListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// SetAutoReconnect enables or disables the retry cycle. Disabling it while
// RECONNECTING stops the cycle and leaves the client DISCONNECTED.
func (c *Client) SetAutoReconnect(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.autoReconnect = enabled
	if !enabled && c.state == connection.StateReconnecting {
		c.scheduler.Cancel()
		c.epoch++
		c.setStateLocked(connection.StateDisconnected, "auto-reconnect disabled")
	}
}

// AutoReconnect reports whether the retry cycle is enabled.
func (c *Client) AutoReconnect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoReconnect
}

// attempt dials, binds the probe reply, replays the registry and publishes
// the new connection, in that order.
func (c *Client) attempt(epoch uint64, token string) error {
	l := newLink("", epoch)

	ctx, cancel := context.WithTimeout(context.Background(), c.config.ConnectTimeout)
	defer cancel()

	conn, err := c.transport.Open(ctx, c.config.ServerURL, transport.DialOptions{
		Token:          token,
		Name:           c.config.Name,
		TLSConfig:      c.config.TLS,
		MaxMessageSize: c.config.MaxMessageSize,
		OnClose:        func(err error) { c.handleClose(l, err) },
	})
	if err != nil {
		c.reportError(l, "connect", err)
		return err
	}
	l.conn = conn
	l.id = conn.ID()
	if l.id == "" {
		l.id = uuid.NewString()
	}

	if !c.config.DisableHeartbeat {
		l.heartbeat = heartbeat.New(c.config.Heartbeat, c.probeFunc(l), c.heartbeatHooks(l))
		sub, err := conn.Subscribe(c.config.ProbeReplyDestination, c.probeReplyHandler(l))
		if err != nil {
			c.reportError(l, "bind probe reply", err)
			_ = l.close()
			return fmt.Errorf("bind probe reply: %w", err)
		}
		l.probeSub = sub
	}

	result := c.registry.ReplayAll(func(e subscription.Entry) error {
		return l.bind(e.Destination, c.inbound(l, e.Destination))
	})
	c.logger.Info("subscriptions replayed",
		slog.String("conn_id", l.id),
		slog.Int("total", result.Total),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", len(result.Failed)))

	c.mu.Lock()
	if c.epoch != epoch || c.closed || c.suppress > 0 || l.isLost() {
		lost := l.isLost()
		c.mu.Unlock()
		_ = l.close()
		if lost {
			return transport.ErrConnectionClosed
		}
		return errSuperseded
	}
	from := c.state
	c.scheduler.Cancel()
	c.link = l
	c.lastErr = nil
	c.setStateLocked(connection.StateConnected, "connected "+l.id)
	if l.heartbeat != nil {
		l.heartbeat.Start()
	}
	c.mu.Unlock()

	c.reconcile(l)

	if from == connection.StateReconnecting {
		c.publish(Event{Type: EventReconnected, ConnectionID: l.id})
	}
	return nil
}

// reconcile brings the link's bindings in line with the registry after
// registrations that raced with replay.
func (c *Client) reconcile(l *link) {
	for _, e := range c.registry.Snapshot() {
		if l.bound(e.Destination) {
			continue
		}
		if err := l.bind(e.Destination, c.inbound(l, e.Destination)); err != nil {
			c.logger.Warn("subscribe failed, will replay on reconnect",
				slog.String("conn_id", l.id),
				slog.String("destination", e.Destination),
				slog.Any("error", err))
		}
	}
	for _, dest := range l.destinations() {
		if !c.registry.Contains(dest) {
			_ = l.unbind(dest)
		}
	}
}

// retry is the scheduler's attempt function.
func (c *Client) retry() bool {
	token, err := c.creds.Token()
	if err != nil || token == "" {
		if err == nil {
			err = credentials.ErrNoCredential
		}
		c.abandonCycle(err)
		return false
	}

	c.mu.Lock()
	if c.closed || c.state != connection.StateReconnecting || c.suppress > 0 {
		c.mu.Unlock()
		return false
	}
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	if err := c.attempt(epoch, token); err != nil {
		c.mu.Lock()
		if c.epoch == epoch {
			c.lastErr = err
		}
		c.mu.Unlock()
		return false
	}
	return true
}

// scheduleReconnect starts a retry cycle if the client still sits where
// the failure left it.
func (c *Client) scheduleReconnect(epoch uint64, reason string) {
	if !credentials.Valid(c.creds) {
		c.logger.Warn("not reconnecting: no valid credential")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch || c.closed || !c.autoReconnect || c.suppress > 0 {
		return
	}
	if c.state != connection.StateDisconnected && c.state != connection.StateFailed {
		return
	}
	c.setStateLocked(connection.StateReconnecting, reason)
	c.scheduler.Schedule()
}

// abandonCycle ends a retry cycle whose credential went away.
func (c *Client) abandonCycle(cause error) {
	c.mu.Lock()
	if c.state != connection.StateReconnecting {
		c.mu.Unlock()
		return
	}
	attempts := c.scheduler.Attempt().Count
	c.scheduler.Cancel()
	c.epoch++
	c.lastErr = cause
	c.setStateLocked(connection.StateFailed, "credential no longer valid")
	c.mu.Unlock()

	c.publish(Event{Type: EventConnectionFailed, Attempts: attempts, Err: cause})
}

func (c *Client) onRetry(attempt int, delay time.Duration) {
	c.logger.Info("reconnect scheduled",
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay))
	c.notify.post(func() {
		c.events.Log(c.baseEvent("", log.LayerSession, log.CategoryState, log.DirectionOut, func(e *log.Event) {
			e.StateChange = &log.StateChangeEvent{
				Entity:   log.StateEntityReconnect,
				NewState: fmt.Sprintf("attempt %d", attempt),
				Reason:   "retry in " + delay.String(),
			}
		}))
	})
}

func (c *Client) onExhausted(attempts int) {
	c.mu.Lock()
	if c.state != connection.StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.epoch++
	cause := c.lastErr
	c.setStateLocked(connection.StateFailed, fmt.Sprintf("gave up after %d attempts", attempts))
	c.mu.Unlock()

	c.logger.Warn("reconnect budget exhausted", slog.Int("attempts", attempts), slog.Any("error", cause))
	c.publish(Event{Type: EventConnectionFailed, Attempts: attempts, Err: cause})
}

// teardown ends any connection or attempt and leaves DISCONNECTED.
func (c *Client) teardown(reason string) {
	c.mu.Lock()
	c.scheduler.Cancel()
	// The transition belongs to the connection it ends.
	c.setStateLocked(connection.StateDisconnected, reason)
	c.epoch++
	l := c.link
	c.link = nil
	c.mu.Unlock()

	if l == nil {
		return
	}
	c.recordControl(l, log.DirectionOut, log.ControlClose, 0, nil)
	if err := l.close(); err != nil {
		c.logger.Debug("close failed", slog.String("conn_id", l.id), slog.Any("error", err))
	}
}

// connectionLost handles a dead link: transport close, failed send or
// heartbeat threshold. Stale links are ignored.
func (c *Client) connectionLost(l *link, reason string, cause error) {
	c.mu.Lock()
	if c.link != l {
		c.mu.Unlock()
		return
	}
	if cause != nil {
		c.lastErr = cause
	}
	c.setStateLocked(connection.StateDisconnected, reason)
	c.link = nil
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	_ = l.close()
	c.scheduleReconnect(epoch, reason)
}

// handleClose is the transport's close notification.
func (c *Client) handleClose(l *link, err error) {
	l.markLost()
	if err == nil {
		err = transport.ErrConnectionClosed
	}
	c.reportError(l, "connection lost", err)
	c.connectionLost(l, "connection lost", err)
}

func (c *Client) heartbeatHooks(l *link) heartbeat.Hooks {
	var lastInterval time.Duration
	var intervalMu sync.Mutex
	noteInterval := func(d time.Duration) {
		intervalMu.Lock()
		old := lastInterval
		lastInterval = d
		intervalMu.Unlock()
		if old != 0 && old != d {
			c.recordInterval(l, old, d)
		}
	}

	return heartbeat.Hooks{
		OnSuccess: func(s heartbeat.Stats) {
			noteInterval(s.CurrentInterval)
			c.mu.Lock()
			if c.link == l && c.state == connection.StateUnhealthy {
				c.setStateLocked(connection.StateConnected, "heartbeat recovered")
			}
			c.mu.Unlock()
		},
		OnFailure: func(s heartbeat.Stats) {
			noteInterval(s.CurrentInterval)
			c.mu.Lock()
			if c.link == l && c.state == connection.StateConnected {
				c.setStateLocked(connection.StateUnhealthy,
					fmt.Sprintf("%d consecutive heartbeat failures", s.ConsecutiveFailures))
			}
			c.mu.Unlock()
		},
		OnDead: func(s heartbeat.Stats) {
			c.connectionLost(l, fmt.Sprintf("heartbeat failed %d times", s.ConsecutiveFailures), nil)
		},
	}
}

func (c *Client) probeFunc(l *link) heartbeat.ProbeFunc {
	return func(seq uint32) error {
		body, err := wire.EncodeProbe(wire.NewProbe(seq))
		if err != nil {
			return err
		}
		c.recordControl(l, log.DirectionOut, log.ControlProbe, seq, nil)
		return l.conn.Send(c.config.ProbeDestination, body)
	}
}

func (c *Client) probeReplyHandler(l *link) transport.FrameHandler {
	return func(f transport.Frame) {
		p, err := wire.DecodeProbe(f.Body)
		if err != nil {
			c.logger.Debug("ignoring malformed probe reply", slog.String("conn_id", l.id), slog.Any("error", err))
			return
		}
		rtt := p.Age()
		c.recordControl(l, log.DirectionIn, log.ControlProbeAck, p.Seq, &rtt)
		l.heartbeat.Ack(p.Seq)
	}
}

// inbound returns the transport handler for destination on l. Handlers are
// looked up at delivery time so a replaced handler takes effect without
// rebinding.
func (c *Client) inbound(l *link, destination string) transport.FrameHandler {
	return func(f transport.Frame) {
		if !c.registry.Contains(destination) {
			return
		}
		c.recordMessage(l, log.DirectionIn, wire.CmdMessage, destination, f.Body)

		err := c.dispatcher.Dispatch(destination, func() {
			entry, ok := c.registry.Lookup(destination)
			if !ok {
				return
			}
			if err := entry.Deliver(f.Body, f.Headers); err != nil {
				c.logger.Warn("dropping undecodable message",
					slog.String("destination", destination),
					slog.String("kind", entry.Kind.Name()),
					slog.Any("error", err))
			}
		})
		if err != nil {
			c.logger.Debug("dropping message after close", slog.String("destination", destination))
		}
	}
}

// liveLink returns the link when Send and Subscribe may use it.
func (c *Client) liveLink() *link {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.state.IsLive() {
		return nil
	}
	return c.link
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// setStateLocked records a transition. Listeners and logging run on the
// notification goroutine. Caller holds c.mu.
func (c *Client) setStateLocked(to connection.State, reason string) {
	from := c.state
	if from == to {
		return
	}
	c.state = to

	t := Transition{From: from, To: to, Reason: reason, Time: time.Now(), Epoch: c.epoch}
	if c.link != nil {
		t.ConnectionID = c.link.id
	}
	listeners := c.listeners
	c.notify.post(func() {
		c.logger.Info("session state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
			slog.String("reason", reason))
		c.recordState(t)
		for _, fn := range listeners {
			fn(t)
		}
	})
}

// publish hands e to the event sink on the notification goroutine.
func (c *Client) publish(e Event) {
	e.Time = time.Now()
	e.Server = c.config.ServerURL
	sink := c.config.Events
	c.notify.post(func() { sink.Publish(e) })
}
