package transport

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryHandler processes a frame sent to a server-side destination.
type MemoryHandler func(connID string, f Frame)

// Memory is an in-process broker. Every Open returns a new connection to
// the same broker. Frames sent to a destination with a registered handler go
// to that handler; all other frames are broadcast to the destination's
// subscribers on every connection.
//
// The broker exposes knobs to inject dial and send failures and to kill
// connections, so reconnect behaviour can be exercised without a network.
type Memory struct {
	mu        sync.Mutex
	conns     map[string]*memoryConn
	handlers  map[string]MemoryHandler
	dialErr   error
	dialDelay time.Duration
	sendErr   error
	authorize func(token string) error
	dials     int
}

// NewMemory creates an empty broker.
func NewMemory() *Memory {
	return &Memory{
		conns:    make(map[string]*memoryConn),
		handlers: make(map[string]MemoryHandler),
	}
}

// Open connects to the broker. The url is ignored.
func (m *Memory) Open(ctx context.Context, url string, opts DialOptions) (Conn, error) {
	m.mu.Lock()
	m.dials++
	dialErr, delay, authorize := m.dialErr, m.dialDelay, m.authorize
	m.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, dialError(ctx, ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, dialError(ctx, err)
	}
	if dialErr != nil {
		return nil, dialErr
	}
	if authorize != nil {
		if err := authorize(opts.Token); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
	}

	c := &memoryConn{
		id:      uuid.NewString(),
		broker:  m,
		onClose: opts.OnClose,
		open:    true,
		subs:    make(map[string]*memorySub),
	}

	m.mu.Lock()
	m.conns[c.id] = c
	m.mu.Unlock()
	return c, nil
}

// SetDialError makes every following Open fail with err. Nil clears it.
func (m *Memory) SetDialError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dialErr = err
}

// SetDialDelay delays every following Open by d.
func (m *Memory) SetDialDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dialDelay = d
}

// SetSendError makes every Send on any connection fail with err. Nil
// clears it.
func (m *Memory) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// SetAuthorizer installs a token check run on every Open.
func (m *Memory) SetAuthorizer(fn func(token string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authorize = fn
}

// Handle registers a server-side handler for destination.
func (m *Memory) Handle(destination string, h MemoryHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[destination] = h
}

// Unhandle removes the handler for destination.
func (m *Memory) Unhandle(destination string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, destination)
}

// Echo answers every frame sent to from by delivering its body to the
// sender's subscriptions of to. This is how heartbeat probes are served.
func (m *Memory) Echo(from, to string) {
	m.Handle(from, func(connID string, f Frame) {
		m.Deliver(connID, to, f.Body)
	})
}

// Publish delivers body to every subscriber of destination and returns the
// number of deliveries.
func (m *Memory) Publish(destination string, body []byte) int {
	var targets []*memorySub
	for _, c := range m.openConns() {
		targets = append(targets, c.matching(destination)...)
	}
	for _, s := range targets {
		s.deliver(body)
	}
	return len(targets)
}

// Deliver delivers body to the subscribers of destination on one connection.
func (m *Memory) Deliver(connID, destination string, body []byte) int {
	m.mu.Lock()
	c := m.conns[connID]
	m.mu.Unlock()
	if c == nil {
		return 0
	}

	targets := c.matching(destination)
	for _, s := range targets {
		s.deliver(body)
	}
	return len(targets)
}

// Kill drops one connection as if the network failed. OnClose is called
// asynchronously with err.
func (m *Memory) Kill(connID string, err error) bool {
	m.mu.Lock()
	c := m.conns[connID]
	m.mu.Unlock()
	if c == nil {
		return false
	}
	c.drop(err)
	return true
}

// KillAll drops every open connection and returns how many were dropped.
func (m *Memory) KillAll(err error) int {
	conns := m.openConns()
	for _, c := range conns {
		c.drop(err)
	}
	return len(conns)
}

// Dials returns the number of Open calls so far.
func (m *Memory) Dials() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dials
}

// Conns returns the IDs of open connections.
func (m *Memory) Conns() []string {
	conns := m.openConns()
	ids := make([]string, len(conns))
	for i, c := range conns {
		ids[i] = c.id
	}
	sort.Strings(ids)
	return ids
}

// Subscriptions returns the destinations subscribed on one connection,
// sorted and including duplicates.
func (m *Memory) Subscriptions(connID string) []string {
	m.mu.Lock()
	c := m.conns[connID]
	m.mu.Unlock()
	if c == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subs))
	for _, s := range c.subs {
		out = append(out, s.destination)
	}
	sort.Strings(out)
	return out
}

func (m *Memory) openConns() []*memoryConn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*memoryConn, 0, len(m.conns))
	for _, c := range m.conns {
		out = append(out, c)
	}
	return out
}

func (m *Memory) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, id)
}

// route hands a sent frame to its handler or broadcasts it.
func (m *Memory) route(connID string, f Frame) error {
	m.mu.Lock()
	sendErr := m.sendErr
	h := m.handlers[f.Destination]
	m.mu.Unlock()

	if sendErr != nil {
		return sendErr
	}
	if h != nil {
		h(connID, f)
		return nil
	}
	m.Publish(f.Destination, f.Body)
	return nil
}

type memoryConn struct {
	id      string
	broker  *Memory
	onClose func(error)

	mu      sync.Mutex
	open    bool
	subs    map[string]*memorySub
	nextSub int
}

func (c *memoryConn) ID() string {
	return c.id
}

func (c *memoryConn) Send(destination string, body []byte) error {
	if destination == "" {
		return ErrInvalidDest
	}
	if !c.IsOpen() {
		return ErrConnectionClosed
	}
	return c.broker.route(c.id, Frame{Destination: destination, Body: bytes.Clone(body)})
}

func (c *memoryConn) Subscribe(destination string, handler FrameHandler) (Subscription, error) {
	if destination == "" {
		return nil, ErrInvalidDest
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil, ErrConnectionClosed
	}
	c.nextSub++
	s := &memorySub{
		id:          fmt.Sprintf("sub-%d", c.nextSub),
		destination: destination,
		handler:     handler,
		conn:        c,
	}
	c.subs[s.id] = s
	return s, nil
}

func (c *memoryConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *memoryConn) Close() error {
	c.shutdown()
	return nil
}

// shutdown marks the connection closed and reports whether this call did it.
func (c *memoryConn) shutdown() bool {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return false
	}
	c.open = false
	c.subs = make(map[string]*memorySub)
	c.mu.Unlock()

	c.broker.remove(c.id)
	return true
}

func (c *memoryConn) drop(err error) {
	if !c.shutdown() {
		return
	}
	if err == nil {
		err = ErrConnectionClosed
	}
	if c.onClose != nil {
		go c.onClose(err)
	}
}

func (c *memoryConn) matching(destination string) []*memorySub {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*memorySub
	for _, s := range c.subs {
		if s.destination == destination {
			out = append(out, s)
		}
	}
	return out
}

type memorySub struct {
	id          string
	destination string
	handler     FrameHandler
	conn        *memoryConn
}

func (s *memorySub) Destination() string {
	return s.destination
}

func (s *memorySub) Unsubscribe() error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if !s.conn.open {
		return ErrConnectionClosed
	}
	delete(s.conn.subs, s.id)
	return nil
}

func (s *memorySub) deliver(body []byte) {
	s.handler(Frame{Destination: s.destination, Body: bytes.Clone(body)})
}
