package session

import (
	"sort"
	"sync"

	"github.com/lanlobby/lobby-go/pkg/heartbeat"
	"github.com/lanlobby/lobby-go/pkg/transport"
)

// link is one physical connection and the subscriptions bound on it. It is
// owned by the Client; nothing else holds a reference.
type link struct {
	id    string
	epoch uint64
	conn  transport.Conn

	// Set once before the link is published, read-only afterwards.
	heartbeat *heartbeat.Controller
	probeSub  transport.Subscription

	mu     sync.Mutex
	subs   map[string]transport.Subscription
	lost   bool
	closed bool
}

func newLink(id string, epoch uint64) *link {
	return &link{
		id:    id,
		epoch: epoch,
		subs:  make(map[string]transport.Subscription),
	}
}

// bind subscribes destination once per link. Binding an already bound
// destination is a no-op.
func (l *link) bind(destination string, handler transport.FrameHandler) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return transport.ErrConnectionClosed
	}
	if _, ok := l.subs[destination]; ok {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	sub, err := l.conn.Subscribe(destination, handler)
	if err != nil {
		return err
	}

	l.mu.Lock()
	_, dup := l.subs[destination]
	if l.closed || dup {
		l.mu.Unlock()
		_ = sub.Unsubscribe()
		return nil
	}
	l.subs[destination] = sub
	l.mu.Unlock()
	return nil
}

// unbind removes the subscription for destination, if any.
func (l *link) unbind(destination string) error {
	l.mu.Lock()
	sub, ok := l.subs[destination]
	delete(l.subs, destination)
	l.mu.Unlock()

	if !ok {
		return nil
	}
	return sub.Unsubscribe()
}

func (l *link) bound(destination string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.subs[destination]
	return ok
}

// destinations returns the bound destinations, sorted.
func (l *link) destinations() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.subs))
	for d := range l.subs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// markLost records that the transport reported the connection gone.
func (l *link) markLost() {
	l.mu.Lock()
	l.lost = true
	l.mu.Unlock()
}

func (l *link) isLost() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lost
}

func (l *link) isOpen() bool {
	return l.conn != nil && !l.isLost() && l.conn.IsOpen()
}

// close stops the heartbeat and closes the connection. Subscriptions die
// with the connection.
func (l *link) close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.subs = make(map[string]transport.Subscription)
	l.mu.Unlock()

	if l.heartbeat != nil {
		l.heartbeat.Stop()
	}
	if l.conn == nil {
		return nil
	}
	return l.conn.Close()
}
