package session

import (
	"sync"
	"time"

	"github.com/lanlobby/lobby-go/pkg/connection"
)

// EventType identifies a session event published to the EventSink.
type EventType uint8

const (
	// EventConnectionFailed is published once when a reconnect cycle used
	// up its budget or the credential was revoked during a retry. The
	// session owner must re-authenticate before connecting again.
	EventConnectionFailed EventType = iota

	// EventReconnected is published after a RECONNECTING to CONNECTED
	// transition.
	EventReconnected
)

// String returns the event type name.
func (e EventType) String() string {
	switch e {
	case EventConnectionFailed:
		return "CONNECTION_FAILED"
	case EventReconnected:
		return "RECONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Event is published to the session owner.
type Event struct {
	Type EventType
	Time time.Time

	// Server is the configured server url.
	Server string

	// ConnectionID is the new connection (EventReconnected).
	ConnectionID string

	// Attempts is the number of retries made in the cycle.
	Attempts int

	// Err is the last failure cause (EventConnectionFailed).
	Err error
}

// EventSink receives session events. Publish is called from the client's
// notification goroutine and should not block for long.
type EventSink interface {
	Publish(Event)
}

// EventHandler handles session events.
type EventHandler func(Event)

// EventBus fans events out to any number of handlers.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[uint64]EventHandler
	nextID   uint64
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[uint64]EventHandler)}
}

// Subscribe adds fn and returns a function that removes it.
func (b *EventBus) Subscribe(fn EventHandler) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

// Publish calls every handler with e.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.handlers))
	for _, fn := range b.handlers {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(e)
	}
}

type discardSink struct{}

func (discardSink) Publish(Event) {}

// Transition describes a state change.
type Transition struct {
	From   connection.State
	To     connection.State
	Reason string
	Time   time.Time

	// Epoch is the connection generation the transition happened in.
	// ConnectionID is set while a connection is published.
	Epoch        uint64
	ConnectionID string
}

// StateListener is called for every state change.
type StateListener func(Transition)

var (
	_ EventSink = (*EventBus)(nil)
	_ EventSink = discardSink{}
)
