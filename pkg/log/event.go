package log

import (
	"time"

	"github.com/lanlobby/lobby-go/pkg/wire"
)

// Event represents a session log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the physical connection (UUID). Empty for
	// events that happen between connections.
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Server is the url the session connects to.
	Server string `cbor:"6,keyasint,omitempty"`

	// Client is the client name presented to the server.
	Client string `cbor:"7,keyasint,omitempty"`

	// Epoch is the session's connection generation. Every connect attempt
	// and every teardown starts a new one, so events from a replaced
	// connection can be told apart from the current one.
	Epoch uint64 `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Message     *MessageEvent     `cbor:"10,keyasint,omitempty"` // Application traffic
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Session/heartbeat/reconnect state
	Control     *ControlEvent     `cbor:"13,keyasint,omitempty"` // Probes and closes
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which component captured the event.
type Layer uint8

const (
	// LayerTransport is the physical connection.
	LayerTransport Layer = 0
	// LayerSession is the session client state machine.
	LayerSession Layer = 1
	// LayerApplication is application traffic routed by the session.
	LayerApplication Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerSession:
		return "SESSION"
	case LayerApplication:
		return "APPLICATION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates an application message.
	CategoryMessage Category = 0
	// CategoryControl indicates a heartbeat probe or a close.
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MaxBodySize is the number of body bytes kept in a MessageEvent.
const MaxBodySize = 512

// MessageEvent captures an application message.
type MessageEvent struct {
	// Command is SEND for outbound and MESSAGE for inbound traffic.
	Command wire.Command `cbor:"1,keyasint"`

	// Destination is the topic or queue.
	Destination string `cbor:"2,keyasint"`

	// Size is the full body size in bytes.
	Size int `cbor:"3,keyasint"`

	// Body is the body, truncated to MaxBodySize.
	Body []byte `cbor:"4,keyasint,omitempty"`

	// Truncated indicates if Body was truncated.
	Truncated bool `cbor:"5,keyasint,omitempty"`
}

// NewMessageEvent builds a MessageEvent, truncating body if needed.
func NewMessageEvent(cmd wire.Command, destination string, body []byte) *MessageEvent {
	ev := &MessageEvent{
		Command:     cmd,
		Destination: destination,
		Size:        len(body),
		Body:        body,
	}
	if len(body) > MaxBodySize {
		ev.Body = body[:MaxBodySize]
		ev.Truncated = true
	}
	return ev
}

// StateChangeEvent captures session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// IsTransition reports whether the event is a connection state change
// from "from" to "to". Empty arguments match any state.
func (e Event) IsTransition(from, to string) bool {
	sc := e.StateChange
	if sc == nil || sc.Entity != StateEntityConnection {
		return false
	}
	return (from == "" || sc.OldState == from) && (to == "" || sc.NewState == to)
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a session connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntityHeartbeat indicates a heartbeat interval change.
	StateEntityHeartbeat StateEntity = 1
	// StateEntityReconnect indicates a reconnect cycle change.
	StateEntityReconnect StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityHeartbeat:
		return "HEARTBEAT"
	case StateEntityReconnect:
		return "RECONNECT"
	default:
		return "UNKNOWN"
	}
}

// ControlEvent captures heartbeat probes and connection closes.
type ControlEvent struct {
	// Type of control event.
	Type ControlType `cbor:"1,keyasint"`

	// Seq is the probe sequence number.
	Seq uint32 `cbor:"2,keyasint,omitempty"`

	// RTT is the measured round trip for acks, stored as nanoseconds.
	RTT *time.Duration `cbor:"3,keyasint,omitempty"`
}

// ControlType indicates the type of control event.
type ControlType uint8

const (
	// ControlProbe indicates a probe was sent.
	ControlProbe ControlType = 0
	// ControlProbeAck indicates a probe echo was received.
	ControlProbeAck ControlType = 1
	// ControlClose indicates the connection was closed.
	ControlClose ControlType = 2
)

// String returns the control type name.
func (c ControlType) String() string {
	switch c {
	case ControlProbe:
		return "PROBE"
	case ControlProbeAck:
		return "PROBE_ACK"
	case ControlClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Expected is false for errors that indicate a bug rather than a
	// network failure.
	Expected bool `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
