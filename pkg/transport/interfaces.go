package transport

import (
	"context"
	"crypto/tls"
	"time"
)

// Frame is an inbound message delivered to a subscription.
type Frame struct {
	Destination string
	Body        []byte
	Headers     map[string]string
}

// FrameHandler receives inbound frames. It is called on the transport's
// delivery goroutine and must not block.
type FrameHandler func(Frame)

// DialOptions configures a single Open call.
type DialOptions struct {
	// Token is the session credential presented to the server.
	Token string

	// Name identifies the client to the server, where supported.
	Name string

	// TLSConfig is used for secure schemes. Nil uses the system defaults.
	TLSConfig *tls.Config

	// MaxMessageSize limits inbound messages (default: 1 MiB).
	MaxMessageSize int64

	// WriteTimeout bounds a single send (default: 10s).
	WriteTimeout time.Duration

	// OnClose is called once when the connection is lost without a local
	// Close. It is called on a transport goroutine.
	OnClose func(err error)
}

// Transport opens connections to a lobby server.
// Implemented by Memory, WebSocket, NATS and Mux.
type Transport interface {
	// Open connects to url. The context bounds the dial and handshake only.
	Open(ctx context.Context, url string, opts DialOptions) (Conn, error)
}

// Conn is an open bidirectional publish/subscribe connection.
type Conn interface {
	// ID returns a unique identifier for this physical connection.
	ID() string

	// Send publishes body to destination.
	Send(destination string, body []byte) error

	// Subscribe starts delivering frames for destination to handler.
	Subscribe(destination string, handler FrameHandler) (Subscription, error)

	// IsOpen returns true until the connection is closed or lost.
	IsOpen() bool

	// Close closes the connection gracefully. OnClose is not called.
	Close() error
}

// Subscription is a live binding of a destination on one Conn.
type Subscription interface {
	Destination() string
	Unsubscribe() error
}

// Compile-time interface satisfaction checks.
var (
	_ Transport    = (*Memory)(nil)
	_ Transport    = (*WebSocket)(nil)
	_ Transport    = (*NATS)(nil)
	_ Transport    = (*Mux)(nil)
	_ Conn         = (*memoryConn)(nil)
	_ Conn         = (*wsConn)(nil)
	_ Conn         = (*natsConn)(nil)
	_ Subscription = (*memorySub)(nil)
	_ Subscription = (*wsSub)(nil)
	_ Subscription = (*natsSub)(nil)
)
