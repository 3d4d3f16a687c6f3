package session

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/lanlobby/lobby-go/pkg/connection"
	"github.com/lanlobby/lobby-go/pkg/heartbeat"
	"github.com/lanlobby/lobby-go/pkg/log"
	"github.com/lanlobby/lobby-go/pkg/wire"
)

// Defaults.
const (
	DefaultConnectTimeout        = 10 * time.Second
	DefaultProbeDestination      = "/app/heartbeat"
	DefaultProbeReplyDestination = "/user/queue/heartbeat"
	DefaultDispatchShards        = 4
	DefaultDispatchQueue         = 64
)

// Config configures a Client.
type Config struct {
	// ServerURL is the url passed to the transport.
	ServerURL string

	// Name identifies the client to the server.
	Name string

	// ConnectTimeout bounds a single connection attempt.
	ConnectTimeout time.Duration

	// TLS is passed through to transports that support it.
	TLS *tls.Config

	// MaxMessageSize limits inbound frames. Zero uses the transport default.
	MaxMessageSize int64

	Heartbeat heartbeat.Config

	// DisableHeartbeat turns off liveness probing.
	DisableHeartbeat bool

	// ProbeDestination receives heartbeat probes. The server echoes them to
	// ProbeReplyDestination.
	ProbeDestination      string
	ProbeReplyDestination string

	Reconnect connection.SchedulerConfig

	// AutoReconnect enables the retry cycle after failures. It is taken as
	// given; DefaultConfig enables it.
	AutoReconnect bool

	// Codec encodes non-byte payloads passed to Send. Nil means JSON.
	Codec wire.Codec

	// DispatchShards and DispatchQueue size the inbound Dispatcher.
	DispatchShards int
	DispatchQueue  int

	// Events receives EventConnectionFailed and EventReconnected.
	Events EventSink

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger

	// EventLogger captures session events for later analysis. Nil disables
	// capture.
	EventLogger log.Logger
}

// DefaultConfig returns a configuration for serverURL with all defaults.
func DefaultConfig(serverURL string) Config {
	return Config{
		ServerURL:             serverURL,
		ConnectTimeout:        DefaultConnectTimeout,
		Heartbeat:             heartbeat.DefaultConfig(),
		ProbeDestination:      DefaultProbeDestination,
		ProbeReplyDestination: DefaultProbeReplyDestination,
		Reconnect:             connection.DefaultSchedulerConfig(),
		AutoReconnect:         true,
		Codec:                 wire.JSONCodec{},
		DispatchShards:        DefaultDispatchShards,
		DispatchQueue:         DefaultDispatchQueue,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("%w: server url is required", ErrInvalidConfig)
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("%w: negative connect timeout", ErrInvalidConfig)
	}
	if !c.DisableHeartbeat && (c.ProbeDestination == "") != (c.ProbeReplyDestination == "") {
		return fmt.Errorf("%w: probe destinations must be set together", ErrInvalidConfig)
	}
	return nil
}

func (c Config) normalized() Config {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Reconnect.MaxAttempts <= 0 {
		c.Reconnect.MaxAttempts = connection.DefaultMaxAttempts
	}
	if c.Codec == nil {
		c.Codec = wire.JSONCodec{}
	}
	if c.DispatchShards <= 0 {
		c.DispatchShards = DefaultDispatchShards
	}
	if c.DispatchQueue <= 0 {
		c.DispatchQueue = DefaultDispatchQueue
	}
	if c.ProbeDestination == "" {
		c.DisableHeartbeat = true
	}
	if c.Events == nil {
		c.Events = discardSink{}
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.EventLogger == nil {
		c.EventLogger = log.NoopLogger{}
	}
	return c
}
