package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// DefaultNATSTimeout bounds the connect when the context has no deadline.
const DefaultNATSTimeout = 10 * time.Second

// NATS opens connections to a NATS server. Destinations map to subjects by
// trimming slashes and replacing the remaining ones with dots, so
// "/topic/lobby" becomes "topic.lobby".
//
// The client library's own reconnect is disabled; recovery is left to the
// session client.
type NATS struct {
	logger *slog.Logger
}

// NewNATS creates a NATS transport. A nil logger discards output.
func NewNATS(logger *slog.Logger) *NATS {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &NATS{logger: logger}
}

// Open connects to url.
func (t *NATS) Open(ctx context.Context, url string, opts DialOptions) (Conn, error) {
	timeout := DefaultNATSTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, ErrDialTimeout
		}
	}

	c := &natsConn{
		id:      uuid.NewString(),
		onClose: opts.OnClose,
	}
	c.logger = t.logger.With("conn", c.id)

	options := []nats.Option{
		nats.NoReconnect(),
		nats.Timeout(timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.setLastErr(err)
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			c.closed()
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			c.logger.Warn("nats async error", "subject", subject, "error", err)
		}),
	}
	if opts.Name != "" {
		options = append(options, nats.Name(opts.Name))
	}
	if opts.Token != "" {
		options = append(options, nats.Token(opts.Token))
	}
	if opts.TLSConfig != nil {
		options = append(options, nats.Secure(opts.TLSConfig))
	}

	nc, err := nats.Connect(url, options...)
	if err != nil {
		if errors.Is(err, nats.ErrAuthorization) || errors.Is(err, nats.ErrAuthExpired) {
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		if errors.Is(err, nats.ErrTimeout) {
			return nil, fmt.Errorf("%w: %v", ErrDialTimeout, err)
		}
		return nil, dialError(ctx, fmt.Errorf("nats connect: %w", err))
	}
	if err := ctx.Err(); err != nil {
		nc.Close()
		return nil, dialError(ctx, err)
	}

	c.nc = nc
	return c, nil
}

// Subject converts a destination to a NATS subject.
func Subject(destination string) (string, error) {
	s := strings.Trim(destination, "/")
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return "", fmt.Errorf("%w: %q", ErrInvalidDest, destination)
	}
	return strings.ReplaceAll(s, "/", "."), nil
}

type natsConn struct {
	id      string
	nc      *nats.Conn
	onClose func(error)
	logger  *slog.Logger

	local atomic.Bool

	mu      sync.Mutex
	lastErr error
}

func (c *natsConn) ID() string {
	return c.id
}

func (c *natsConn) Send(destination string, body []byte) error {
	subject, err := Subject(destination)
	if err != nil {
		return err
	}
	if !c.IsOpen() {
		return ErrConnectionClosed
	}
	if err := c.nc.Publish(subject, body); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

func (c *natsConn) Subscribe(destination string, handler FrameHandler) (Subscription, error) {
	subject, err := Subject(destination)
	if err != nil {
		return nil, err
	}
	if !c.IsOpen() {
		return nil, ErrConnectionClosed
	}

	sub, err := c.nc.Subscribe(subject, func(m *nats.Msg) {
		handler(Frame{
			Destination: destination,
			Body:        m.Data,
			Headers:     flattenHeader(m.Header),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}
	return &natsSub{destination: destination, sub: sub}, nil
}

func (c *natsConn) IsOpen() bool {
	return c.nc != nil && c.nc.IsConnected()
}

func (c *natsConn) Close() error {
	c.local.Store(true)
	if c.nc != nil {
		c.nc.Close()
	}
	return nil
}

func (c *natsConn) setLastErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr = err
	}
}

// closed runs on the client library's callback goroutine.
func (c *natsConn) closed() {
	if c.local.Load() || c.onClose == nil {
		return
	}

	c.mu.Lock()
	err := c.lastErr
	c.mu.Unlock()
	if err == nil {
		err = ErrConnectionClosed
	} else {
		err = fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	c.onClose(err)
}

func flattenHeader(h nats.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

type natsSub struct {
	destination string
	sub         *nats.Subscription
}

func (s *natsSub) Destination() string {
	return s.destination
}

func (s *natsSub) Unsubscribe() error {
	err := s.sub.Unsubscribe()
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) && !errors.Is(err, nats.ErrBadSubscription) {
		return fmt.Errorf("nats unsubscribe: %w", err)
	}
	return nil
}
