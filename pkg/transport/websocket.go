package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lanlobby/lobby-go/pkg/version"
	"github.com/lanlobby/lobby-go/pkg/wire"
)

// WebSocket defaults.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultMaxMessageSize   = 1 << 20
)

// WebSocket opens connections over ws:// and wss:// using the CBOR frame
// envelope from package wire. One frame is carried per binary message.
type WebSocket struct {
	// HandshakeTimeout bounds the upgrade when the context has no deadline.
	HandshakeTimeout time.Duration

	logger *slog.Logger
}

// NewWebSocket creates a websocket transport. A nil logger discards output.
func NewWebSocket(logger *slog.Logger) *WebSocket {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &WebSocket{
		HandshakeTimeout: DefaultHandshakeTimeout,
		logger:           logger,
	}
}

// Open dials url and starts the read loop.
func (t *WebSocket) Open(ctx context.Context, url string, opts DialOptions) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: t.HandshakeTimeout,
		TLSClientConfig:  opts.TLSConfig,
		Subprotocols:     version.SupportedSubprotocols(),
	}

	header := http.Header{}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}
	if opts.Name != "" {
		header.Set("User-Agent", opts.Name)
	}

	ws, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, resp.Status)
		}
		return nil, dialError(ctx, fmt.Errorf("websocket dial: %w", err))
	}
	if err := version.CheckNegotiated(ws.Subprotocol()); err != nil {
		ws.Close()
		return nil, fmt.Errorf("%w: %v", ErrProtocolMismatch, err)
	}

	maxSize := opts.MaxMessageSize
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	ws.SetReadLimit(maxSize)

	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}

	c := &wsConn{
		id:           uuid.NewString(),
		ws:           ws,
		onClose:      opts.OnClose,
		writeTimeout: writeTimeout,
		subs:         make(map[string]*wsSub),
	}
	c.logger = t.logger.With("conn", c.id)
	c.open.Store(true)

	go c.readLoop()

	return c, nil
}

type wsConn struct {
	id           string
	ws           *websocket.Conn
	onClose      func(error)
	writeTimeout time.Duration
	logger       *slog.Logger

	open      atomic.Bool
	local     atomic.Bool
	closeOnce sync.Once

	writeMu sync.Mutex

	subMu   sync.Mutex
	subs    map[string]*wsSub
	nextSub atomic.Uint64
}

func (c *wsConn) ID() string {
	return c.id
}

func (c *wsConn) Send(destination string, body []byte) error {
	if destination == "" {
		return ErrInvalidDest
	}
	return c.write(wire.Send(destination, body))
}

func (c *wsConn) Subscribe(destination string, handler FrameHandler) (Subscription, error) {
	if destination == "" {
		return nil, ErrInvalidDest
	}
	if !c.IsOpen() {
		return nil, ErrConnectionClosed
	}

	s := &wsSub{
		id:          fmt.Sprintf("sub-%d", c.nextSub.Add(1)),
		destination: destination,
		handler:     handler,
		conn:        c,
	}

	// Registered first so a MESSAGE racing the SUBSCRIBE is not lost.
	c.subMu.Lock()
	c.subs[s.id] = s
	c.subMu.Unlock()

	if err := c.write(wire.Subscribe(s.id, destination)); err != nil {
		c.removeSub(s.id)
		return nil, err
	}
	return s, nil
}

func (c *wsConn) IsOpen() bool {
	return c.open.Load()
}

func (c *wsConn) Close() error {
	c.local.Store(true)
	if !c.open.Load() {
		return nil
	}

	c.writeMu.Lock()
	_ = c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()

	c.finish(nil)
	return nil
}

func (c *wsConn) write(f *wire.Frame) error {
	if !c.IsOpen() {
		return ErrConnectionClosed
	}

	data, err := wire.EncodeFrame(f)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

func (c *wsConn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if _, ok := err.(*websocket.CloseError); ok {
				err = fmt.Errorf("%w: %v", ErrConnectionClosed, err)
			}
			c.finish(err)
			return
		}

		f, err := wire.DecodeFrame(data)
		if err != nil {
			c.logger.Warn("dropping malformed frame", "error", err)
			continue
		}

		switch f.Command {
		case wire.CmdMessage:
			c.subMu.Lock()
			s := c.subs[f.SubscriptionID]
			c.subMu.Unlock()
			if s == nil {
				c.logger.Debug("message for unknown subscription", "id", f.SubscriptionID)
				continue
			}
			s.handler(Frame{Destination: f.Destination, Body: f.Body, Headers: f.Headers})
		case wire.CmdError:
			c.logger.Warn("server error", "message", f.Message)
		default:
			c.logger.Debug("ignoring frame", "frame", f.String())
		}
	}
}

// finish tears the connection down once. OnClose fires only for losses
// not initiated by Close.
func (c *wsConn) finish(err error) {
	c.closeOnce.Do(func() {
		c.open.Store(false)
		_ = c.ws.Close()

		if c.local.Load() || c.onClose == nil {
			return
		}
		if err == nil {
			err = ErrConnectionClosed
		}
		c.onClose(err)
	})
}

func (c *wsConn) removeSub(id string) bool {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	_, ok := c.subs[id]
	delete(c.subs, id)
	return ok
}

type wsSub struct {
	id          string
	destination string
	handler     FrameHandler
	conn        *wsConn
}

func (s *wsSub) Destination() string {
	return s.destination
}

func (s *wsSub) Unsubscribe() error {
	if !s.conn.removeSub(s.id) {
		return nil
	}
	return s.conn.write(wire.Unsubscribe(s.id))
}
