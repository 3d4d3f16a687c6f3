package transport

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lanlobby/lobby-go/pkg/version"
	"github.com/lanlobby/lobby-go/pkg/wire"
)

// Gateway serves websocket clients on top of a Memory broker. Each upgraded
// connection is backed by one broker connection, so killing it on the
// broker drops the websocket client as well.
type Gateway struct {
	broker   *Memory
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewGateway creates a gateway for broker. A nil logger discards output.
func NewGateway(broker *Memory, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gateway{
		broker: broker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
			Subprotocols:    version.SupportedSubprotocols(),
		},
		logger: logger,
	}
}

// ServeHTTP authorizes the request against the broker and upgrades it.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	p := &gatewayPeer{
		subs:   make(map[string]Subscription),
		logger: g.logger,
	}

	mc, err := g.broker.Open(r.Context(), "", DialOptions{
		Token:   token,
		OnClose: func(error) { p.kick() },
	})
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, ErrUnauthorized) {
			status = http.StatusUnauthorized
		}
		http.Error(w, err.Error(), status)
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Debug("upgrade failed", "error", err)
		mc.Close()
		return
	}

	p.mu.Lock()
	p.ws = ws
	p.conn = mc
	p.logger = g.logger.With("conn", mc.ID(), "remote", r.RemoteAddr)
	p.mu.Unlock()
	p.logger.Debug("client connected")

	p.serve()
}

type gatewayPeer struct {
	ws     *websocket.Conn
	conn   Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[string]Subscription
}

func (p *gatewayPeer) serve() {
	defer func() {
		p.conn.Close()
		p.ws.Close()
		p.logger.Debug("client disconnected")
	}()

	// Killed between Open and Upgrade.
	if !p.conn.IsOpen() {
		return
	}

	for {
		_, data, err := p.ws.ReadMessage()
		if err != nil {
			return
		}

		f, err := wire.DecodeFrame(data)
		if err != nil {
			p.reject(err.Error())
			continue
		}
		if !f.Command.FromClient() {
			p.reject("unexpected " + f.Command.String())
			continue
		}

		switch f.Command {
		case wire.CmdSend:
			if err := p.conn.Send(f.Destination, f.Body); err != nil {
				p.reject(err.Error())
			}
		case wire.CmdSubscribe:
			p.subscribe(f.SubscriptionID, f.Destination)
		case wire.CmdUnsubscribe:
			p.mu.Lock()
			s := p.subs[f.SubscriptionID]
			delete(p.subs, f.SubscriptionID)
			p.mu.Unlock()
			if s != nil {
				_ = s.Unsubscribe()
			}
		}
	}
}

func (p *gatewayPeer) subscribe(id, destination string) {
	s, err := p.conn.Subscribe(destination, func(fr Frame) {
		p.write(wire.Message(id, fr.Destination, fr.Body))
	})
	if err != nil {
		p.reject(err.Error())
		return
	}

	p.mu.Lock()
	old := p.subs[id]
	p.subs[id] = s
	p.mu.Unlock()
	if old != nil {
		_ = old.Unsubscribe()
	}
}

func (p *gatewayPeer) reject(msg string) {
	p.logger.Debug("rejecting frame", "reason", msg)
	p.write(wire.Error(msg))
}

func (p *gatewayPeer) write(f *wire.Frame) {
	data, err := wire.EncodeFrame(f)
	if err != nil {
		p.logger.Error("unexpected frame encoding failure", "error", err)
		return
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.ws.SetWriteDeadline(time.Now().Add(DefaultWriteTimeout))
	if err := p.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		p.logger.Debug("write failed", "error", err)
	}
}

// kick drops the websocket without a close handshake, as a failed network
// would.
func (p *gatewayPeer) kick() {
	p.mu.Lock()
	ws := p.ws
	p.mu.Unlock()
	if ws != nil {
		ws.Close()
	}
}
