package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
)

// Mux selects a transport by url scheme.
type Mux struct {
	mu      sync.RWMutex
	schemes map[string]Transport
}

// NewMux creates an empty mux.
func NewMux() *Mux {
	return &Mux{schemes: make(map[string]Transport)}
}

// DefaultMux serves ws, wss, nats and tls (NATS over TLS).
func DefaultMux(logger *slog.Logger) *Mux {
	m := NewMux()
	ws := NewWebSocket(logger)
	nc := NewNATS(logger)
	m.Register("ws", ws)
	m.Register("wss", ws)
	m.Register("nats", nc)
	m.Register("tls", nc)
	return m
}

// Register binds scheme to t, replacing any previous binding.
func (m *Mux) Register(scheme string, t Transport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemes[strings.ToLower(scheme)] = t
}

// Schemes returns the registered schemes.
func (m *Mux) Schemes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.schemes))
	for s := range m.schemes {
		out = append(out, s)
	}
	return out
}

// Open dispatches to the transport registered for rawURL's scheme.
func (m *Mux) Open(ctx context.Context, rawURL string, opts DialOptions) (Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}

	m.mu.RLock()
	t := m.schemes[strings.ToLower(u.Scheme)]
	m.mu.RUnlock()

	if t == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return t.Open(ctx, rawURL, opts)
}
