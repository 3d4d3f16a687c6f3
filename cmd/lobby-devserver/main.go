// Command lobby-devserver is a development server for lobby-client.
//
// It serves websocket sessions from an in-process broker. Frames sent to a
// destination without a handler are broadcast to its subscribers, heartbeat
// probes are echoed, and /app/echo is answered on /topic/echo.
//
// Usage:
//
//	lobby-devserver [flags]
//
// Flags:
//
//	-listen string      Listen address (default ":8470")
//	-path string        Websocket path (default "/ws")
//	-name string        Server name announced via mDNS (default "lobby-dev")
//	-token string       Accept only this session token (empty accepts any)
//	-advertise          Announce the server via mDNS
//	-kill-every duration  Drop all sessions periodically to exercise reconnects
//	-log-level string   Log level: debug, info, warn, error (default "info")
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/lanlobby/lobby-go/pkg/discovery"
	"github.com/lanlobby/lobby-go/pkg/session"
	"github.com/lanlobby/lobby-go/pkg/transport"
	"github.com/lanlobby/lobby-go/pkg/wire"
)

// Config holds the server configuration.
type Config struct {
	Listen    string
	Path      string
	Name      string
	Token     string
	Advertise bool
	KillEvery time.Duration
	LogLevel  string
}

var config Config

func init() {
	flag.StringVar(&config.Listen, "listen", ":8470", "Listen address")
	flag.StringVar(&config.Path, "path", "/ws", "Websocket path")
	flag.StringVar(&config.Name, "name", "lobby-dev", "Server name announced via mDNS")
	flag.StringVar(&config.Token, "token", "", "Accept only this session token (empty accepts any)")
	flag.BoolVar(&config.Advertise, "advertise", false, "Announce the server via mDNS")
	flag.DurationVar(&config.KillEvery, "kill-every", 0, "Drop all sessions periodically to exercise reconnects")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

// errChaos is the close cause for sessions dropped by -kill-every.
var errChaos = errors.New("dropped by kill timer")

func main() {
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(config.LogLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q\n", config.LogLevel)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger); err != nil {
		logger.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	broker := newBroker(config.Token)

	mux := http.NewServeMux()
	mux.Handle(config.Path, transport.NewGateway(broker, logger))

	ln, err := net.Listen("tcp", config.Listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if config.Advertise {
		adv := discovery.NewMDNSAdvertiser(discovery.DefaultAdvertiserConfig())
		info := serverInfo(config, ln.Addr())
		if err := adv.Advertise(info); err != nil {
			logger.Warn("mDNS announcement failed", slog.Any("error", err))
		} else {
			logger.Info("announcing via mDNS", slog.String("service", discovery.ServiceType), slog.String("name", info.InstanceName))
			defer adv.Stop()
		}
	}

	if config.KillEvery > 0 {
		go chaos(ctx, broker, config.KillEvery, logger)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving", slog.String("addr", ln.Addr().String()), slog.String("path", config.Path))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	broker.KillAll(net.ErrClosed)
	return nil
}

// newBroker builds the broker with the development routes.
func newBroker(token string) *transport.Memory {
	broker := transport.NewMemory()
	broker.Echo(session.DefaultProbeDestination, session.DefaultProbeReplyDestination)
	broker.Handle("/app/echo", func(_ string, f transport.Frame) {
		broker.Publish("/topic/echo", f.Body)
	})
	if token != "" {
		broker.SetAuthorizer(func(got string) error {
			if got != token {
				return errors.New("invalid token")
			}
			return nil
		})
	}
	return broker
}

func serverInfo(cfg Config, addr net.Addr) *discovery.ServerInfo {
	var port uint16
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = uint16(tcp.Port)
	} else if _, p, err := net.SplitHostPort(addr.String()); err == nil {
		n, _ := strconv.Atoi(p)
		port = uint16(n)
	}
	return &discovery.ServerInfo{
		InstanceName: cfg.Name,
		Port:         port,
		Scheme:       "ws",
		Path:         cfg.Path,
		Name:         cfg.Name,
		Codec:        wire.JSONCodec{}.Name(),
		Version:      discovery.ProtocolVersion,
	}
}

func chaos(ctx context.Context, broker *transport.Memory, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := broker.KillAll(errChaos); n > 0 {
				logger.Info("dropped sessions", slog.Int("count", n))
			}
		}
	}
}
