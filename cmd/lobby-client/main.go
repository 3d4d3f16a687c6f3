// Command lobby-client is an interactive session client.
//
// It connects to a lobby server over websocket or NATS, keeps the session
// alive with heartbeats and reconnects after connection loss. Subscriptions
// made in the shell survive reconnects.
//
// Usage:
//
//	lobby-client [flags]
//
// Flags:
//
//	-config string      Configuration file (.yaml, .yml or .toml)
//	-server string      Server url, overrides the config file
//	-discover string    Find the server on the LAN by name ("" for any)
//	-name string        Client name presented to the server
//	-token string       Session token
//	-save-token         Seal -token into the configured token file
//	-log-level string   Log level: debug, info, warn, error
//	-event-log string   Write session events to this .llog file
//	-no-reconnect       Disable automatic reconnect
//	-print-config       Print the effective configuration as YAML and exit
//
// Examples:
//
//	# Connect to a local development server
//	lobby-client -server ws://127.0.0.1:8470/ws -token dev
//
//	# Find the server via mDNS and capture events
//	lobby-client -discover Workshop -token dev -event-log session.llog
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lanlobby/lobby-go/cmd/lobby-client/interactive"
	"github.com/lanlobby/lobby-go/pkg/config"
	"github.com/lanlobby/lobby-go/pkg/credentials"
	"github.com/lanlobby/lobby-go/pkg/discovery"
	"github.com/lanlobby/lobby-go/pkg/session"
	"github.com/lanlobby/lobby-go/pkg/transport"
)

// Flags holds the command line.
type Flags struct {
	ConfigFile  string
	Server      string
	Discover    string
	DiscoverSet bool
	Name        string
	Token       string
	SaveToken   bool
	LogLevel    string
	EventLog    string
	NoReconnect bool
	PrintConfig bool
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file (.yaml, .yml or .toml)")
	flag.StringVar(&flags.Server, "server", "", "Server url, overrides the config file")
	flag.StringVar(&flags.Discover, "discover", "", "Find the server on the LAN by name (empty for any)")
	flag.StringVar(&flags.Name, "name", "", "Client name presented to the server")
	flag.StringVar(&flags.Token, "token", "", "Session token")
	flag.BoolVar(&flags.SaveToken, "save-token", false, "Seal -token into the configured token file")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&flags.EventLog, "event-log", "", "Write session events to this .llog file")
	flag.BoolVar(&flags.NoReconnect, "no-reconnect", false, "Disable automatic reconnect")
	flag.BoolVar(&flags.PrintConfig, "print-config", false, "Print the effective configuration as YAML and exit")
}

func main() {
	flag.Parse()
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "discover" {
			flags.DiscoverSet = true
		}
	})

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	file, err := loadFile(flags)
	if err != nil {
		return err
	}

	if flags.PrintConfig {
		return file.Encode(os.Stdout, config.FormatYAML)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if flags.DiscoverSet {
		url, err := discoverServer(ctx, flags.Discover)
		if err != nil {
			return err
		}
		file.Server.URL = url
	}

	logger, err := file.Logger(os.Stderr)
	if err != nil {
		return err
	}

	creds, err := file.CredentialSource()
	if err != nil {
		return err
	}
	if flags.SaveToken {
		store, ok := creds.(*credentials.FileStore)
		if !ok {
			return errors.New("-save-token requires credentials.token_file in the config")
		}
		if err := store.Save(flags.Token); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
		logger.Info("token saved", slog.String("path", store.Path()))
	}

	cfg, err := file.SessionConfig()
	if err != nil {
		return err
	}

	bus := session.NewEventBus()
	bus.Subscribe(func(e session.Event) {
		switch e.Type {
		case session.EventConnectionFailed:
			logger.Error("giving up on server", slog.Int("attempts", e.Attempts), slog.Any("error", e.Err))
		case session.EventReconnected:
			logger.Info("reconnected", slog.String("connection", e.ConnectionID))
		}
	})
	cfg.Events = bus

	fl, err := file.OpenEventLog(flags.EventLog, logger)
	if err != nil {
		return err
	}
	if fl != nil {
		defer fl.Close()
		cfg.EventLogger = fl
		logger.Info("capturing session events",
			slog.String("path", fl.Files()[0]),
			slog.Bool("roll", file.Log.EventRoll))
	}

	mux := transport.DefaultMux(logger)
	mux.Register("mem", loopback())

	cfg.Logger = logger

	var shell *interactive.Shell
	client, err := session.New(cfg, mux, creds)
	if err != nil {
		return err
	}
	defer client.Close()

	if stdin, err := os.Stdin.Stat(); err == nil && stdin.Mode()&os.ModeCharDevice != 0 {
		shell, err = interactive.New(client, creds)
		if err != nil {
			return err
		}
	}

	logger.Info("lobby client",
		slog.String("server", cfg.ServerURL),
		slog.String("name", cfg.Name),
		slog.Bool("auto_reconnect", cfg.AutoReconnect))

	if !client.Connect() {
		logger.Warn("initial connect failed", slog.Any("error", client.LastError()))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if shell != nil {
		go shell.Run(ctx, cancel)
	}
	<-ctx.Done()

	logger.Info("shutting down")
	return nil
}

// loadFile reads the config file, if any, and applies flag overrides.
func loadFile(f Flags) (*config.File, error) {
	file := config.Default("")
	if f.ConfigFile != "" {
		loaded, err := config.Load(f.ConfigFile)
		if err != nil {
			return nil, err
		}
		file = loaded
	}

	if f.Server != "" {
		file.Server.URL = f.Server
	}
	if f.Name != "" {
		file.Server.Name = f.Name
	}
	if f.Token != "" && !f.SaveToken {
		file.Credentials.Token = f.Token
		file.Credentials.TokenFile = ""
	}
	if f.LogLevel != "" {
		file.Log.Level = f.LogLevel
	}
	if f.NoReconnect {
		off := false
		file.Reconnect.Auto = &off
	}
	return file, nil
}

func discoverServer(ctx context.Context, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, discovery.BrowseTimeout)
	defer cancel()

	browser := discovery.NewMDNSBrowser(discovery.BrowserConfig{})
	srv, err := browser.FindServer(ctx, name)
	if err != nil {
		return "", fmt.Errorf("discover %q: %w", name, err)
	}
	url, err := srv.URL()
	if err != nil {
		return "", err
	}
	fmt.Fprintf(os.Stderr, "Found %s at %s\n", srv.DisplayName(), url)
	return url, nil
}

// loopback is an in-process server for mem:// urls. It answers heartbeat
// probes and echoes /app/echo to /topic/echo.
func loopback() *transport.Memory {
	broker := transport.NewMemory()
	broker.Echo(session.DefaultProbeDestination, session.DefaultProbeReplyDestination)
	broker.Handle("/app/echo", func(_ string, f transport.Frame) {
		broker.Publish("/topic/echo", f.Body)
	})
	// Slow the dial slightly so state changes are visible in the shell.
	broker.SetDialDelay(50 * time.Millisecond)
	return broker
}
