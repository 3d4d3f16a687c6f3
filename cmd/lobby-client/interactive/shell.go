// Package interactive provides the interactive command-line interface
// for lobby-client.
package interactive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chzyer/readline"

	"github.com/lanlobby/lobby-go/pkg/credentials"
	"github.com/lanlobby/lobby-go/pkg/session"
	"github.com/lanlobby/lobby-go/pkg/subscription"
)

// invalidator is implemented by credential stores that can drop their token.
type invalidator interface {
	Invalidate()
}

// Shell handles interactive mode for lobby-client.
type Shell struct {
	client *session.Client
	creds  credentials.Source
	out    io.Writer
	rl     *readline.Instance
}

// New creates a shell reading from the terminal.
func New(client *session.Client, creds credentials.Source) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "lobby> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	s := newShell(client, creds, rl.Stdout())
	s.rl = rl
	return s, nil
}

func newShell(client *session.Client, creds credentials.Source, out io.Writer) *Shell {
	s := &Shell{client: client, creds: creds, out: out}
	client.OnStateChange(func(t session.Transition) {
		fmt.Fprintf(s.out, "[state] %s -> %s (%s)\n", t.From, t.To, t.Reason)
	})
	return s
}

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("connect"),
		readline.PcItem("disconnect"),
		readline.PcItem("clean"),
		readline.PcItem("sub"),
		readline.PcItem("unsub"),
		readline.PcItem("send"),
		readline.PcItem("status"),
		readline.PcItem("subs"),
		readline.PcItem("reconnect", readline.PcItem("on"), readline.PcItem("off")),
		readline.PcItem("logout"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (s *Shell) Stdout() io.Writer {
	return s.out
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}

		if !s.Exec(line) {
			cancel()
			return
		}
	}
}

// Exec runs one command line. It returns false when the shell should exit.
func (s *Shell) Exec(line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()
	case "connect", "c":
		s.cmdConnect()
	case "disconnect", "d":
		s.client.Disconnect()
		fmt.Fprintln(s.out, "Disconnected")
	case "clean":
		s.client.CleanDisconnect()
		fmt.Fprintln(s.out, "Disconnected (clean)")
	case "sub":
		s.cmdSub(args)
	case "unsub":
		s.cmdUnsub(args)
	case "send":
		s.cmdSend(input, args)
	case "subs":
		s.cmdSubs()
	case "status", "st":
		s.cmdStatus()
	case "reconnect":
		s.cmdReconnect(args)
	case "logout":
		s.cmdLogout()
	case "quit", "exit", "q":
		fmt.Fprintln(s.out, "Exiting...")
		return false
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
Session Commands:
  Connection:
    connect                  - Connect to the server
    disconnect               - Close the connection (subscriptions kept)
    clean                    - Disconnect without any reconnect racing it
    reconnect on|off         - Enable or disable automatic reconnect
    logout                   - Disconnect, drop subscriptions and credentials

  Messaging:
    sub <destination> [json] - Subscribe and print messages
    unsub <destination>      - Unsubscribe
    send <destination> <body>- Send body as is
    subs                     - List subscriptions

  General:
    status                   - Show session status
    help                     - Show this help
    quit                     - Exit`)
}

func (s *Shell) cmdConnect() {
	if s.client.Connect() {
		fmt.Fprintf(s.out, "Connected (connection %s)\n", s.client.ConnectionID())
		return
	}
	if err := s.client.LastError(); err != nil {
		fmt.Fprintf(s.out, "Connect failed: %v\n", err)
	} else {
		fmt.Fprintln(s.out, "Connect failed")
	}
}

func (s *Shell) cmdSub(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: sub <destination> [json]")
		return
	}

	kind := subscription.RawKind
	if len(args) > 1 && strings.EqualFold(args[1], "json") {
		kind = subscription.JSONKind[map[string]any]()
	}

	if err := s.client.Subscribe(args[0], kind, s.printMessage); err != nil {
		fmt.Fprintf(s.out, "Subscribe failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Subscribed to %s (%s)\n", args[0], kind)
}

func (s *Shell) printMessage(msg subscription.Message) {
	ts := msg.ReceivedAt.Format("15:04:05.000")
	switch v := msg.Value.(type) {
	case []byte:
		if utf8.Valid(v) {
			fmt.Fprintf(s.out, "[%s] %s: %s\n", ts, msg.Destination, v)
		} else {
			fmt.Fprintf(s.out, "[%s] %s: %d bytes\n", ts, msg.Destination, len(v))
		}
	default:
		data, err := json.Marshal(v)
		if err != nil {
			fmt.Fprintf(s.out, "[%s] %s: %v\n", ts, msg.Destination, v)
			return
		}
		fmt.Fprintf(s.out, "[%s] %s: %s\n", ts, msg.Destination, data)
	}
}

func (s *Shell) cmdUnsub(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: unsub <destination>")
		return
	}
	if s.client.Unsubscribe(args[0]) {
		fmt.Fprintf(s.out, "Unsubscribed from %s\n", args[0])
	} else {
		fmt.Fprintf(s.out, "Not subscribed to %s\n", args[0])
	}
}

// cmdSend sends everything after the destination verbatim, spaces included.
func (s *Shell) cmdSend(input string, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "Usage: send <destination> <body>")
		return
	}
	rest := strings.TrimSpace(input[len(strings.Fields(input)[0]):])
	body := strings.TrimSpace(strings.TrimPrefix(rest, args[0]))

	if err := s.client.Send(args[0], body); err != nil {
		fmt.Fprintf(s.out, "Send failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Sent %d bytes to %s\n", len(body), args[0])
}

func (s *Shell) cmdSubs() {
	subs := s.client.Subscriptions()
	if len(subs) == 0 {
		fmt.Fprintln(s.out, "No subscriptions")
		return
	}

	bound := make(map[string]bool)
	for _, d := range s.client.BoundSubscriptions() {
		bound[d] = true
	}
	fmt.Fprintf(s.out, "Subscriptions (%d):\n", len(subs))
	for _, d := range subs {
		status := "pending"
		if bound[d] {
			status = "bound"
		}
		fmt.Fprintf(s.out, "  %-30s %s\n", d, status)
	}
}

func (s *Shell) cmdStatus() {
	fmt.Fprintln(s.out, "Session Status:")
	fmt.Fprintf(s.out, "  State:          %s\n", s.client.State())
	if id := s.client.ConnectionID(); id != "" {
		fmt.Fprintf(s.out, "  Connection:     %s\n", id)
	}
	fmt.Fprintf(s.out, "  Auto-reconnect: %v\n", s.client.AutoReconnect())
	fmt.Fprintf(s.out, "  Credentials:    %v\n", credentials.Valid(s.creds))

	if attempt := s.client.ReconnectAttempt(); attempt.Count > 0 {
		fmt.Fprintf(s.out, "  Retry:          #%d", attempt.Count)
		if attempt.NextDelay > 0 {
			fmt.Fprintf(s.out, " (next in %s)", attempt.NextDelay)
		}
		fmt.Fprintln(s.out)
	}

	if stats, ok := s.client.HeartbeatStats(); ok {
		fmt.Fprintf(s.out, "  Heartbeat:      every %s, %d failures, %d successes\n",
			stats.CurrentInterval, stats.ConsecutiveFailures, stats.ConsecutiveSuccesses)
		if stats.LastRTT >= 0 {
			fmt.Fprintf(s.out, "  Last RTT:       %s\n", stats.LastRTT.Round(time.Microsecond))
		}
	}

	if err := s.client.LastError(); err != nil {
		fmt.Fprintf(s.out, "  Last error:     %v\n", err)
	}
	fmt.Fprintf(s.out, "  Subscriptions:  %d (%d bound)\n",
		len(s.client.Subscriptions()), len(s.client.BoundSubscriptions()))
}

func (s *Shell) cmdReconnect(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(s.out, "Auto-reconnect: %v\n", s.client.AutoReconnect())
		return
	}
	switch strings.ToLower(args[0]) {
	case "on":
		s.client.SetAutoReconnect(true)
	case "off":
		s.client.SetAutoReconnect(false)
	default:
		fmt.Fprintln(s.out, "Usage: reconnect on|off")
		return
	}
	fmt.Fprintf(s.out, "Auto-reconnect: %v\n", s.client.AutoReconnect())
}

func (s *Shell) cmdLogout() {
	s.client.Logout()
	if inv, ok := s.creds.(invalidator); ok {
		inv.Invalidate()
	}
	fmt.Fprintln(s.out, "Logged out")
}
