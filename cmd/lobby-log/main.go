// Command lobby-log views and analyzes session log files.
//
// Log files are written by lobby-client with the -event-log flag or the
// log.event_file config setting.
//
// Usage:
//
//	lobby-log <command> [flags] <file.llog>...
//
// Examples:
//
//	# View all events
//	lobby-log view client.llog
//
//	# View only state changes
//	lobby-log view --category state client.llog
//
//	# Keep one connection's events
//	lobby-log filter --conn-id abc12345-... -o one.llog client.llog
//
//	# One line per connect attempt, across rolled files
//	lobby-log sessions client.llog client.1.llog
//
//	# Every drop of a live connection
//	lobby-log view --from connected --to disconnected client.llog
//
//	# Show statistics
//	lobby-log stats client.llog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/lanlobby/lobby-go/cmd/lobby-log/commands"
)

const usage = `lobby-log - Session Log Analyzer

Usage:
  lobby-log <command> [flags] <file.llog>...

Several files are read as one log, in the order given.

Commands:
  view      View log file in human-readable format
  filter    Filter log file and write to new file
  sessions  Summarize the log per connection epoch
  stats     Show statistics about the log file

Use "lobby-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "filter":
		runFilter(args)
	case "sessions":
		runSessions(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// filterFlags registers the shared filter flags on fs.
func filterFlags(fs *flag.FlagSet) *commands.FilterOptions {
	opts := &commands.FilterOptions{}
	fs.StringVar(&opts.ConnID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&opts.Epoch, "epoch", "", "Filter by session epoch")
	fs.StringVar(&opts.Server, "server", "", "Filter by server url")
	fs.StringVar(&opts.Destination, "destination", "", "Filter messages by destination pattern (e.g. /topic/room.*)")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, session, application)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (message, control, state, error)")
	fs.StringVar(&opts.Entity, "entity", "", "Filter state changes by entity (connection, heartbeat, reconnect)")
	fs.StringVar(&opts.From, "from", "", "Keep connection transitions leaving this state")
	fs.StringVar(&opts.To, "to", "", "Keep connection transitions entering this state")
	return opts
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `lobby-log view - View log file in human-readable format

Usage:
  lobby-log view [flags] <file.llog>...

Flags:
`)
		fs.PrintDefaults()
	}
	opts := filterFlags(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	filter, err := commands.BuildFilter(*opts)
	if err != nil {
		fail(err)
	}
	if err := commands.RunView(fs.Args(), filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `lobby-log filter - Filter log file and write to new file

Usage:
  lobby-log filter [flags] <file.llog>...

Flags:
`)
		fs.PrintDefaults()
	}
	output := fs.String("o", "", "Output file (required)")
	opts := filterFlags(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	filter, err := commands.BuildFilter(*opts)
	if err != nil {
		fail(err)
	}
	n, err := commands.RunFilter(fs.Args(), *output, filter)
	if err != nil {
		fail(err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %d events to %s\n", n, *output)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `lobby-log stats - Show statistics about the log file

Usage:
  lobby-log stats <file.llog>...

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	if err := commands.RunStats(fs.Args(), os.Stdout); err != nil {
		fail(err)
	}
}

func runSessions(args []string) {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `lobby-log sessions - Summarize the log per connection epoch

Each connect attempt starts an epoch; a successful one also holds the
connection's whole life, up to and including its DISCONNECTED transition.

Usage:
  lobby-log sessions [flags] <file.llog>...

Flags:
`)
		fs.PrintDefaults()
	}
	opts := filterFlags(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	filter, err := commands.BuildFilter(*opts)
	if err != nil {
		fail(err)
	}
	if err := commands.RunSessions(fs.Args(), filter, os.Stdout); err != nil {
		fail(err)
	}
}
