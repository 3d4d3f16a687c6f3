package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/lanlobby/lobby-go/pkg/log"
)

// Stats holds statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Connections       map[string]*ConnectionStats
	Destinations      map[string]int

	// Transitions counts connection state changes by new state.
	Transitions map[string]int

	Errors           int
	UnexpectedErrors int
	Probes           int
	ProbeAcks        int
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Server    string
	MaxRTT    time.Duration
}

// CollectStats reads every event in paths.
func CollectStats(paths ...string) (*Stats, error) {
	reader, err := log.Open(log.Filter{}, paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Connections:       make(map[string]*ConnectionStats),
		Destinations:      make(map[string]int),
		Transitions:       make(map[string]int),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
	return stats, nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	var conn *ConnectionStats
	if event.ConnectionID != "" {
		var ok bool
		conn, ok = s.Connections[event.ConnectionID]
		if !ok {
			conn = &ConnectionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
			s.Connections[event.ConnectionID] = conn
		}
		conn.Events++
		if event.Timestamp.After(conn.LastSeen) {
			conn.LastSeen = event.Timestamp
		}
		if conn.Server == "" {
			conn.Server = event.Server
		}
	}

	switch {
	case event.Message != nil:
		s.Destinations[event.Message.Destination]++
	case event.StateChange != nil:
		if event.StateChange.Entity == log.StateEntityConnection {
			s.Transitions[event.StateChange.NewState]++
		}
	case event.Control != nil:
		switch event.Control.Type {
		case log.ControlProbe:
			s.Probes++
		case log.ControlProbeAck:
			s.ProbeAcks++
			if conn != nil && event.Control.RTT != nil && *event.Control.RTT > conn.MaxRTT {
				conn.MaxRTT = *event.Control.RTT
			}
		}
	case event.Error != nil:
		s.Errors++
		if !event.Error.Expected {
			s.UnexpectedErrors++
		}
	}
}

// RunStats analyzes the log files and prints statistics.
func RunStats(paths []string, w io.Writer) error {
	stats, err := CollectStats(paths...)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Session Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerSession, log.LayerApplication} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Transitions) > 0 {
		fmt.Fprintln(w, "State Transitions:")
		for _, state := range sortedKeys(stats.Transitions) {
			fmt.Fprintf(w, "  -> %-14s %d\n", state, stats.Transitions[state])
		}
		fmt.Fprintln(w)
	}

	if stats.Probes > 0 {
		fmt.Fprintf(w, "Heartbeat: %d probes, %d acks\n", stats.Probes, stats.ProbeAcks)
		fmt.Fprintln(w)
	}

	if len(stats.Destinations) > 0 {
		fmt.Fprintln(w, "Messages by Destination:")
		for _, dest := range sortedKeys(stats.Destinations) {
			fmt.Fprintf(w, "  %s: %d\n", dest, stats.Destinations[dest])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenConnID(c.id), c.stats.Events, duration)
			if c.stats.Server != "" {
				fmt.Fprintf(w, "           Server: %s\n", c.stats.Server)
			}
			if c.stats.MaxRTT > 0 {
				fmt.Fprintf(w, "           Max RTT: %s\n", c.stats.MaxRTT)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d (%d unexpected)\n", stats.Errors, stats.UnexpectedErrors)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
