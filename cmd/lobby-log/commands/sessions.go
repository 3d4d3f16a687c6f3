package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/lanlobby/lobby-go/pkg/log"
)

// SessionSummary describes one epoch of a session log.
type SessionSummary struct {
	Epoch        uint64
	ConnectionID string
	Events       int
	Start        time.Time
	End          time.Time
	FinalState   string
	Messages     int
	Errors       int
}

// CollectSessions groups the events matching filter by epoch.
func CollectSessions(paths []string, filter log.Filter) ([]SessionSummary, error) {
	reader, err := log.Open(filter, paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var out []SessionSummary
	for {
		seg, err := reader.NextSegment()
		if len(seg.Events) > 0 {
			out = append(out, summarize(seg))
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("failed to read event: %w", err)
		}
	}
}

func summarize(seg log.Segment) SessionSummary {
	s := SessionSummary{
		Epoch:        seg.Epoch,
		ConnectionID: seg.ConnectionID,
		Events:       len(seg.Events),
		Start:        seg.Start(),
		End:          seg.End(),
		FinalState:   seg.FinalState(),
	}
	for _, e := range seg.Events {
		switch {
		case e.Message != nil:
			s.Messages++
		case e.Error != nil:
			s.Errors++
		}
	}
	return s
}

// RunSessions prints one line per epoch.
func RunSessions(paths []string, filter log.Filter, w io.Writer) error {
	sessions, err := CollectSessions(paths, filter)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%-6s %-10s %-27s %-10s %6s %5s %4s  %s\n",
		"EPOCH", "CONN", "START", "DURATION", "EVENTS", "MSGS", "ERRS", "FINAL")
	for _, s := range sessions {
		conn := shortenConnID(s.ConnectionID)
		if conn == "" {
			conn = "-"
		}
		final := s.FinalState
		if final == "" {
			final = "-"
		}
		fmt.Fprintf(w, "%-6d %-10s %-27s %-10s %6d %5d %4d  %s\n",
			s.Epoch, conn,
			s.Start.UTC().Format("2006-01-02T15:04:05.000Z"),
			s.End.Sub(s.Start).Round(time.Millisecond),
			s.Events, s.Messages, s.Errors, final)
	}
	return nil
}
