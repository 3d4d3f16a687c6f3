// Package commands implements the lobby-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/lanlobby/lobby-go/pkg/log"
)

// RunView writes every event matching filter to w. Several paths are read
// as one stream, oldest first, the way a rolling file logger wrote them.
func RunView(paths []string, filter log.Filter, w io.Writer) error {
	reader, err := log.Open(filter, paths...)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(w, event)
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp #epoch [conn:id] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	connID := shortenConnID(event.ConnectionID)
	if connID == "" {
		connID = "-"
	}

	var typeLabel string
	switch {
	case event.Message != nil:
		typeLabel = event.Message.Command.String()
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Control != nil:
		typeLabel = event.Control.Type.String()
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	layerStr := event.Layer.String()
	if event.Category == log.CategoryControl {
		layerStr = "CTRL"
	}

	fmt.Fprintf(w, "%s #%d [conn:%s] %-3s %s %s\n", ts, event.Epoch, connID, event.Direction.String(), layerStr, typeLabel)

	switch {
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Control != nil:
		formatControlDetails(w, event.Control)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	fmt.Fprintf(w, "  Destination: %s\n", msg.Destination)
	fmt.Fprintf(w, "  Size: %d bytes\n", msg.Size)
	if len(msg.Body) == 0 {
		return
	}
	if utf8.Valid(msg.Body) {
		fmt.Fprintf(w, "  Body: %s", msg.Body)
	} else {
		fmt.Fprintf(w, "  Body: %s", hex.EncodeToString(msg.Body))
	}
	if msg.Truncated {
		fmt.Fprint(w, " (truncated)")
	}
	fmt.Fprintln(w)
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatControlDetails(w io.Writer, ctrl *log.ControlEvent) {
	if ctrl.Seq != 0 {
		fmt.Fprintf(w, "  Seq: %d\n", ctrl.Seq)
	}
	if ctrl.RTT != nil {
		fmt.Fprintf(w, "  RTT: %s\n", ctrl.RTT.String())
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if !err.Expected {
		fmt.Fprintln(w, "  Unexpected: yes")
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}
