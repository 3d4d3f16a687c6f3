package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lanlobby/lobby-go/pkg/log"
)

// ParseLayerFlag parses a layer name (transport, session, application).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "session":
		return log.LayerSession, nil
	case "application", "app":
		return log.LayerApplication, nil
	default:
		return 0, fmt.Errorf("invalid layer %q (use transport, session, application)", s)
	}
}

// ParseDirectionFlag parses a direction (in, out).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction %q (use in, out)", s)
	}
}

// ParseCategoryFlag parses a category (message, control, state, error).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "control":
		return log.CategoryControl, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category %q (use message, control, state, error)", s)
	}
}

// ParseEntityFlag parses a state entity (connection, heartbeat, reconnect).
func ParseEntityFlag(s string) (log.StateEntity, error) {
	switch strings.ToLower(s) {
	case "connection", "conn":
		return log.StateEntityConnection, nil
	case "heartbeat":
		return log.StateEntityHeartbeat, nil
	case "reconnect":
		return log.StateEntityReconnect, nil
	default:
		return 0, fmt.Errorf("invalid entity %q (use connection, heartbeat, reconnect)", s)
	}
}

// FilterOptions holds the string form of filter flags.
type FilterOptions struct {
	ConnID      string
	Epoch       string
	Server      string
	Destination string
	TimeStart   string
	TimeEnd     string
	Layer       string
	Direction   string
	Category    string
	Entity      string
	From        string
	To          string
}

// BuildFilter converts flag values to a log.Filter.
func BuildFilter(opts FilterOptions) (log.Filter, error) {
	filter := log.Filter{
		ConnectionID: opts.ConnID,
		Server:       opts.Server,
		Destination:  opts.Destination,
		From:         strings.ToUpper(opts.From),
		To:           strings.ToUpper(opts.To),
	}

	if opts.Epoch != "" {
		n, err := strconv.ParseUint(opts.Epoch, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid epoch %q: %w", opts.Epoch, err)
		}
		filter.Epoch = &n
	}

	if opts.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeStart)
		if err != nil {
			return filter, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}
	if opts.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeEnd)
		if err != nil {
			return filter, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}
	if opts.Layer != "" {
		l, err := ParseLayerFlag(opts.Layer)
		if err != nil {
			return filter, err
		}
		filter.Layer = &l
	}
	if opts.Direction != "" {
		d, err := ParseDirectionFlag(opts.Direction)
		if err != nil {
			return filter, err
		}
		filter.Direction = &d
	}
	if opts.Category != "" {
		c, err := ParseCategoryFlag(opts.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}
	if opts.Entity != "" {
		e, err := ParseEntityFlag(opts.Entity)
		if err != nil {
			return filter, err
		}
		filter.Entity = &e
	}
	return filter, filter.Validate()
}
