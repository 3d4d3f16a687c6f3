package session

import (
	"log/slog"
	"time"

	"github.com/lanlobby/lobby-go/pkg/log"
	"github.com/lanlobby/lobby-go/pkg/transport"
	"github.com/lanlobby/lobby-go/pkg/wire"
)

func (c *Client) baseEvent(connID string, epoch uint64, layer log.Layer, cat log.Category, dir log.Direction, fill func(*log.Event)) log.Event {
	e := log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Epoch:        epoch,
		Direction:    dir,
		Layer:        layer,
		Category:     cat,
		Server:       c.config.ServerURL,
		Client:       c.config.Name,
	}
	fill(&e)
	return e
}

func (c *Client) recordState(t Transition) {
	c.events.Log(c.baseEvent(t.ConnectionID, t.Epoch, log.LayerSession, log.CategoryState, log.DirectionOut, func(e *log.Event) {
		e.Timestamp = t.Time
		e.StateChange = &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: t.From.String(),
			NewState: t.To.String(),
			Reason:   t.Reason,
		}
	}))
}

func (c *Client) recordInterval(l *link, old, current time.Duration) {
	c.logger.Debug("heartbeat interval changed",
		slog.String("conn_id", l.id),
		slog.Duration("from", old),
		slog.Duration("to", current))
	c.events.Log(c.baseEvent(l.id, l.epoch, log.LayerSession, log.CategoryState, log.DirectionOut, func(e *log.Event) {
		e.StateChange = &log.StateChangeEvent{
			Entity:   log.StateEntityHeartbeat,
			OldState: old.String(),
			NewState: current.String(),
		}
	}))
}

func (c *Client) recordMessage(l *link, dir log.Direction, cmd wire.Command, destination string, body []byte) {
	c.events.Log(c.baseEvent(l.id, l.epoch, log.LayerApplication, log.CategoryMessage, dir, func(e *log.Event) {
		e.Message = log.NewMessageEvent(cmd, destination, body)
	}))
}

func (c *Client) recordControl(l *link, dir log.Direction, typ log.ControlType, seq uint32, rtt *time.Duration) {
	c.events.Log(c.baseEvent(l.id, l.epoch, log.LayerSession, log.CategoryControl, dir, func(e *log.Event) {
		e.Control = &log.ControlEvent{Type: typ, Seq: seq, RTT: rtt}
	}))
}

// reportError logs a transport failure. Expected failures (network, server
// rejection) are warnings; anything else is logged as unexpected at error
// level. Both are handled the same way by the state machine.
func (c *Client) reportError(l *link, context string, err error) {
	expected := transport.IsExpected(err)
	if expected {
		c.logger.Warn(context+" failed",
			slog.String("conn_id", l.id),
			slog.Any("error", err))
	} else {
		c.logger.Error("unexpected "+context+" error",
			slog.String("conn_id", l.id),
			slog.Any("error", err))
	}

	c.events.Log(c.baseEvent(l.id, l.epoch, log.LayerTransport, log.CategoryError, log.DirectionIn, func(e *log.Event) {
		e.Error = &log.ErrorEventData{
			Layer:    log.LayerTransport,
			Message:  err.Error(),
			Expected: expected,
			Context:  context,
		}
	}))
}
