// Package log records what a session client did and why: connection
// transitions, heartbeat probes, application traffic and errors. It is
// separate from operational logging (slog); the event trace is
// machine-readable and meant for post-mortem analysis of connection problems.
//
// # Basic Usage
//
//	// During development, print events through slog.
//	cfg.EventLogger = log.NewSlogAdapter(slog.Default())
//
//	// In production, keep one file per published connection.
//	fl, _ := log.NewFileLogger("session.llog",
//	    log.WithRollPerConnection(),
//	    log.WithErrorLog(slog.Default()))
//	cfg.EventLogger = log.Tee(log.NewSlogAdapter(slog.Default()), fl)
//
// # Epochs
//
// Every event carries the session epoch it was recorded in. A connect
// attempt starts an epoch and, if it succeeds, the connection lives and dies
// inside it; the transition back to DISCONNECTED belongs to the connection
// it ends. Reader.NextSegment groups a trace by epoch, one connect attempt
// per segment.
//
// # File Format
//
// Log files are CBOR sequences with the .llog extension: events encoded back
// to back with integer map keys and no framing, so rolled files can be read
// as one stream with Open. The lobby-log CLI views, filters and summarizes
// them.
package log
