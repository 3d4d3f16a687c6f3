// Package transport provides the connections the session client runs on.
//
// A Transport opens a Conn: one physical, bidirectional publish/subscribe
// connection. Conns know nothing about reconnecting, heartbeats or
// subscription intent; those belong to package session.
//
// # Implementations
//
//	┌──────────────┬──────────────┬─────────────────────────────────┐
//	│ Transport    │ Schemes      │ Wire                            │
//	├──────────────┼──────────────┼─────────────────────────────────┤
//	│ WebSocket    │ ws, wss      │ CBOR frames (package wire)      │
//	│ NATS         │ nats, tls    │ NATS subjects, raw bodies       │
//	│ Memory       │ any          │ in-process broker               │
//	└──────────────┴──────────────┴─────────────────────────────────┘
//
// Mux picks an implementation by url scheme. Gateway exposes a Memory
// broker to websocket clients, which is what cmd/lobby-devserver runs.
//
// # Connection Loss
//
// A Conn lost without a local Close reports the cause once through
// DialOptions.OnClose. IsExpected classifies such causes: network failures
// and server rejections are expected, anything else is a bug.
package transport
