// Package session implements the resilient real-time session client.
//
// A Client owns one logical channel to the lobby server. Physical
// connections come and go underneath it: the client dials through a
// transport.Transport, replays the desired subscriptions held in a
// subscription.Registry, proves liveness with a heartbeat.Controller and
// retries lost connections through a connection.Scheduler.
//
// # State Machine
//
//	DISCONNECTED --Connect ok--> CONNECTED <--probe ok-- UNHEALTHY
//	     |                          |  \--probe failed-->    |
//	     |                          |                        |
//	Connect failed          lost / threshold reached   threshold reached
//	     v                          v                        |
//	  FAILED --auto-reconnect--> RECONNECTING <--------------+
//	     ^                          |
//	     +---- budget exhausted ----+
//
// Disconnect, CleanDisconnect and Logout lead to DISCONNECTED from any
// state. FAILED after an exhausted budget is left only by a new Connect,
// usually after the session owner supplied fresh credentials in reaction to
// EventConnectionFailed.
//
// # Concurrency
//
// All transitions go through a single mutex. Network I/O never happens while
// it is held. Every physical connection gets a new epoch; heartbeat verdicts,
// close notifications and connect attempts belonging to an older epoch are
// discarded. Inbound messages are handed to a Dispatcher so handlers never
// run on the transport's goroutine. State listeners and EventSink
// publications run on a separate notification goroutine in transition order.
package session
