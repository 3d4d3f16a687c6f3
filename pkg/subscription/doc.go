// Package subscription holds the client's record of subscription intent.
//
// The Registry is the source of truth for which destinations the
// application wants to receive. Entries are added regardless of whether a
// connection is currently open and survive disconnects and reconnects. The
// subscriptions bound on a live connection are a mirror of the registry,
// rebuilt by ReplayAll every time a connection is established.
//
// # Kinds
//
// Every entry carries a Kind that decodes raw frame payloads before the
// handler sees them:
//
//	reg.Register("/topic/chat", subscription.JSONKind[ChatMessage](), onChat)
//	reg.Register("/user/queue/probe", subscription.RawKind, onProbe)
//
// A decode failure is reported to the caller of Entry.Deliver and the
// handler is not invoked.
package subscription
