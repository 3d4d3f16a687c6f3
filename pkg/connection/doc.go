// Package connection provides the session lifecycle states and the reconnect
// scheduler used by the lobby session client.
//
// This package handles:
//   - The authoritative connection state enum
//   - Exponential backoff for reconnection attempts
//   - A bounded retry cycle that never runs two attempts at once
//
// # Reconnection Strategy
//
// When a connection is lost, the client retries with exponential backoff:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s
//  3. Maximum delay: 30 seconds
//  4. Give up after 5 failed retries
//  5. Reset to attempt 1 on successful reconnection
//
// After the retry budget is exhausted the cycle reports a terminal failure.
// No further automatic retry happens until the session owner supplies fresh
// credentials and connects again.
//
// # Jitter
//
// Jitter is disabled by default so that the delay sequence is deterministic.
// When enabled:
//
//	actual_delay = base_delay + random(0, base_delay * jitter)
package connection
