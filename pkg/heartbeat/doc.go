// Package heartbeat implements the liveness prober for the lobby session.
//
// A Controller runs two independent periodic tasks on the current interval:
// one sends a probe, the other checks how long ago the last probe response
// arrived. Failures are counted; once FailureThreshold consecutive failures
// are reached the connection is reported dead.
//
// # Adaptive Interval
//
// When adaptive mode is enabled:
//   - every failure below the threshold halves the interval (down to MinInterval)
//   - a success streak longer than SuccessThreshold with an RTT below half the interval
//     grows the interval by 50% (up to MaxInterval)
//
// An interval change cancels and restarts both tasks. A tick already in
// flight may still run once with the old interval; this is harmless.
//
// # Detection Delay
//
// With the defaults (10s interval, 5s response timeout, threshold 3) and
// halving on every failure, a dead link is reported within about 35 seconds.
package heartbeat
