package connection

// State represents the session lifecycle state.
type State uint8

const (
	// StateDisconnected indicates no connection and no attempt in flight.
	StateDisconnected State = iota

	// StateConnecting indicates an initial connection attempt is in progress.
	StateConnecting

	// StateConnected indicates a healthy, open connection.
	StateConnected

	// StateUnhealthy indicates an open connection whose liveness probes are
	// failing but have not yet crossed the disconnect threshold.
	StateUnhealthy

	// StateReconnecting indicates a retry cycle is active.
	StateReconnecting

	// StateFailed indicates the last attempt failed. After the retry budget
	// is exhausted it is terminal for the current credentials.
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateUnhealthy:
		return "UNHEALTHY"
	case StateReconnecting:
		return "RECONNECTING"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// IsLive reports whether the state implies an open physical connection.
// Both CONNECTED and UNHEALTHY carry traffic.
func (s State) IsLive() bool {
	return s == StateConnected || s == StateUnhealthy
}

// InFlight reports whether a connection attempt is running in this state.
func (s State) InFlight() bool {
	return s == StateConnecting || s == StateReconnecting
}
