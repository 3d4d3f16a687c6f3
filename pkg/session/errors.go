package session

import "errors"

// Session errors.
var (
	ErrInvalidConfig      = errors.New("invalid session configuration")
	ErrInvalidDestination = errors.New("invalid destination")
	ErrNilHandler         = errors.New("nil handler")
	ErrNotConnected       = errors.New("not connected")
	ErrSendFailed         = errors.New("send failed")
	ErrClosed             = errors.New("session client closed")
)
