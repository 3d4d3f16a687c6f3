package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Transport errors.
var (
	ErrConnectionClosed  = errors.New("connection closed")
	ErrDialTimeout       = errors.New("dial timeout")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	ErrInvalidDest       = errors.New("invalid destination")
	ErrProtocolMismatch  = errors.New("protocol version mismatch")
)

// IsExpected reports whether err is an ordinary network failure: a closed
// connection, a timeout, a refused or reset dial, or a server rejection.
// Anything else points to a programming error in a transport or caller.
func IsExpected(err error) bool {
	if err == nil {
		return true
	}

	switch {
	case errors.Is(err, ErrConnectionClosed),
		errors.Is(err, ErrDialTimeout),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrProtocolMismatch),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// dialError normalizes errors returned while opening a connection.
func dialError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrDialTimeout, err)
	}
	return err
}
