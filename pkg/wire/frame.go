package wire

import (
	"errors"
	"fmt"
)

// CBOR map keys for frame encoding.
const (
	KeyCommand        = 1
	KeyDestination    = 2
	KeySubscriptionID = 3
	KeyHeaders        = 4
	KeyBody           = 5
	KeyMessage        = 6
)

// Frame errors.
var (
	ErrInvalidFrame   = errors.New("invalid frame")
	ErrUnknownCommand = errors.New("unknown command")
)

// Frame is the envelope exchanged over stream transports.
//
// CBOR encoding:
//
//	{
//	  1: command,          // uint8
//	  2: destination,      // string
//	  3: subscriptionId,   // string (SUBSCRIBE, UNSUBSCRIBE, MESSAGE)
//	  4: headers,          // map[string]string, optional
//	  5: body,             // bytes, optional
//	  6: message           // string (ERROR)
//	}
type Frame struct {
	Command        Command           `cbor:"1,keyasint"`
	Destination    string            `cbor:"2,keyasint,omitempty"`
	SubscriptionID string            `cbor:"3,keyasint,omitempty"`
	Headers        map[string]string `cbor:"4,keyasint,omitempty"`
	Body           []byte            `cbor:"5,keyasint,omitempty"`
	Message        string            `cbor:"6,keyasint,omitempty"`
}

// Validate checks the fields required by the frame's command.
func (f *Frame) Validate() error {
	switch f.Command {
	case CmdSend:
		if f.Destination == "" {
			return fmt.Errorf("%w: SEND without destination", ErrInvalidFrame)
		}
	case CmdSubscribe:
		if f.Destination == "" || f.SubscriptionID == "" {
			return fmt.Errorf("%w: SUBSCRIBE requires destination and subscription id", ErrInvalidFrame)
		}
	case CmdUnsubscribe:
		if f.SubscriptionID == "" {
			return fmt.Errorf("%w: UNSUBSCRIBE without subscription id", ErrInvalidFrame)
		}
	case CmdMessage:
		if f.Destination == "" {
			return fmt.Errorf("%w: MESSAGE without destination", ErrInvalidFrame)
		}
	case CmdError:
	default:
		return fmt.Errorf("%w: %d", ErrUnknownCommand, f.Command)
	}
	return nil
}

// String returns a short description for logs.
func (f *Frame) String() string {
	switch f.Command {
	case CmdError:
		return fmt.Sprintf("ERROR %q", f.Message)
	case CmdUnsubscribe:
		return fmt.Sprintf("UNSUBSCRIBE id=%s", f.SubscriptionID)
	default:
		return fmt.Sprintf("%s %s (%d bytes)", f.Command, f.Destination, len(f.Body))
	}
}

// Send builds a SEND frame.
func Send(destination string, body []byte) *Frame {
	return &Frame{Command: CmdSend, Destination: destination, Body: body}
}

// Subscribe builds a SUBSCRIBE frame.
func Subscribe(id, destination string) *Frame {
	return &Frame{Command: CmdSubscribe, SubscriptionID: id, Destination: destination}
}

// Unsubscribe builds an UNSUBSCRIBE frame.
func Unsubscribe(id string) *Frame {
	return &Frame{Command: CmdUnsubscribe, SubscriptionID: id}
}

// Message builds a MESSAGE frame.
func Message(id, destination string, body []byte) *Frame {
	return &Frame{Command: CmdMessage, SubscriptionID: id, Destination: destination, Body: body}
}

// Error builds an ERROR frame.
func Error(msg string) *Frame {
	return &Frame{Command: CmdError, Message: msg}
}
