package wire

// Command identifies the kind of a frame.
type Command uint8

const (
	// CmdSend publishes a body to a destination.
	// Direction: client to server
	CmdSend Command = 1

	// CmdSubscribe binds a subscription ID to a destination.
	// Direction: client to server
	CmdSubscribe Command = 2

	// CmdUnsubscribe removes a subscription by ID.
	// Direction: client to server
	CmdUnsubscribe Command = 3

	// CmdMessage delivers a body for a subscription.
	// Direction: server to client
	CmdMessage Command = 4

	// CmdError reports a server-side failure. The connection may be closed
	// afterwards.
	// Direction: server to client
	CmdError Command = 5
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdSend:
		return "SEND"
	case CmdSubscribe:
		return "SUBSCRIBE"
	case CmdUnsubscribe:
		return "UNSUBSCRIBE"
	case CmdMessage:
		return "MESSAGE"
	case CmdError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// IsValid returns true if c is a known command.
func (c Command) IsValid() bool {
	return c >= CmdSend && c <= CmdError
}

// FromClient returns true for commands a client may send.
func (c Command) FromClient() bool {
	return c >= CmdSend && c <= CmdUnsubscribe
}
