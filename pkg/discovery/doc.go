// Package discovery finds lobby servers on the local network with
// mDNS/DNS-SD.
//
// Servers announce a _lobby._tcp service. The instance name is the server's
// display name. TXT records carry what a client needs to build the session
// url:
//
//	scheme  ws, wss or nats (required)
//	path    url path, e.g. /ws (optional, default /)
//	name    display name (optional)
//	codec   payload codec, json or cbor (optional)
//	ver     protocol version (optional)
//
// Browse aggregates the addresses a server announces on several interfaces
// into one Server. FindServer returns the first server matching a name.
package discovery
