// Package wire defines the CBOR envelope used by stream transports and the
// payload codecs used by the session client.
//
// Frames use CBOR (RFC 8949) with integer keys. One frame is carried per
// transport message, so no length prefix is needed.
//
// # Commands
//
// Clients send SEND, SUBSCRIBE and UNSUBSCRIBE. Servers answer with MESSAGE
// for every subscription matching a destination and ERROR for rejected
// frames.
//
// # Probes
//
// Heartbeat probes are ordinary SEND frames whose body is a CBOR Probe. The
// server echoes the probe to the client's reply destination, where the
// session client matches it by sequence number.
//
// # Payloads
//
// Application payloads are encoded by a Codec (JSON by default). Byte
// slices and strings bypass the codec.
package wire
