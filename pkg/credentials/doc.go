// Package credentials provides the session token sources read by the
// session client on every connect.
//
// A Source returns ErrNoCredential when no token is available and
// ErrInvalidated after the session owner revoked the current token. Either
// error stops the client from connecting or retrying until a new token is
// set.
//
// FileStore persists a token sealed with a key derived from a local secret,
// so a restarted client can reconnect without a new login.
package credentials
