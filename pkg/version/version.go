// Package version provides protocol version parsing, comparison, and
// websocket subprotocol helpers.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Current is the protocol version implemented by this library.
const Current = "1.0"

// subprotocolPrefix is the websocket subprotocol family, e.g. "lobby/1".
const subprotocolPrefix = "lobby/"

// Version represents a parsed "major.minor" protocol version.
type Version struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return Version{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || parts[0] == "" {
		return Version{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil || parts[1] == "" {
		return Version{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return Version{Major: uint16(major), Minor: uint16(minor)}, nil
}

// MustCurrent returns Current parsed.
func MustCurrent() Version {
	v, err := Parse(Current)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as "major.minor".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible returns true if the other version has the same major version.
func (v Version) Compatible(other Version) bool {
	return v.Major == other.Major
}

// Subprotocol returns the websocket subprotocol for a major version:
// "lobby/N".
func Subprotocol(major uint16) string {
	return fmt.Sprintf("%s%d", subprotocolPrefix, major)
}

// MajorFromSubprotocol extracts the major version from a subprotocol.
func MajorFromSubprotocol(proto string) (uint16, error) {
	if !strings.HasPrefix(proto, subprotocolPrefix) {
		return 0, fmt.Errorf("not a lobby subprotocol: %q", proto)
	}

	suffix := proto[len(subprotocolPrefix):]
	if suffix == "" {
		return 0, fmt.Errorf("empty major version in subprotocol: %q", proto)
	}

	major, err := strconv.ParseUint(suffix, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid major version in subprotocol %q: %w", proto, err)
	}

	return uint16(major), nil
}

// SupportedSubprotocols returns the subprotocols for all supported major
// versions. Currently only major version 1.
func SupportedSubprotocols() []string {
	return []string{Subprotocol(MustCurrent().Major)}
}

// CheckNegotiated validates the subprotocol a server selected. An empty
// selection is accepted for servers that do not negotiate.
func CheckNegotiated(proto string) error {
	if proto == "" {
		return nil
	}
	major, err := MajorFromSubprotocol(proto)
	if err != nil {
		return err
	}
	if major != MustCurrent().Major {
		return fmt.Errorf("server speaks protocol %d, client speaks %d", major, MustCurrent().Major)
	}
	return nil
}
