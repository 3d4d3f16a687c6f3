package discovery

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/lanlobby/lobby-go/pkg/version"
)

const (
	// ServiceType is the DNS-SD service type of lobby servers.
	ServiceType = "_lobby._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is used when ServerInfo.Port is zero.
	DefaultPort = 8470

	// BrowseTimeout is the default timeout for FindServer.
	BrowseTimeout = 10 * time.Second

	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63
)

// ProtocolVersion is the major protocol version announced in the ver TXT
// record.
var ProtocolVersion = int(version.MustCurrent().Major)

// TXT record keys.
const (
	TXTKeyScheme  = "scheme"
	TXTKeyPath    = "path"
	TXTKeyName    = "name"
	TXTKeyCodec   = "codec"
	TXTKeyVersion = "ver"
)

var (
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrMissingRequired     = errors.New("missing required field")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrNotFound            = errors.New("service not found")
)

// ServerInfo describes an announced server.
type ServerInfo struct {
	// InstanceName is the DNS-SD instance, usually the display name.
	InstanceName string

	Port    uint16
	Scheme  string
	Path    string
	Name    string
	Codec   string
	Version int
}

// Server is a browsed server.
type Server struct {
	InstanceName string
	Host         string
	Port         uint16

	// Addresses holds IPv4 and IPv6 addresses across interfaces.
	Addresses []string

	Scheme  string
	Path    string
	Name    string
	Codec   string
	Version int
}

// DisplayName returns Name, or the instance name if the server has none.
func (s *Server) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.InstanceName
}

// URL builds the session url from the first address. IPv4 addresses sort
// first in Addresses, so they are preferred.
func (s *Server) URL() (string, error) {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	if host == "" {
		return "", ErrNotFound
	}
	u := url.URL{
		Scheme: s.Scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(int(s.Port))),
		Path:   s.Path,
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}
