package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSConfig holds client TLS settings for wss:// and NATS tls:// servers.
type TLSConfig struct {
	// CAFile is a PEM bundle added to the trusted roots. Empty uses only the
	// system pool.
	CAFile string

	// CertFile and KeyFile configure an optional client certificate.
	CertFile string
	KeyFile  string

	// ServerName overrides the name used for SNI and verification.
	ServerName string

	// InsecureSkipVerify disables certificate verification.
	// Only for testing - never use in production!
	InsecureSkipVerify bool
}

// IsZero reports whether no TLS option is set.
func (c TLSConfig) IsZero() bool {
	return c == TLSConfig{}
}

// NewClientTLSConfig builds a *tls.Config from cfg. It returns nil for a
// zero config so transports fall back to their defaults.
func NewClientTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	if cfg.IsZero() {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		// TLS 1.2 minimum
		MinVersion: tls.VersionTLS12,

		ServerName: cfg.ServerName,

		// For testing only
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}

		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.CertFile != "" || cfg.KeyFile != "" {
		if cfg.CertFile == "" || cfg.KeyFile == "" {
			return nil, fmt.Errorf("client certificate requires both cert and key file")
		}
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}
