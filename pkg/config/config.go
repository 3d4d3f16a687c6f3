package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/lanlobby/lobby-go/pkg/credentials"
	"github.com/lanlobby/lobby-go/pkg/log"
	"github.com/lanlobby/lobby-go/pkg/session"
	"github.com/lanlobby/lobby-go/pkg/transport"
	"github.com/lanlobby/lobby-go/pkg/wire"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ErrUnknownFormat is returned for file extensions other than .yaml, .yml
// and .toml.
var ErrUnknownFormat = errors.New("unknown config format")

// File is the configuration file schema.
type File struct {
	Server      Server      `yaml:"server" toml:"server"`
	Heartbeat   Heartbeat   `yaml:"heartbeat" toml:"heartbeat"`
	Reconnect   Reconnect   `yaml:"reconnect" toml:"reconnect"`
	Credentials Credentials `yaml:"credentials" toml:"credentials"`
	Log         Log         `yaml:"log" toml:"log"`
}

// Server configures the connection.
type Server struct {
	URL            string `yaml:"url" toml:"url"`
	Name           string `yaml:"name" toml:"name"`
	ConnectTimeout string `yaml:"connect_timeout" toml:"connect_timeout"`
	Codec          string `yaml:"codec" toml:"codec"`
	MaxMessageSize int64  `yaml:"max_message_size" toml:"max_message_size"`
	TLS            TLS    `yaml:"tls" toml:"tls"`
}

// TLS mirrors transport.TLSConfig.
type TLS struct {
	CAFile             string `yaml:"ca_file" toml:"ca_file"`
	CertFile           string `yaml:"cert_file" toml:"cert_file"`
	KeyFile            string `yaml:"key_file" toml:"key_file"`
	ServerName         string `yaml:"server_name" toml:"server_name"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" toml:"insecure_skip_verify"`
}

// Heartbeat configures liveness probing.
type Heartbeat struct {
	Disabled              bool   `yaml:"disabled" toml:"disabled"`
	Interval              string `yaml:"interval" toml:"interval"`
	MinInterval           string `yaml:"min_interval" toml:"min_interval"`
	MaxInterval           string `yaml:"max_interval" toml:"max_interval"`
	HealthCheckInterval   string `yaml:"health_check_interval" toml:"health_check_interval"`
	ResponseTimeout       string `yaml:"response_timeout" toml:"response_timeout"`
	FailureThreshold      int    `yaml:"failure_threshold" toml:"failure_threshold"`
	SuccessThreshold      int    `yaml:"success_threshold" toml:"success_threshold"`
	Adaptive              *bool  `yaml:"adaptive" toml:"adaptive"`
	ProbeDestination      string `yaml:"probe_destination" toml:"probe_destination"`
	ProbeReplyDestination string `yaml:"probe_reply_destination" toml:"probe_reply_destination"`
}

// Reconnect configures the retry cycle.
type Reconnect struct {
	Auto         *bool   `yaml:"auto" toml:"auto"`
	InitialDelay string  `yaml:"initial_delay" toml:"initial_delay"`
	MaxDelay     string  `yaml:"max_delay" toml:"max_delay"`
	MaxAttempts  int     `yaml:"max_attempts" toml:"max_attempts"`
	Jitter       float64 `yaml:"jitter" toml:"jitter"`
}

// Credentials selects the token source. Token wins over TokenFile.
type Credentials struct {
	Token     string `yaml:"token" toml:"token"`
	TokenFile string `yaml:"token_file" toml:"token_file"`

	// SecretEnv names the environment variable holding the token file
	// secret.
	SecretEnv string `yaml:"secret_env" toml:"secret_env"`
}

// Log configures logging.
type Log struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`

	// EventFile is a session event capture file (.llog).
	EventFile string `yaml:"event_file" toml:"event_file"`

	// EventRoll starts a new capture file for every published connection.
	EventRoll bool `yaml:"event_roll" toml:"event_roll"`

	// EventMaxSize starts a new capture file once the current one holds
	// this many bytes. Zero means no limit.
	EventMaxSize int64 `yaml:"event_max_size" toml:"event_max_size"`
}

// DefaultSecretEnv is used when Credentials.SecretEnv is empty.
const DefaultSecretEnv = "LOBBY_TOKEN_SECRET"

// Load reads a configuration file, choosing the syntax by extension.
func Load(path string) (*File, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	f, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// FormatOf returns the format for a file name.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
}

// Parse decodes data in the given format. Unknown keys are errors.
func Parse(data []byte, format Format) (*File, error) {
	f := &File{}
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("YAML parse error: %w", err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), f)
		if err != nil {
			return nil, fmt.Errorf("TOML parse error: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("TOML parse error: unknown key %q", undecoded[0].String())
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return f, nil
}

// Encode writes f in the given format.
func (f *File) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOML:
		return toml.NewEncoder(w).Encode(f)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Default returns a File describing session.DefaultConfig for url.
func Default(url string) *File {
	def := session.DefaultConfig(url)
	adaptive := def.Heartbeat.Adaptive
	auto := def.AutoReconnect
	return &File{
		Server: Server{
			URL:            url,
			ConnectTimeout: def.ConnectTimeout.String(),
			Codec:          def.Codec.Name(),
		},
		Heartbeat: Heartbeat{
			Interval:              def.Heartbeat.Interval.String(),
			MinInterval:           def.Heartbeat.MinInterval.String(),
			MaxInterval:           def.Heartbeat.MaxInterval.String(),
			HealthCheckInterval:   def.Heartbeat.HealthCheckInterval.String(),
			ResponseTimeout:       def.Heartbeat.ResponseTimeout.String(),
			FailureThreshold:      def.Heartbeat.FailureThreshold,
			SuccessThreshold:      def.Heartbeat.SuccessThreshold,
			Adaptive:              &adaptive,
			ProbeDestination:      def.ProbeDestination,
			ProbeReplyDestination: def.ProbeReplyDestination,
		},
		Reconnect: Reconnect{
			Auto:         &auto,
			InitialDelay: def.Reconnect.Backoff.Initial.String(),
			MaxDelay:     def.Reconnect.Backoff.Max.String(),
			MaxAttempts:  def.Reconnect.MaxAttempts,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// SessionConfig applies the file on top of session.DefaultConfig.
func (f *File) SessionConfig() (session.Config, error) {
	cfg := session.DefaultConfig(f.Server.URL)
	cfg.Name = f.Server.Name
	cfg.MaxMessageSize = f.Server.MaxMessageSize

	var err error
	set := func(dst *time.Duration, value, key string) {
		if err != nil || value == "" {
			return
		}
		d, perr := time.ParseDuration(strings.TrimSpace(value))
		if perr != nil {
			err = fmt.Errorf("parse %s: %w", key, perr)
			return
		}
		if d < 0 {
			err = fmt.Errorf("parse %s: negative duration", key)
			return
		}
		*dst = d
	}

	set(&cfg.ConnectTimeout, f.Server.ConnectTimeout, "server.connect_timeout")

	hb := f.Heartbeat
	set(&cfg.Heartbeat.Interval, hb.Interval, "heartbeat.interval")
	set(&cfg.Heartbeat.MinInterval, hb.MinInterval, "heartbeat.min_interval")
	set(&cfg.Heartbeat.MaxInterval, hb.MaxInterval, "heartbeat.max_interval")
	set(&cfg.Heartbeat.HealthCheckInterval, hb.HealthCheckInterval, "heartbeat.health_check_interval")
	set(&cfg.Heartbeat.ResponseTimeout, hb.ResponseTimeout, "heartbeat.response_timeout")

	rc := f.Reconnect
	set(&cfg.Reconnect.Backoff.Initial, rc.InitialDelay, "reconnect.initial_delay")
	set(&cfg.Reconnect.Backoff.Max, rc.MaxDelay, "reconnect.max_delay")
	if err != nil {
		return session.Config{}, err
	}

	if hb.FailureThreshold > 0 {
		cfg.Heartbeat.FailureThreshold = hb.FailureThreshold
	}
	if hb.SuccessThreshold > 0 {
		cfg.Heartbeat.SuccessThreshold = hb.SuccessThreshold
	}
	if hb.Adaptive != nil {
		cfg.Heartbeat.Adaptive = *hb.Adaptive
	}
	cfg.DisableHeartbeat = hb.Disabled
	if hb.ProbeDestination != "" {
		cfg.ProbeDestination = hb.ProbeDestination
	}
	if hb.ProbeReplyDestination != "" {
		cfg.ProbeReplyDestination = hb.ProbeReplyDestination
	}

	if rc.Auto != nil {
		cfg.AutoReconnect = *rc.Auto
	}
	if rc.MaxAttempts > 0 {
		cfg.Reconnect.MaxAttempts = rc.MaxAttempts
	}
	if rc.Jitter < 0 || rc.Jitter > 1 {
		return session.Config{}, fmt.Errorf("reconnect.jitter must be within [0, 1], got %v", rc.Jitter)
	}
	cfg.Reconnect.Backoff.Jitter = rc.Jitter

	codec, err := wire.CodecByName(f.Server.Codec)
	if err != nil {
		return session.Config{}, fmt.Errorf("server.codec: %w", err)
	}
	cfg.Codec = codec

	tlsConfig, err := transport.NewClientTLSConfig(transport.TLSConfig{
		CAFile:             f.Server.TLS.CAFile,
		CertFile:           f.Server.TLS.CertFile,
		KeyFile:            f.Server.TLS.KeyFile,
		ServerName:         f.Server.TLS.ServerName,
		InsecureSkipVerify: f.Server.TLS.InsecureSkipVerify,
	})
	if err != nil {
		return session.Config{}, fmt.Errorf("server.tls: %w", err)
	}
	cfg.TLS = tlsConfig

	if err := cfg.Validate(); err != nil {
		return session.Config{}, err
	}
	return cfg, nil
}

// CredentialSource returns the configured token source. Without token or
// token file it returns an empty MemoryStore the caller can fill.
func (f *File) CredentialSource() (credentials.Source, error) {
	c := f.Credentials
	switch {
	case c.Token != "":
		return credentials.Static(c.Token), nil
	case c.TokenFile != "":
		env := c.SecretEnv
		if env == "" {
			env = DefaultSecretEnv
		}
		secret := os.Getenv(env)
		if secret == "" {
			return nil, fmt.Errorf("credentials.token_file requires the %s environment variable", env)
		}
		return credentials.NewFileStore(c.TokenFile, []byte(secret), f.Server.URL), nil
	default:
		return credentials.NewMemoryStore(""), nil
	}
}

// Logger builds an slog.Logger writing to w.
func (f *File) Logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if f.Log.Level != "" {
		if err := level.UnmarshalText([]byte(f.Log.Level)); err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(f.Log.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log.format: unknown format %q", f.Log.Format)
	}
}

// OpenEventLog opens the session event capture file. path overrides
// log.event_file; with neither set it returns nil. Write failures are
// reported to errLog.
func (f *File) OpenEventLog(path string, errLog *slog.Logger) (*log.FileLogger, error) {
	if path == "" {
		path = f.Log.EventFile
	}
	if path == "" {
		return nil, nil
	}
	if f.Log.EventMaxSize < 0 {
		return nil, fmt.Errorf("log.event_max_size: must not be negative")
	}

	opts := []log.FileOption{log.WithErrorLog(errLog)}
	if f.Log.EventRoll {
		opts = append(opts, log.WithRollPerConnection())
	}
	if f.Log.EventMaxSize > 0 {
		opts = append(opts, log.WithMaxSize(f.Log.EventMaxSize))
	}
	fl, err := log.NewFileLogger(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return fl, nil
}
