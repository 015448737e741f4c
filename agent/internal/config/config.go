package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultRequestTimeout   = 10 * time.Second
	DefaultUserAgent        = "armastats-relay"
	DefaultAPIKeyHeader     = "X-API-Key"
	DefaultDeadLetterKey    = "relay:deadletter"
	DefaultDeadLetterSize   = 1000
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultLogMaxSizeMB     = 10
	DefaultLogMaxBackups    = 3
	DefaultLogMaxAgeDays    = 28
	DefaultHostOutputSize   = 4096
	minHostOutputSize       = 2
	deadLetterBackendNone   = "none"
	deadLetterBackendMemory = "memory"
	deadLetterBackendRedis  = "redis"
)

// Config is the top-level configuration of the relay agent.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Relay       RelayConfig       `yaml:"relay" toml:"relay"`
	Log         LogConfig         `yaml:"log" toml:"log"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics" toml:"diagnostics"`
	Host        HostConfig        `yaml:"host" toml:"host"`
}

// RelayConfig holds the settings of the command dispatcher and its worker.
type RelayConfig struct {
	// Endpoint is an optional initial backend address. The "setup" command
	// replaces it at runtime.
	Endpoint string `yaml:"endpoint" toml:"endpoint"`

	// RequestTimeout bounds every POST made by the transport.
	RequestTimeout time.Duration `yaml:"request_timeout" toml:"request_timeout"`

	// UserAgent is sent with every request.
	UserAgent string `yaml:"user_agent" toml:"user_agent"`

	// Auth configures how the relay authenticates to the backend.
	Auth AuthConfig `yaml:"auth" toml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls" toml:"tls"`

	// DeadLetter configures where dropped events are kept.
	DeadLetter DeadLetterConfig `yaml:"dead_letter" toml:"dead_letter"`
}

// AuthConfig specifies the authentication mode used against the backend.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode" toml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file" toml:"cert_file"`
	KeyFile  string `yaml:"key_file" toml:"key_file"`
	CAFile   string `yaml:"ca_file" toml:"ca_file"`

	// Header is the HTTP header name the API key is sent in.
	Header string `yaml:"header" toml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env" toml:"key_env"`

	// TokenEnv is the name of the environment variable that holds the bearer token.
	TokenEnv string `yaml:"token_env" toml:"token_env"`

	// Username is the literal basic-auth username.
	Username string `yaml:"username" toml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env" toml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// TLSConfig holds TLS dial options for the backend connection.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" toml:"insecure_skip_verify"`
}

// DeadLetterConfig selects the sink for events the worker gave up on.
type DeadLetterConfig struct {
	// Backend is one of: none | memory | redis.
	Backend string `yaml:"backend" toml:"backend"`

	// Capacity is the maximum number of letters retained; the oldest is
	// evicted first.
	Capacity int `yaml:"capacity" toml:"capacity"`

	// RedisAddr is the host:port of the redis server, used when Backend == "redis".
	RedisAddr string `yaml:"redis_addr" toml:"redis_addr"`

	// Key is the redis list the letters are pushed onto.
	Key string `yaml:"key" toml:"key"`
}

// Enabled reports whether dropped events should be kept at all.
func (d DeadLetterConfig) Enabled() bool {
	return d.Backend != "" && d.Backend != deadLetterBackendNone
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level" toml:"level"`

	// Format is one of: json | text.
	Format string `yaml:"format" toml:"format"`

	// File, when set, sends logs to a rotating file instead of stderr.
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
	Compress   bool   `yaml:"compress" toml:"compress"`
}

// DiagnosticsConfig configures the optional diagnostics HTTP listener.
type DiagnosticsConfig struct {
	// ListenAddr serves /metrics, /ws/tap and /healthz. Empty disables it.
	ListenAddr string `yaml:"listen_addr" toml:"listen_addr"`
}

// HostConfig describes the calling host's side of the command protocol.
type HostConfig struct {
	// OutputSize is the size of the host's result buffer, terminator included.
	OutputSize int `yaml:"output_size" toml:"output_size"`
}

// Load reads and parses the config file at path. Files ending in .toml are
// decoded as TOML, everything else as YAML. An empty path returns the
// defaults. Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("config: parse toml: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config pre-populated with default values.
func Default() *Config {
	return &Config{
		Relay: RelayConfig{
			RequestTimeout: DefaultRequestTimeout,
			UserAgent:      DefaultUserAgent,
			Auth: AuthConfig{
				Mode:   "none",
				Header: DefaultAPIKeyHeader,
			},
			DeadLetter: DeadLetterConfig{
				Backend:  deadLetterBackendNone,
				Capacity: DefaultDeadLetterSize,
				Key:      DefaultDeadLetterKey,
			},
		},
		Log: LogConfig{
			Level:      DefaultLogLevel,
			Format:     DefaultLogFormat,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
		},
		Host: HostConfig{
			OutputSize: DefaultHostOutputSize,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	r := cfg.Relay
	if r.RequestTimeout <= 0 {
		return fmt.Errorf("relay.request_timeout must be positive")
	}
	switch r.Auth.Mode {
	case "mtls":
		if r.Auth.CertFile == "" || r.Auth.KeyFile == "" {
			return fmt.Errorf("relay.auth: mtls requires cert_file and key_file")
		}
	case "apikey":
		if r.Auth.Header == "" {
			return fmt.Errorf("relay.auth: apikey requires header")
		}
	case "bearer", "basic", "none", "":
	default:
		return fmt.Errorf("relay.auth: unknown mode %q", r.Auth.Mode)
	}
	switch r.DeadLetter.Backend {
	case deadLetterBackendRedis:
		if r.DeadLetter.RedisAddr == "" {
			return fmt.Errorf("relay.dead_letter: redis requires redis_addr")
		}
		if r.DeadLetter.Key == "" {
			return fmt.Errorf("relay.dead_letter: redis requires key")
		}
	case deadLetterBackendMemory, deadLetterBackendNone, "":
	default:
		return fmt.Errorf("relay.dead_letter: unknown backend %q", r.DeadLetter.Backend)
	}
	if r.DeadLetter.Enabled() && r.DeadLetter.Capacity <= 0 {
		return fmt.Errorf("relay.dead_letter.capacity must be positive")
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format: unknown format %q", cfg.Log.Format)
	}

	if cfg.Host.OutputSize < minHostOutputSize {
		return fmt.Errorf("host.output_size must be at least %d", minHostOutputSize)
	}
	return nil
}
