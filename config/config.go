// Package config loads server configuration from a YAML file and
// GATEHOUSE_-prefixed environment variables, with env taking precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for configuration environment variables, e.g.
// GATEHOUSE_SERVER_PORT or GATEHOUSE_TOKEN_TTL_HOURS.
const EnvPrefix = "GATEHOUSE_"

// DevTokenSecret is the signing secret substituted in development when none
// is configured. Validate rejects it outside development.
const DevTokenSecret = "dev-secret-not-for-production"

// Default configuration values.
const (
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 8080
	DefaultEnvironment    = "development"
	DefaultRequestTimeout = 30 * time.Second

	DefaultStorageBackend = "memory"
	DefaultPoolSize       = 10
	DefaultBoltPath       = "gatehouse.db"

	DefaultTokenTTLHours = 24

	DefaultAuthRatePerMinute = 10
	DefaultAuthBurst         = 10

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Config is the root configuration for the gatehouse server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Token     TokenConfig     `koanf:"token"`
	CORS      CORSConfig      `koanf:"cors"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Log       LogConfig       `koanf:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host        string `koanf:"host"`
	Port        int    `koanf:"port"`
	Environment string `koanf:"environment"`

	// RequestTimeout bounds the total time spent handling one request.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// TrustedProxies lists CIDR ranges (or bare IPs) whose forwarded-for
	// headers are believed. Empty means proxy headers are ignored.
	TrustedProxies []string `koanf:"trusted_proxies"`

	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`
}

// StorageConfig selects and configures the account store.
type StorageConfig struct {
	// Backend is one of "postgres", "bbolt", or "memory".
	Backend string `koanf:"backend"`

	// DSN is the postgres connection string. Supports secret references
	// (see ResolveSecrets).
	DSN string `koanf:"dsn"`

	// PoolSize caps postgres pool connections.
	PoolSize int `koanf:"pool_size"`

	// Path is the bbolt database file.
	Path string `koanf:"path"`
}

// TokenConfig configures token issuance.
type TokenConfig struct {
	// Secret signs tokens. Supports secret references (see ResolveSecrets).
	Secret string `koanf:"secret"`

	// TTLHours is the token lifetime. Tokens minted with a non-positive
	// lifetime are born expired, so the value must be positive.
	TTLHours int `koanf:"ttl_hours"`
}

// TTL returns the configured token lifetime as a duration.
func (t TokenConfig) TTL() time.Duration {
	return time.Duration(t.TTLHours) * time.Hour
}

// CORSConfig configures cross-origin access.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// RateLimitConfig configures the per-IP limit on credential routes.
type RateLimitConfig struct {
	AuthPerMinute int `koanf:"auth_per_minute"`
	AuthBurst     int `koanf:"auth_burst"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the development-friendly default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           DefaultHost,
			Port:           DefaultPort,
			Environment:    DefaultEnvironment,
			RequestTimeout: DefaultRequestTimeout,
		},
		Storage: StorageConfig{
			Backend:  DefaultStorageBackend,
			PoolSize: DefaultPoolSize,
			Path:     DefaultBoltPath,
		},
		Token: TokenConfig{
			TTLHours: DefaultTokenTTLHours,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:8080"},
		},
		RateLimit: RateLimitConfig{
			AuthPerMinute: DefaultAuthRatePerMinute,
			AuthBurst:     DefaultAuthBurst,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Load reads configuration: defaults, then the YAML file at path (if any),
// then GATEHOUSE_ environment variables, each layer overriding the last.
//
// Load does not validate; call ResolveSecrets and then Validate once secret
// references have been replaced with real values.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// GATEHOUSE_SERVER_REQUEST_TIMEOUT -> server.request_timeout: the first
	// underscore separates the section, the rest is the key.
	transform := func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		if section, key, found := strings.Cut(s, "_"); found {
			return section + "." + key
		}
		return s
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", transform), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Token.Secret == "" && !cfg.IsProduction() {
		cfg.Token.Secret = DevTokenSecret
	}
	return cfg, nil
}

// IsProduction reports whether the server runs in production mode, which
// tightens validation.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// UsesDevSecret reports whether the insecure development signing secret is
// in effect.
func (c *Config) UsesDevSecret() bool {
	return c.Token.Secret == DevTokenSecret
}

// Validate checks the configuration for values the server refuses to start
// with. Call it after ResolveSecrets.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.RequestTimeout <= 0 {
		return errors.New("server.request_timeout must be positive")
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		return errors.New("server.tls_cert_file and server.tls_key_file must be set together")
	}

	switch c.Storage.Backend {
	case "memory":
	case "bbolt":
		if c.Storage.Path == "" {
			return errors.New("storage.path required for the bbolt backend")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}

	if c.Token.TTLHours <= 0 {
		return errors.New("token.ttl_hours must be positive")
	}
	if c.Token.Secret == "" {
		return errors.New("token.secret must be set")
	}
	if c.IsProduction() {
		if c.UsesDevSecret() {
			return errors.New("token.secret: the development secret is not allowed in production")
		}
		if len(c.Token.Secret) < 32 {
			return errors.New("token.secret must be at least 32 bytes in production")
		}
	}
	return nil
}
