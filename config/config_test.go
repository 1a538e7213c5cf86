package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Server.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("RequestTimeout = %v, want %v", cfg.Server.RequestTimeout, DefaultRequestTimeout)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", cfg.Storage.Backend)
	}
	if cfg.Token.TTLHours != DefaultTokenTTLHours {
		t.Errorf("TTLHours = %d, want %d", cfg.Token.TTLHours, DefaultTokenTTLHours)
	}
	if !cfg.UsesDevSecret() {
		t.Error("development config should fall back to the dev secret")
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
  environment: staging
  request_timeout: 45s
storage:
  backend: bbolt
  path: /tmp/test.db
token:
  secret: file-secret
  ttl_hours: 12
cors:
  allowed_origins:
    - https://app.example.com
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 45*time.Second {
		t.Errorf("RequestTimeout = %v, want 45s", cfg.Server.RequestTimeout)
	}
	if cfg.Storage.Backend != "bbolt" || cfg.Storage.Path != "/tmp/test.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Token.Secret != "file-secret" || cfg.Token.TTLHours != 12 {
		t.Errorf("token = %+v", cfg.Token)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "https://app.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Token.TTL() != 12*time.Hour {
		t.Errorf("TTL() = %v, want 12h", cfg.Token.TTL())
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
token:
  secret: file-secret
`)

	t.Setenv("GATEHOUSE_SERVER_PORT", "7070")
	t.Setenv("GATEHOUSE_SERVER_REQUEST_TIMEOUT", "10s")
	t.Setenv("GATEHOUSE_TOKEN_SECRET", "env-secret")
	t.Setenv("GATEHOUSE_CORS_ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Port = %d, want 7070 (env should beat file)", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %v, want 10s", cfg.Server.RequestTimeout)
	}
	if cfg.Token.Secret != "env-secret" {
		t.Errorf("Secret = %q, want env-secret", cfg.Token.Secret)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v, want two entries from comma list", cfg.CORS.AllowedOrigins)
	}
}

func TestProductionHasNoDevFallback(t *testing.T) {
	t.Setenv("GATEHOUSE_SERVER_ENVIRONMENT", "production")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Token.Secret != "" {
		t.Errorf("Secret = %q, want empty (no dev fallback in production)", cfg.Token.Secret)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should reject a production config without a secret")
	}
}

func TestValidate(t *testing.T) {
	longSecret := strings.Repeat("s", 32)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"zero timeout", func(c *Config) { c.Server.RequestTimeout = 0 }, true},
		{"ttl zero", func(c *Config) { c.Token.TTLHours = 0 }, true},
		{"ttl negative", func(c *Config) { c.Token.TTLHours = -1 }, true},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }, true},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = "postgres" }, true},
		{"postgres with dsn", func(c *Config) {
			c.Storage.Backend = "postgres"
			c.Storage.DSN = "postgres://localhost/gatehouse"
		}, false},
		{"bbolt without path", func(c *Config) {
			c.Storage.Backend = "bbolt"
			c.Storage.Path = ""
		}, true},
		{"cert without key", func(c *Config) { c.Server.TLSCertFile = "/tls/cert.pem" }, true},
		{"dev secret in production", func(c *Config) {
			c.Server.Environment = "production"
		}, true},
		{"short secret in production", func(c *Config) {
			c.Server.Environment = "production"
			c.Token.Secret = "short"
		}, true},
		{"long secret in production", func(c *Config) {
			c.Server.Environment = "production"
			c.Token.Secret = longSecret
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Token.Secret = DevTokenSecret
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("Validate() = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestResolveSecrets(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "resolved-jwt-secret")

	cfg := Default()
	cfg.Token.Secret = "env://TEST_JWT_SECRET"
	cfg.Storage.DSN = "postgres://literal-dsn"

	if err := cfg.ResolveSecrets(context.Background()); err != nil {
		t.Fatalf("ResolveSecrets: %v", err)
	}
	if cfg.Token.Secret != "resolved-jwt-secret" {
		t.Errorf("Secret = %q, want resolved value", cfg.Token.Secret)
	}
	if cfg.Storage.DSN != "postgres://literal-dsn" {
		t.Errorf("DSN = %q, literal values must pass through", cfg.Storage.DSN)
	}
}

func TestResolveSecretsMissingEnv(t *testing.T) {
	cfg := Default()
	cfg.Token.Secret = "env://GATEHOUSE_TEST_DOES_NOT_EXIST"

	if err := cfg.ResolveSecrets(context.Background()); err == nil {
		t.Error("ResolveSecrets should fail for a missing env secret")
	}
}
