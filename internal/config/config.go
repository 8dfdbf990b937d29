// Package config loads Soundscape's configuration.
//
// Precedence, lowest to highest: struct defaults, an optional YAML file,
// environment variables. .env files are read into the environment first,
// so they sit between the YAML file and the real environment.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Provider ProviderConfig `koanf:"provider"`
	Mail     MailConfig     `koanf:"mail"`
	Cache    CacheConfig    `koanf:"cache"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ClientBaseURL   string        `koanf:"client_base_url"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_requests"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// URL is a SQLite DSN: a file path, or "file:...?mode=memory" for tests.
	URL string `koanf:"url"`
}

type AuthConfig struct {
	JWTSecret          string        `koanf:"jwt_secret"`
	SessionTTL         time.Duration `koanf:"session_ttl"`
	ResetTokenTTL      time.Duration `koanf:"reset_token_ttl"`
	GoogleClientID     string        `koanf:"google_client_id"`
	GoogleClientSecret string        `koanf:"google_client_secret"`
	GoogleRedirectURL  string        `koanf:"google_redirect_url"`
	GoogleIssuer       string        `koanf:"google_issuer"`
	GoogleJWKSURL      string        `koanf:"google_jwks_url"`
}

type ProviderConfig struct {
	APIKey   string        `koanf:"api_key"`
	BaseURL  string        `koanf:"base_url"`
	Timeout  time.Duration `koanf:"timeout"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// Enabled reports whether sync and live fallback can run.
func (p ProviderConfig) Enabled() bool { return p.APIKey != "" }

type MailConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

// Enabled reports whether a mail transport is configured.
func (m MailConfig) Enabled() bool { return m.Host != "" }

type CacheConfig struct {
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

const devJWTSecret = "soundscape-dev-secret-change-me"

// ErrMissingDatabaseURL is returned when no database is configured.
var ErrMissingDatabaseURL = errors.New("config: DATABASE_URL is required")

// Validate checks settings that have no safe default.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return ErrMissingDatabaseURL
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("config: JWT_SECRET must be at least 16 characters")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("config: session_ttl must be positive")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: log format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// UsingDevSecret reports whether the built-in development JWT secret is in use.
func (c *Config) UsingDevSecret() bool {
	return c.Auth.JWTSecret == devJWTSecret
}
