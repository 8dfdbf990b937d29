package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config files searched, first match wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            5050,
			ClientBaseURL:   "http://localhost:5173",
			CORSOrigins:     []string{"http://localhost:5173"},
			RateLimitReqs:   20,
			RateLimitWindow: time.Minute,
			ShutdownTimeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret:         devJWTSecret,
			SessionTTL:        7 * 24 * time.Hour,
			ResetTokenTTL:     time.Hour,
			GoogleRedirectURL: "postmessage",
			GoogleIssuer:      "https://accounts.google.com",
			GoogleJWKSURL:     "https://www.googleapis.com/oauth2/v3/certs",
		},
		Provider: ProviderConfig{
			BaseURL:  "https://app.ticketmaster.com/discovery/v2/events.json",
			Timeout:  10 * time.Second,
			CacheTTL: 10 * time.Minute,
		},
		Mail: MailConfig{
			Port: 587,
			From: "Soundscape <no-reply@soundscape.local>",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds a Config from defaults, the optional YAML file and the
// environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	// Only mapped variables are loaded; the transform returns "" for the rest
	// and koanf skips empty keys.
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envMappings maps environment variable names to koanf paths.
var envMappings = map[string]string{
	"port":                  "server.port",
	"client_base_url":       "server.client_base_url",
	"cors_origins":          "server.cors_origins",
	"frontend_url":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_requests",
	"rate_limit_window":     "server.rate_limit_window",
	"database_url":          "database.url",
	"jwt_secret":            "auth.jwt_secret",
	"session_ttl":           "auth.session_ttl",
	"google_client_id":      "auth.google_client_id",
	"google_client_secret":  "auth.google_client_secret",
	"google_redirect_url":   "auth.google_redirect_url",
	"ticketmaster_api_key":  "provider.api_key",
	"ticketmaster_base_url": "provider.base_url",
	"smtp_host":             "mail.host",
	"smtp_port":             "mail.port",
	"smtp_user":             "mail.user",
	"smtp_pass":             "mail.password",
	"email_from":            "mail.from",
	"redis_addr":            "cache.redis_addr",
	"redis_password":        "cache.redis_password",
	"log_level":             "log.level",
	"log_format":            "log.format",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields splits comma-separated env values into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("config: setting %s: %w", path, err)
		}
	}
	return nil
}
