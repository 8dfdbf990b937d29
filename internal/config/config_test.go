package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs each test from an empty directory so no stray config.yaml or
// .env in the package directory leaks in.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(ConfigPathEnvVar, "")
	return dir
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	isolate(t)
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.ErrorIs(t, err, ErrMissingDatabaseURL)
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	t.Setenv("DATABASE_URL", "data/soundscape.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5050, cfg.Server.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.UsingDevSecret())
	assert.False(t, cfg.Provider.Enabled())
	assert.False(t, cfg.Mail.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("PORT", "8081")
	t.Setenv("JWT_SECRET", "a-much-longer-production-secret")
	t.Setenv("TICKETMASTER_API_KEY", "tm-key")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "2525")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.False(t, cfg.UsingDevSecret())
	assert.True(t, cfg.Provider.Enabled())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 2525, cfg.Mail.Port)
	assert.True(t, cfg.Mail.Enabled())
}

func TestLoad_YAMLFileBelowEnv(t *testing.T) {
	dir := isolate(t)
	yaml := []byte("server:\n  port: 9000\nprovider:\n  api_key: from-file\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("TICKETMASTER_API_KEY", "from-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Provider.APIKey)
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.URL = "x.db"
	require.NoError(t, cfg.Validate())

	cfg.Auth.JWTSecret = "short"
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Database.URL = "x.db"
	cfg.Log.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	t.Setenv(AppEnvVar, "test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SOUNDSCAPE_A=base\nSOUNDSCAPE_B=base\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.test"), []byte("SOUNDSCAPE_A=test\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("SOUNDSCAPE_A")
		os.Unsetenv("SOUNDSCAPE_B")
	})

	loaded, err := LoadDotEnv(dir)
	require.NoError(t, err)

	assert.Len(t, loaded, 2)
	assert.Equal(t, "test", os.Getenv("SOUNDSCAPE_A"))
	assert.Equal(t, "base", os.Getenv("SOUNDSCAPE_B"))
}
