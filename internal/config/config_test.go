package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  address: ":8080"
  allowed_origins: ["https://doulitsa.gr"]
database:
  url: "user:pass@tcp(localhost:3306)/doulitsa?parseTime=true"
auth:
  jwt_secret: "file-secret"
  access_ttl: 30m
redis:
  addr: "localhost:6379"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, []string{"https://doulitsa.gr"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 30*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, "doulitsa_changes", cfg.Realtime.Channel)
	assert.Equal(t, "file-secret", cfg.Realtime.JWTSecret)
	assert.Equal(t, 10, cfg.RateLimit.AuthPerMinute)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("PORT", "9000")

	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, ":9000", cfg.Server.Address)
}

func TestMissingFileUsesEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "root@tcp(db:3306)/doulitsa")
	t.Setenv("JWT_SECRET", "s")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":4001", cfg.Server.Address)
}

func TestValidateRequiresSecrets(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "database:\n  url: x\n"))
	assert.Error(t, err)

	t.Setenv("PORT", "abc")
	_, err = LoadConfig(writeConfig(t, sampleYAML))
	assert.Error(t, err)
}
