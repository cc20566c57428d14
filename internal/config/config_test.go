package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, 10*time.Minute, cfg.AuthCodeTTL)
	assert.Equal(t, time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, time.Duration(0), cfg.RefreshTokenGrace)
	assert.Equal(t, AuthModeLocal, cfg.AuthMode)
	assert.Equal(t, CacheBackendMemory, cfg.CacheBackend)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "30m")
	t.Setenv("REFRESH_TOKEN_GRACE", "168h")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_DSN", "host=localhost user=pg dbname=pg")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 168*time.Hour, cfg.RefreshTokenGrace)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, "host=localhost user=pg dbname=pg", cfg.DatabaseDSN)
}

func TestLoadMalformedDuration(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "sixty minutes")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACCESS_TOKEN_TTL")
}

func TestLoadUnknownDriver(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "oracle")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database driver")
}

func TestLoadHTTPAPIRequiresURL(t *testing.T) {
	t.Setenv("AUTH_MODE", "http_api")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("HTTP_API_URL", "https://accounts.example.com/api/auth")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, AuthModeHTTPAPI, cfg.AuthMode)
}

func TestValidateRejectsNegativeGrace(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.RefreshTokenGrace = -time.Hour
	assert.Error(t, cfg.Validate())
}
