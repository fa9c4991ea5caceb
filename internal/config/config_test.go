package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("AUTH_TOKEN_TTL_HOURS", "")
	t.Setenv("AUTH_BCRYPT_COST", "")
	t.Setenv("AUTH_MAX_LOGIN_ATTEMPTS", "")
	t.Setenv("AUTH_LOCK_DURATION_MINUTES", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, 5, cfg.Auth.MaxLoginAttempts)
	assert.Equal(t, 8, cfg.Auth.MinPasswordLength)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL())
	assert.Equal(t, 30*time.Minute, cfg.Auth.LockDuration())
	assert.False(t, cfg.App.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("AUTH_MAX_LOGIN_ATTEMPTS", "3")
	t.Setenv("AUTH_LOCK_DURATION_MINUTES", "10")
	t.Setenv("AUTH_TOKEN_TTL_HOURS", "1")
	t.Setenv("APP_HOST", "127.0.0.1")
	t.Setenv("APP_PORT", "9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Auth.MaxLoginAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Auth.LockDuration())
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL())
	assert.Equal(t, "127.0.0.1:9000", cfg.App.Addr())
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("AUTH_BCRYPT_COST", "twelve")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown driver", env: map[string]string{"DB_DRIVER": "oracle"}},
		{name: "default secret in production", env: map[string]string{"APP_ENV": "production", "AUTH_JWT_SECRET": ""}},
		{name: "bad redis db", env: map[string]string{"REDIS_DB": "x"}},
		{name: "zero attempts", env: map[string]string{"AUTH_MAX_LOGIN_ATTEMPTS": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestRequestTimeout(t *testing.T) {
	assert.Equal(t, time.Duration(0), AppConfig{RequestTimeoutSeconds: 0}.RequestTimeout())
	assert.Equal(t, 5*time.Second, AppConfig{RequestTimeoutSeconds: 5}.RequestTimeout())
}
