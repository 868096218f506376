package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_Defaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret-for-tests")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.False(t, cfg.App.IsDevelopment())
	assert.Equal(t, "timewatch", cfg.Mongo.Database)
	assert.Equal(t, "events", cfg.Mongo.EventsCollection)
	assert.Equal(t, "urlVisits", cfg.Mongo.TrafficCollection)
	assert.Equal(t, 10*time.Second, cfg.Mongo.Timeout)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 10.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 20, cfg.RateLimit.BurstSize)
	assert.Empty(t, cfg.Auth.APIKeys)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFile_FromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "APP_PORT=9090\nAPP_ENV=Development\nREDIS_HOST=cache\nAPI_KEYS=k1:ops, k2:cron\nRATE_LIMIT_BURST=5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.True(t, cfg.App.IsDevelopment())
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 5, cfg.RateLimit.BurstSize)
	assert.Equal(t, map[string]string{"k1": "ops", "k2": "cron"}, cfg.Auth.APIKeys)
}

func TestLoadFile_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MONGO_DATABASE=fromfile\n"), 0o600))
	t.Setenv("MONGO_DATABASE", "fromenv")
	t.Setenv("SESSION_SECRET", "s3cret-for-tests")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.Mongo.Database)
}

// TestLoadFile_SessionSecret: встроенный секрет допустим только в development
func TestLoadFile_SessionSecret(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		secret  *string
		wantErr bool
	}{
		{name: "production default", env: "production", wantErr: true},
		{name: "production empty", env: "production", secret: strPtr("  "), wantErr: true},
		{name: "production explicit default", env: "production", secret: strPtr(DefaultSessionSecret), wantErr: true},
		{name: "production custom", env: "production", secret: strPtr("rotated-secret")},
		{name: "development default", env: "development"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", tt.env)
			if tt.secret != nil {
				t.Setenv("SESSION_SECRET", *tt.secret)
			} else {
				unsetEnv(t, "SESSION_SECRET")
			}

			cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.env"))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInsecureSessionSecret)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, cfg.Auth.SessionSecret)
		})
	}
}

func strPtr(s string) *string { return &s }

// unsetEnv убирает переменную; t.Setenv вернёт прежнее значение после теста
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestParseAPIKeys(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{name: "empty", raw: "", want: map[string]string{}},
		{name: "single", raw: "abc:admin", want: map[string]string{"abc": "admin"}},
		{name: "skips malformed", raw: "abc:admin,broken, def : ci ", want: map[string]string{"abc": "admin", "def": "ci"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseAPIKeys(tt.raw))
		})
	}
}
