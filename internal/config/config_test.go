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

	assert.Equal(t, 3000, cfg.API.Port)
	assert.Equal(t, 15*time.Second, cfg.Extractor.MethodTimeout)
	assert.Equal(t, 120*time.Second, cfg.Extractor.ProxyTimeout)
	assert.Equal(t, int64(25), cfg.Auth.FreeCredits)
	assert.False(t, cfg.Auth.RequireAPIKey)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("REQUIRE_API_KEY", "true")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("RATE_LIMIT_WINDOW", "1m")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.API.Port)
	assert.True(t, cfg.Auth.RequireAPIKey)
	assert.Equal(t, "memory", cfg.Auth.StoreDriver)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.True(t, cfg.IsProduction())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"PORT": "70000"}},
		{"bad driver", map[string]string{"STORE_DRIVER": "postgres"}},
		{"bad storage", map[string]string{"STORAGE_TYPE": "ftp"}},
		{"bad concurrency", map[string]string{"WORKER_CONCURRENCY": "0"}},
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
