package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KeremKalyoncu/grabkit/internal/config"
)

func memoryConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		API: config.APIConfig{Port: 3000, PublicBaseURL: "http://api.test"},
		Storage: config.StorageConfig{
			Type:               "local",
			LocalPath:          dir + "/archive",
			LocalBaseURL:       "http://api.test/archive/files",
			PresignedURLExpiry: time.Hour,
		},
		Extractor: config.ExtractorConfig{
			YtdlpPath:     "yt-dlp",
			FFmpegPath:    "ffmpeg",
			MethodTimeout: time.Second,
			ProxyTimeout:  time.Second,
			TempDir:       dir,
			Breaker:       true,
		},
		Auth:    config.AuthConfig{StoreDriver: "memory", FreeCredits: 25, RequireAPIKey: true},
		Cache:   config.CacheConfig{Enabled: true, TTL: time.Minute},
		Worker:  config.WorkerConfig{Concurrency: 1},
		Cleanup: config.CleanupConfig{Interval: time.Hour, MaxAge: time.Hour},
	}
}

func TestMemoryContainer(t *testing.T) {
	cfg := memoryConfig(t)
	c, err := NewContainer(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.Redis)
	assert.Nil(t, c.Queue)
	assert.NotNil(t, c.Breakers)
	require.NotNil(t, c.LocalFiles())
	assert.True(t, c.Settings.RequireAPIKey())

	deps := c.Routes(nil)
	assert.Same(t, c.Service, deps.Service)
	assert.Nil(t, deps.RedisStats)
	assert.Equal(t, "http://api.test", deps.PublicBaseURL)

	_, err = c.NewWorker()
	assert.Error(t, err)

	results := c.NewReaper().Sweep()
	require.Len(t, results, 2)
	assert.Equal(t, c.ArchiveTempDir(), results[0].Dir)
}

func TestNewLogger(t *testing.T) {
	cfg := &config.Config{Logger: config.LoggerConfig{Level: "warn", Format: "json"}}
	log, err := NewLogger(cfg, "grabkit-test")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zap.InfoLevel))
}
