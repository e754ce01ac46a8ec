package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/KeremKalyoncu/grabkit/internal/archive"
	"github.com/KeremKalyoncu/grabkit/internal/auth"
	"github.com/KeremKalyoncu/grabkit/internal/cache"
	"github.com/KeremKalyoncu/grabkit/internal/circuitbreaker"
	"github.com/KeremKalyoncu/grabkit/internal/cleanup"
	"github.com/KeremKalyoncu/grabkit/internal/config"
	"github.com/KeremKalyoncu/grabkit/internal/dedup"
	"github.com/KeremKalyoncu/grabkit/internal/extractor"
	"github.com/KeremKalyoncu/grabkit/internal/handlers"
	"github.com/KeremKalyoncu/grabkit/internal/logger"
	"github.com/KeremKalyoncu/grabkit/internal/metrics"
	"github.com/KeremKalyoncu/grabkit/internal/middleware"
	"github.com/KeremKalyoncu/grabkit/internal/pool"
	"github.com/KeremKalyoncu/grabkit/internal/queue"
	"github.com/KeremKalyoncu/grabkit/internal/retry"
	"github.com/KeremKalyoncu/grabkit/internal/store"
	"github.com/KeremKalyoncu/grabkit/pkg/storage"
)

// archiveTempDir is created under the configured temp dir so the reaper
// never touches files it does not own
const archiveTempDir = "grabkit"

// NewLogger builds the process logger from config
func NewLogger(cfg *config.Config, service string) (*zap.Logger, error) {
	return logger.New(logger.Config{
		Level:         cfg.Logger.Level,
		Format:        cfg.Logger.Format,
		FileName:      cfg.Logger.FileName,
		MaxSize:       cfg.Logger.MaxSizeMB,
		MaxBackups:    cfg.Logger.MaxBackups,
		MaxAge:        cfg.Logger.MaxAgeDays,
		Compress:      true,
		ConsoleOutput: true,
		Service:       service,
	})
}

// Container holds the dependencies shared by the api and worker binaries
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	// Redis is nil with STORE_DRIVER=memory
	Redis    *redis.Client
	Store    store.Store
	Settings *auth.Settings
	Gate     *auth.Gate

	Breakers *circuitbreaker.Registry
	Dedup    *dedup.Singleflight
	Results  *cache.Results
	Service  *extractor.Service

	Storage storage.Storage
	Jobs    queue.JobStore
	// Queue is nil when archiving is unavailable
	Queue *queue.Client

	closers []func() error
}

// NewContainer connects to redis (when configured) and builds every shared component
func NewContainer(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Container, error) {
	c := &Container{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics.GetMetrics(),
	}

	if cfg.Auth.StoreDriver == "redis" {
		client, err := cache.NewRedisClient(ctx, cache.RedisOptions{
			Addr:       cfg.Redis.Address,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		c.Redis = client
		c.closers = append(c.closers, client.Close)
		c.Store = store.NewRedis(client, cfg.Auth.FreeCredits)
	} else {
		log.Warn("Using in-memory store; credits and tokens are lost on restart")
		c.Store = store.NewMemory(cfg.Auth.FreeCredits)
	}

	settings, err := auth.NewSettings(ctx, cfg.Auth.RequireAPIKey, c.Store)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	c.Settings = settings
	c.Gate = auth.NewGate(c.Store, c.Store, settings, log).WithMetrics(c.Metrics)

	if cfg.Extractor.Breaker {
		c.Breakers = circuitbreaker.NewRegistry(circuitbreaker.Config{}, log)
	}

	c.Dedup = dedup.NewSingleflight(cfg.Extractor.MethodTimeout * 4)
	c.closers = append(c.closers, func() error {
		c.Dedup.Close()
		return nil
	})

	client := extractor.NewClient(extractor.ClientConfig{Timeout: cfg.Extractor.MethodTimeout})
	ytdlp := extractor.NewYtDlp(cfg.Extractor.YtdlpPath, cfg.Extractor.YtdlpTimeout, extractor.ExecRunner{}, log)
	c.Service = extractor.NewDefault(extractor.Dependencies{
		Client:   client,
		YtDlp:    ytdlp,
		Breakers: c.Breakers,
		Metrics:  c.Metrics,
		Logger:   log,
	}).WithDedup(c.Dedup)

	if cfg.Cache.Enabled {
		if c.Redis != nil {
			c.Results = cache.NewResults(c.Redis, cfg.Cache.Prefix, cfg.Cache.TTL, log)
			c.Service.WithCache(c.Results)
		} else {
			c.Service.WithCache(cache.NewMemory(cfg.Cache.TTL))
		}
	}

	st, err := storage.New(ctx, storage.Options{
		Type:          cfg.Storage.Type,
		Region:        cfg.Storage.Region,
		Bucket:        cfg.Storage.Bucket,
		Endpoint:      cfg.Storage.Endpoint,
		UsePathStyle:  cfg.Storage.UsePathStyle,
		PresignExpiry: cfg.Storage.PresignedURLExpiry,
		LocalPath:     cfg.Storage.LocalPath,
		LocalBaseURL:  cfg.Storage.LocalBaseURL,
	}, log)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = st

	// archiving needs the broker; the memory driver runs without it
	if c.Redis != nil {
		c.Jobs = queue.NewRedisJobs(c.Redis, cfg.Storage.PresignedURLExpiry)
		asynqClient := queue.NewAsynqClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		c.Queue = queue.NewClient(asynqClient, c.Jobs, queue.ClientOptions{
			MaxRetry:  cfg.Worker.MaxRetries,
			Timeout:   cfg.Worker.JobTimeout,
			Retention: cfg.Storage.PresignedURLExpiry,
		}, log)
		c.closers = append(c.closers, c.Queue.Close)
	}

	log.Info("Container initialized",
		zap.String("store", cfg.Auth.StoreDriver),
		zap.String("storage", cfg.Storage.Type),
		zap.Bool("archive", c.Queue != nil),
		zap.Bool("cache", cfg.Cache.Enabled),
	)
	return c, nil
}

// LocalFiles returns the local archive backend, or nil for s3
func (c *Container) LocalFiles() *storage.LocalStorage {
	ls, _ := c.Storage.(*storage.LocalStorage)
	return ls
}

// Routes assembles the handler dependencies for the api binary
func (c *Container) Routes(limiter *middleware.RateLimiter) handlers.Deps {
	health := handlers.NewHealthHandler(c.Breakers, c.Logger)
	if c.Redis != nil {
		health.AddCheck("redis", func(ctx context.Context) error {
			return c.Redis.Ping(ctx).Err()
		})
	}

	var redisStats func() map[string]interface{}
	if c.Redis != nil {
		redisStats = func() map[string]interface{} { return cache.PoolStats(c.Redis) }
	}

	cfg := c.Config
	return handlers.Deps{
		Service:       c.Service,
		Gate:          c.Gate,
		Metrics:       c.Metrics,
		Health:        health,
		Logger:        c.Logger,
		Queue:         c.Queue,
		LocalFiles:    c.LocalFiles(),
		RateLimiter:   limiter,
		Dedup:         c.Dedup,
		Breakers:      c.Breakers,
		Results:       c.Results,
		RedisStats:    redisStats,
		ProxyClient:   pool.NewHTTPClient(pool.NewTransport(), 0),
		ProxyTimeout:  cfg.Extractor.ProxyTimeout,
		PublicBaseURL: cfg.API.PublicBaseURL,
		AdminKey:      cfg.Auth.AdminKey,
		Production:    cfg.IsProduction(),
		Pprof:         cfg.API.EnablePprof,
	}
}

// NewWorker builds the archive worker server
func (c *Container) NewWorker() (*queue.Server, error) {
	if c.Redis == nil || c.Jobs == nil {
		return nil, fmt.Errorf("archive worker requires STORE_DRIVER=redis")
	}
	cfg := c.Config

	handler := archive.NewHandler(archive.Config{
		FFmpeg:  extractor.NewFFmpeg(cfg.Extractor.FFmpegPath, cfg.Extractor.FFmpegTimeout, extractor.ExecRunner{}, c.Logger),
		Storage: c.Storage,
		TempDir: c.ArchiveTempDir(),
		Backoff: retry.DefaultConfig(),
		Logger:  c.Logger,
	})

	return queue.NewServer(queue.ServerConfig{
		Redis: asynq.RedisClientOpt{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		Concurrency:     cfg.Worker.Concurrency,
		ShutdownTimeout: cfg.Worker.ShutdownTimeout,
		Backoff:         retry.DefaultConfig(),
		Jobs:            c.Jobs,
		Handler:         handler,
		Logger:          c.Logger,
	}), nil
}

// ArchiveTempDir is where the worker stages downloads before upload
func (c *Container) ArchiveTempDir() string {
	return filepath.Join(c.Config.Extractor.TempDir, archiveTempDir)
}

// NewReaper builds the periodic cleanup over the staging dir and, with
// local storage, the archive dir. Local archives live as long as their links.
func (c *Container) NewReaper() *cleanup.Reaper {
	cfg := c.Config
	targets := []cleanup.Target{{Dir: c.ArchiveTempDir(), MaxAge: cfg.Cleanup.MaxAge}}
	if ls := c.LocalFiles(); ls != nil {
		targets = append(targets, cleanup.Target{
			Dir:       ls.BasePath(),
			MaxAge:    cfg.Storage.PresignedURLExpiry,
			PruneDirs: true,
		})
	}
	return cleanup.NewReaper(cfg.Cleanup.Interval, c.Logger, targets...)
}

// Close releases connections in reverse order of creation
func (c *Container) Close() error {
	c.Logger.Info("Closing application container")

	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.closers = nil
	return firstErr
}
