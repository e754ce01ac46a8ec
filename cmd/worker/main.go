package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/KeremKalyoncu/grabkit/internal/app"
	"github.com/KeremKalyoncu/grabkit/internal/config"
	"github.com/KeremKalyoncu/grabkit/internal/shutdown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	zapLogger, err := app.NewLogger(cfg, "grabkit-worker")
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting archive worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := app.NewContainer(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize container", zap.Error(err))
	}

	workerServer, err := container.NewWorker()
	if err != nil {
		zapLogger.Fatal("Failed to initialize worker", zap.Error(err))
	}

	zapLogger.Info("Worker configuration",
		zap.String("redis", cfg.Redis.Address),
		zap.Int("concurrency", cfg.Worker.Concurrency),
		zap.String("ffmpeg", cfg.Extractor.FFmpegPath),
		zap.String("storage", cfg.Storage.Type),
		zap.String("temp_dir", container.ArchiveTempDir()),
	)

	if err := workerServer.Start(); err != nil {
		zapLogger.Fatal("Worker error", zap.Error(err))
	}

	reaper := container.NewReaper()
	if cfg.Cleanup.Enabled {
		reaper.Start(ctx)
	}

	gs := shutdown.NewGracefulShutdown(zapLogger, cfg.Worker.ShutdownTimeout+5*time.Second)
	gs.Register("worker", func(ctx context.Context) error {
		workerServer.Shutdown()
		return nil
	})
	gs.Register("cleanup", func(ctx context.Context) error {
		cancel()
		reaper.Stop()
		return nil
	})
	gs.Register("container", func(ctx context.Context) error {
		return container.Close()
	})

	if err := gs.Wait(context.Background()); err != nil {
		zapLogger.Error("Shutdown finished with errors", zap.Error(err))
	}
	zapLogger.Info("Worker stopped")
}
