package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/KeremKalyoncu/grabkit/internal/app"
	"github.com/KeremKalyoncu/grabkit/internal/cleanup"
	"github.com/KeremKalyoncu/grabkit/internal/config"
	"github.com/KeremKalyoncu/grabkit/internal/handlers"
	"github.com/KeremKalyoncu/grabkit/internal/middleware"
	"github.com/KeremKalyoncu/grabkit/internal/shutdown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	zapLogger, err := app.NewLogger(cfg, "grabkit-api")
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer zapLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := app.NewContainer(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize container", zap.Error(err))
	}

	if cfg.Auth.AdminKey == "" {
		zapLogger.Warn("ADMIN_KEY is empty; /admin routes will reject every request")
	}

	fiberApp := fiber.New(fiber.Config{
		AppName:               "grabkit " + handlers.Version,
		ReadTimeout:           cfg.API.ReadTimeout,
		WriteTimeout:          cfg.API.WriteTimeout,
		BodyLimit:             cfg.API.BodyLimit,
		DisableStartupMessage: cfg.IsProduction(),
		ReduceMemoryUsage:     true,
		ErrorHandler:          middleware.ErrorHandler(zapLogger, cfg.IsProduction()),
	})

	fiberApp.Use(recover.New())
	fiberApp.Use(middleware.CompressionMiddleware())
	fiberApp.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.API.AllowedOrigins,
		AllowMethods:  "GET,POST,PUT,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,Authorization,X-API-Key",
		ExposeHeaders: "X-Credits-Remaining,X-Daily-Remaining,X-Total-Remaining,X-Daily-Limit,X-Total-Limit,X-Cache",
	}))

	// anonymous callers are throttled per IP on the scraping routes
	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}

	handlers.Register(fiberApp, container.Routes(limiter))

	var reaper *cleanup.Reaper
	if cfg.Cleanup.Enabled {
		reaper = container.NewReaper()
		reaper.Start(ctx)
		zapLogger.Info("Cleanup service started",
			zap.String("temp_dir", container.ArchiveTempDir()),
			zap.Duration("max_age", cfg.Cleanup.MaxAge),
		)
	}

	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	go func() {
		zapLogger.Info("Starting API server", zap.String("addr", addr))
		if err := fiberApp.Listen(addr); err != nil {
			zapLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	gs := shutdown.NewGracefulShutdown(zapLogger, 30*time.Second)
	gs.Register("http", func(ctx context.Context) error {
		return fiberApp.ShutdownWithContext(ctx)
	})
	gs.Register("background", func(ctx context.Context) error {
		cancel()
		if reaper != nil {
			reaper.Stop()
		}
		if limiter != nil {
			limiter.Close()
		}
		return nil
	})
	gs.Register("container", func(ctx context.Context) error {
		return container.Close()
	})

	if err := gs.Wait(context.Background()); err != nil {
		zapLogger.Error("Shutdown finished with errors", zap.Error(err))
	}
}
