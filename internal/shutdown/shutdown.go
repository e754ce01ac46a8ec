package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

type hook struct {
	name string
	fn   func(ctx context.Context) error
}

// GracefulShutdown runs registered hooks, in registration order, once a
// termination signal arrives
type GracefulShutdown struct {
	logger  *zap.Logger
	timeout time.Duration
	hooks   []hook
}

// NewGracefulShutdown creates a shutdown handler whose hooks share timeout
func NewGracefulShutdown(logger *zap.Logger, timeout time.Duration) *GracefulShutdown {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GracefulShutdown{logger: logger, timeout: timeout}
}

// Register adds a named cleanup hook
func (gs *GracefulShutdown) Register(name string, fn func(ctx context.Context) error) {
	gs.hooks = append(gs.hooks, hook{name: name, fn: fn})
}

// Wait blocks until SIGINT/SIGTERM or ctx ends, then runs the hooks
func (gs *GracefulShutdown) Wait(ctx context.Context) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		gs.logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case <-ctx.Done():
		gs.logger.Info("Shutdown requested")
	}
	return gs.Run()
}

// Run executes every hook under one deadline. A failing hook does not stop
// the ones after it.
func (gs *GracefulShutdown) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), gs.timeout)
	defer cancel()

	var errs []error
	for _, h := range gs.hooks {
		gs.logger.Info("Executing cleanup hook", zap.String("hook", h.name))
		if err := h.fn(ctx); err != nil {
			gs.logger.Error("Cleanup hook failed", zap.String("hook", h.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}

	gs.logger.Info("Graceful shutdown completed")
	return errors.Join(errs...)
}
