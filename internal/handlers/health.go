package handlers

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/KeremKalyoncu/grabkit/internal/circuitbreaker"
)

// Version is reported by /health
const Version = "1.0.0"

// Check probes one dependency
type Check func(ctx context.Context) error

// HealthHandler provides health check endpoints
type HealthHandler struct {
	checks   map[string]Check
	breakers *circuitbreaker.Registry
	started  time.Time
	logger   *zap.Logger
}

// NewHealthHandler creates a health handler
func NewHealthHandler(breakers *circuitbreaker.Registry, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		checks:   make(map[string]Check),
		breakers: breakers,
		started:  time.Now(),
		logger:   logger,
	}
}

// AddCheck registers a dependency probe; call before serving
func (h *HealthHandler) AddCheck(name string, check Check) *HealthHandler {
	h.checks[name] = check
	return h
}

func (h *HealthHandler) run(ctx context.Context) (fiber.Map, bool) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := fiber.Map{}
	healthy := true
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			healthy = false
			h.logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
			results[name] = fiber.Map{"status": "unhealthy", "error": err.Error()}
			continue
		}
		results[name] = fiber.Map{"status": "healthy"}
	}
	return results, healthy
}

// Health reports status, uptime and dependency checks. GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	checks, healthy := h.run(c.UserContext())

	body := fiber.Map{
		"success":   healthy,
		"status":    "healthy",
		"version":   Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"checks":    checks,
	}
	if h.breakers != nil {
		body["breakers"] = h.breakers.Snapshot()
	}

	if !healthy {
		body["status"] = "degraded"
		return c.Status(fiber.StatusServiceUnavailable).JSON(body)
	}
	return c.JSON(body)
}

// Readiness returns whether the service can take traffic. GET /health/ready
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	if _, healthy := h.run(c.UserContext()); !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"ready":   false,
			"error":   "Dependencies not available",
		})
	}
	return c.JSON(fiber.Map{"success": true, "ready": true})
}

// Liveness returns whether the process is alive. GET /health/live
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "alive": true})
}
