package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/KeremKalyoncu/grabkit/internal/cache"
	"github.com/KeremKalyoncu/grabkit/internal/circuitbreaker"
	"github.com/KeremKalyoncu/grabkit/internal/dedup"
	"github.com/KeremKalyoncu/grabkit/internal/metrics"
)

// MetricsHandler exposes the in-process counters
type MetricsHandler struct {
	metrics  *metrics.Metrics
	flight   *dedup.Singleflight
	breakers *circuitbreaker.Registry
	results  *cache.Results
	redis    func() map[string]interface{}
	logger   *zap.Logger
}

// NewMetricsHandler creates a metrics handler. Every collaborator but m is optional.
func NewMetricsHandler(m *metrics.Metrics, flight *dedup.Singleflight, breakers *circuitbreaker.Registry, results *cache.Results, logger *zap.Logger) *MetricsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetricsHandler{metrics: m, flight: flight, breakers: breakers, results: results, logger: logger}
}

// WithRedisStats adds connection pool counters to the snapshot
func (h *MetricsHandler) WithRedisStats(stats func() map[string]interface{}) *MetricsHandler {
	h.redis = stats
	return h
}

// Snapshot serves GET /metrics
func (h *MetricsHandler) Snapshot(c *fiber.Ctx) error {
	snapshot := h.metrics.GetSnapshot()

	if h.flight != nil {
		snapshot["deduplication"] = h.flight.Stats()
	}
	if h.breakers != nil {
		snapshot["breakers"] = h.breakers.Snapshot()
	}
	if h.results != nil {
		if n, err := h.results.Count(c.UserContext()); err == nil {
			snapshot["cached_results"] = n
		} else {
			h.logger.Debug("Failed to count cached results", zap.Error(err))
		}
	}

	if h.redis != nil {
		snapshot["redis_pool"] = h.redis()
	}

	snapshot["success"] = true
	return c.JSON(snapshot)
}
