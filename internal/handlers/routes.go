package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/KeremKalyoncu/grabkit/internal/auth"
	"github.com/KeremKalyoncu/grabkit/internal/cache"
	"github.com/KeremKalyoncu/grabkit/internal/circuitbreaker"
	"github.com/KeremKalyoncu/grabkit/internal/dedup"
	"github.com/KeremKalyoncu/grabkit/internal/extractor"
	"github.com/KeremKalyoncu/grabkit/internal/metrics"
	"github.com/KeremKalyoncu/grabkit/internal/middleware"
	"github.com/KeremKalyoncu/grabkit/internal/queue"
	"github.com/KeremKalyoncu/grabkit/internal/types"
	"github.com/KeremKalyoncu/grabkit/pkg/storage"
)

// Deps carries what the routes are built from. Nil optional fields switch
// the matching feature off.
type Deps struct {
	Service *extractor.Service
	Gate    *auth.Gate
	Metrics *metrics.Metrics
	Health  *HealthHandler
	Logger  *zap.Logger

	// optional
	Queue       *queue.Client
	LocalFiles  *storage.LocalStorage
	RateLimiter *middleware.RateLimiter
	Dedup       *dedup.Singleflight
	Breakers    *circuitbreaker.Registry
	Results     *cache.Results
	RedisStats  func() map[string]interface{}

	ProxyClient   *http.Client
	ProxyTimeout  time.Duration
	// ProxyPrivate lets /file/download reach loopback and private hosts
	ProxyPrivate  bool
	PublicBaseURL string
	AdminKey      string
	Production    bool
	Pprof         bool
}

// Register mounts every route on app. The catch-all 404 is added last.
func Register(app *fiber.App, d Deps) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.GetMetrics()
	}
	if d.Health == nil {
		d.Health = NewHealthHandler(d.Breakers, d.Logger)
	}
	if d.ProxyClient == nil {
		d.ProxyClient = http.DefaultClient
	}

	app.Use(func(c *fiber.Ctx) error {
		d.Metrics.IncrementRequests()
		return c.Next()
	})

	if d.Pprof {
		RegisterPprofRoutes(app)
		d.Logger.Info("pprof profiling endpoints enabled at /debug/pprof")
	}

	limited := func(c *fiber.Ctx) error { return c.Next() }
	if d.RateLimiter != nil {
		limited = d.RateLimiter.Middleware()
	}

	app.Get("/health", d.Health.Health)
	app.Get("/health/ready", d.Health.Readiness)
	app.Get("/health/live", d.Health.Liveness)

	mh := NewMetricsHandler(d.Metrics, d.Dedup, d.Breakers, d.Results, d.Logger).WithRedisStats(d.RedisStats)
	app.Get("/metrics", middleware.CacheMiddleware(middleware.CacheConfig{MaxAge: 30, Public: true}), mh.Snapshot)

	ph := NewPlatformsHandler(d.Service)
	app.Get("/platforms", middleware.CacheMiddleware(), ph.List)

	app.Post("/detect", NewDetectionHandler().DetectURL)

	media := NewMediaHandler(d.Service, d.Gate, d.Production, d.Logger)
	app.Post("/download", limited, media.Download)
	for _, p := range []types.Platform{types.PlatformTikTok, types.PlatformInstagram, types.PlatformTwitter} {
		app.Post("/"+string(p), limited, media.Pinned(p))
		app.Get("/"+string(p), limited, media.PinnedGet(p))
	}
	app.Get("/youtube", limited, media.PinnedGet(types.PlatformYouTube))

	files := NewFileHandler(d.ProxyClient, d.ProxyTimeout, d.PublicBaseURL, d.Metrics, d.Logger).WithPrivateHosts(d.ProxyPrivate)
	app.Get("/file/download", limited, middleware.NoCacheMiddleware(), files.Download)
	app.Post("/file/direct", files.Direct)

	if d.Queue != nil {
		ah := NewArchiveHandler(d.Service, d.Gate, d.Queue, d.LocalFiles, d.Metrics, d.Logger)
		app.Post("/archive", limited, ah.Create)
		if d.LocalFiles != nil {
			app.Get("/archive/files/*", ah.File)
		}
		app.Get("/archive/:id", ah.Status)
	}

	if settings := d.Gate.Settings(); settings != nil {
		admin := app.Group("/admin", middleware.AdminOnly(d.AdminKey))
		adh := NewAdminHandler(settings, d.Logger)
		admin.Get("/settings", adh.GetSettings)
		admin.Put("/settings", adh.UpdateSettings)
	}

	app.Use(middleware.NotFound)
}
