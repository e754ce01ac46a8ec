package middleware

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CacheConfig holds cache header configuration
type CacheConfig struct {
	// MaxAge is the cache duration in seconds
	MaxAge         int
	Public         bool
	MustRevalidate bool
}

// DefaultCacheConfig suits static listings
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxAge:         300,
		Public:         true,
		MustRevalidate: true,
	}
}

// CacheMiddleware adds an ETag and Cache-Control to successful GET responses
// and answers a matching If-None-Match with 304
func CacheMiddleware(config ...CacheConfig) fiber.Handler {
	cfg := DefaultCacheConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	cacheControl := buildCacheControl(cfg)

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodGet && c.Method() != fiber.MethodHead {
			return c.Next()
		}

		if err := c.Next(); err != nil {
			return err
		}
		if c.Response().StatusCode() != fiber.StatusOK {
			return nil
		}

		etag := generateETag(c.Response().Body())
		c.Set(fiber.HeaderETag, etag)
		c.Set(fiber.HeaderCacheControl, cacheControl)

		if c.Get(fiber.HeaderIfNoneMatch) == etag {
			c.Status(fiber.StatusNotModified)
			c.Response().ResetBody()
		}
		return nil
	}
}

func generateETag(body []byte) string {
	hash := md5.Sum(body)
	return `"` + hex.EncodeToString(hash[:]) + `"`
}

func buildCacheControl(cfg CacheConfig) string {
	directives := []string{"private"}
	if cfg.Public {
		directives[0] = "public"
	}
	if cfg.MaxAge > 0 {
		directives = append(directives, "max-age="+strconv.Itoa(cfg.MaxAge))
	}
	if cfg.MustRevalidate {
		directives = append(directives, "must-revalidate")
	}
	return strings.Join(directives, ", ")
}

// NoCacheMiddleware disables caching for keyed and streamed responses
func NoCacheMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate, private")
		c.Set(fiber.HeaderPragma, "no-cache")
		c.Set(fiber.HeaderExpires, "0")
		return c.Next()
	}
}
