package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
)

// CompressionMiddleware compresses JSON responses. Proxied media is
// streamed as-is.
func CompressionMiddleware() fiber.Handler {
	return compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		Next: func(c *fiber.Ctx) bool {
			if strings.HasPrefix(c.Path(), "/file/") || strings.HasPrefix(c.Path(), "/archive/files") {
				return true
			}
			return isCompressedContentType(string(c.Response().Header.ContentType()))
		},
	})
}

var compressedTypes = []string{
	"video/",
	"audio/",
	"image/",
	"application/octet-stream",
	"application/zip",
	"application/gzip",
}

// isCompressedContentType checks if content type is already compressed
func isCompressedContentType(contentType string) bool {
	for _, ct := range compressedTypes {
		if strings.HasPrefix(contentType, ct) {
			return true
		}
	}
	return false
}
