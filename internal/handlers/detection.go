package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/KeremKalyoncu/grabkit/internal/extractor"
	"github.com/KeremKalyoncu/grabkit/internal/middleware"
	"github.com/KeremKalyoncu/grabkit/internal/types"
)

// DetectionHandler tells clients which endpoint a URL belongs to without
// running any extraction
type DetectionHandler struct{}

// NewDetectionHandler creates a detection handler
func NewDetectionHandler() *DetectionHandler {
	return &DetectionHandler{}
}

// detectPlatform extends auto-detection with YouTube, which is only
// reachable through its own endpoint
func detectPlatform(rawURL string) types.Platform {
	if p, ok := extractor.Detect(rawURL); ok {
		return p
	}
	if extractor.IsYouTubeURL(rawURL) {
		return types.PlatformYouTube
	}
	return types.PlatformUnknown
}

// DetectURL classifies {url}. POST /detect
func (h *DetectionHandler) DetectURL(c *fiber.Ctx) error {
	rawURL, err := middleware.ParseURLRequest(c)
	if err != nil {
		return err
	}
	if err := middleware.ValidateMediaURL(rawURL); err != nil {
		return err
	}

	platform := detectPlatform(rawURL)
	info, ok := lookup(platform)
	if !ok {
		return c.JSON(fiber.Map{
			"success":   true,
			"url":       rawURL,
			"platform":  "other",
			"supported": false,
			"message":   unsupportedPlatform,
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"url":       rawURL,
		"platform":  platform,
		"supported": true,
		"endpoint":  info.Endpoint,
		"info":      info,
	})
}
