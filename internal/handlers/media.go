package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/KeremKalyoncu/grabkit/internal/auth"
	apperrors "github.com/KeremKalyoncu/grabkit/internal/errors"
	"github.com/KeremKalyoncu/grabkit/internal/extractor"
	"github.com/KeremKalyoncu/grabkit/internal/middleware"
	"github.com/KeremKalyoncu/grabkit/internal/types"
)

const unsupportedPlatform = "Unsupported platform. Supported: TikTok, Instagram, Twitter/X"

var examples = map[types.Platform]string{
	types.PlatformTikTok:    "https://www.tiktok.com/@username/video/1234567890123456789",
	types.PlatformInstagram: "https://www.instagram.com/reel/ABC123xyz/",
	types.PlatformTwitter:   "https://twitter.com/username/status/1234567890123456789",
	types.PlatformYouTube:   "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
}

// MediaHandler serves the extraction endpoints
type MediaHandler struct {
	svc        *extractor.Service
	gate       *auth.Gate
	production bool
	logger     *zap.Logger
}

// NewMediaHandler creates a media handler
func NewMediaHandler(svc *extractor.Service, gate *auth.Gate, production bool, logger *zap.Logger) *MediaHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MediaHandler{svc: svc, gate: gate, production: production, logger: logger}
}

// Download detects the platform from the URL. POST /download
func (h *MediaHandler) Download(c *fiber.Ctx) error {
	rawURL, err := middleware.ParseURLRequest(c)
	if err != nil {
		return err
	}
	if err := middleware.ValidateMediaURL(rawURL); err != nil {
		return err
	}

	platform, ok := extractor.Detect(rawURL)
	if !ok {
		return apperrors.ErrInvalidURL.WithMessage(unsupportedPlatform)
	}
	return h.respond(c, platform, rawURL)
}

// Pinned serves POST /tiktok, /instagram and /twitter
func (h *MediaHandler) Pinned(platform types.Platform) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rawURL, err := middleware.ParseURLRequest(c)
		if err != nil {
			return err
		}
		if err := checkPinned(platform, rawURL); err != nil {
			return err
		}
		return h.respond(c, platform, rawURL)
	}
}

// PinnedGet serves the browser friendly GET variants, including /youtube.
// Domain failures are answered with 200 and success:false.
func (h *MediaHandler) PinnedGet(platform types.Platform) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rawURL := strings.TrimSpace(c.Query("url"))
		if rawURL == "" {
			return c.JSON(usage(platform, c.Path()))
		}

		err := checkPinned(platform, rawURL)
		if err == nil {
			err = h.respond(c, platform, rawURL)
		}
		if err == nil || middleware.StatusOf(err) == fiber.StatusInternalServerError {
			return err
		}
		return c.Status(fiber.StatusOK).JSON(middleware.Envelope(err, h.production))
	}
}

// respond authorizes, extracts and charges, then writes the success body
func (h *MediaHandler) respond(c *fiber.Ctx, platform types.Platform, rawURL string) error {
	var outcome *extractor.Outcome

	err := authorized(c, h.gate, h.logger, func(ctx context.Context) (bool, error) {
		var err error
		outcome, err = h.svc.Extract(ctx, platform, rawURL)
		if err != nil {
			return false, err
		}
		// oEmbed fallbacks carry no media and are free
		return !outcome.Result.MetadataOnly, nil
	})
	if err != nil {
		return err
	}

	if outcome.Cached {
		c.Set("X-Cache", "HIT")
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"platform": platform,
		"data":     outcome.Result,
	})
}

// checkPinned validates rawURL for a platform-specific endpoint
func checkPinned(platform types.Platform, rawURL string) error {
	if err := middleware.ValidateMediaURL(rawURL); err != nil {
		return err
	}

	if platform == types.PlatformYouTube {
		if !extractor.IsYouTubeURL(rawURL) {
			return apperrors.ErrInvalidURL.WithMessage("Invalid YouTube URL")
		}
		return nil
	}

	if detected, ok := extractor.Detect(rawURL); !ok || detected != platform {
		name := platform.DisplayName()
		if platform == types.PlatformTwitter {
			name = "Twitter/X"
		}
		return apperrors.ErrInvalidURL.WithMessage("Invalid %s URL", name)
	}
	return nil
}

func usage(platform types.Platform, path string) fiber.Map {
	name := platform.DisplayName()
	if platform == types.PlatformTwitter {
		name = "Twitter/X"
	}
	return fiber.Map{
		"success": false,
		"error":   "Missing url parameter",
		"usage": fiber.Map{
			"endpoint": path,
			"method":   fiber.MethodGet,
			"parameters": fiber.Map{
				"url": name + " URL (required)",
				"key": "API key (optional unless the server requires one)",
			},
			"example": path + "?url=" + examples[platform] + "&key=YOUR_API_KEY",
		},
	}
}
