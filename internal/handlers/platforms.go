package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/KeremKalyoncu/grabkit/internal/extractor"
	"github.com/KeremKalyoncu/grabkit/internal/types"
)

// PlatformInfo describes one supported platform
type PlatformInfo struct {
	ID            types.Platform `json:"id"`
	Name          string         `json:"name"`
	Endpoint      string         `json:"endpoint"`
	SupportedURLs []string       `json:"supportedUrls"`
	Features      []string       `json:"features"`
	Methods       []string       `json:"methods,omitempty"`
	AutoDetect    bool           `json:"autoDetect"`
}

var catalog = []PlatformInfo{
	{
		ID:       types.PlatformTikTok,
		Name:     "TikTok",
		Endpoint: "/tiktok",
		SupportedURLs: []string{
			"https://www.tiktok.com/@user/video/1234567890",
			"https://vm.tiktok.com/XXXXXXX/",
			"https://vt.tiktok.com/XXXXXXX/",
		},
		Features:   []string{"HD without watermark", "Watermarked video", "Music", "Author and engagement stats"},
		AutoDetect: true,
	},
	{
		ID:       types.PlatformInstagram,
		Name:     "Instagram",
		Endpoint: "/instagram",
		SupportedURLs: []string{
			"https://www.instagram.com/reel/XXXXXXX/",
			"https://www.instagram.com/p/XXXXXXX/",
			"https://www.instagram.com/tv/XXXXXXX/",
		},
		Features:   []string{"Reels", "Video posts", "Caption and thumbnail"},
		AutoDetect: true,
	},
	{
		ID:       types.PlatformTwitter,
		Name:     "Twitter/X",
		Endpoint: "/twitter",
		SupportedURLs: []string{
			"https://twitter.com/user/status/1234567890",
			"https://x.com/user/status/1234567890",
		},
		Features:   []string{"Multiple qualities", "GIFs", "Thumbnail"},
		AutoDetect: true,
	},
	{
		ID:       types.PlatformYouTube,
		Name:     "YouTube",
		Endpoint: "/youtube",
		SupportedURLs: []string{
			"https://www.youtube.com/watch?v=XXXXXXXXXXX",
			"https://youtu.be/XXXXXXXXXXX",
			"https://www.youtube.com/shorts/XXXXXXXXXXX",
		},
		Features: []string{"Audio extraction", "Format and codec", "High quality thumbnail"},
	},
}

// lookup returns the catalog entry for p
func lookup(p types.Platform) (PlatformInfo, bool) {
	for _, info := range catalog {
		if info.ID == p {
			return info, true
		}
	}
	return PlatformInfo{}, false
}

// PlatformsHandler serves the static capability listing
type PlatformsHandler struct {
	svc *extractor.Service
}

// NewPlatformsHandler creates a platforms handler
func NewPlatformsHandler(svc *extractor.Service) *PlatformsHandler {
	return &PlatformsHandler{svc: svc}
}

// List returns every platform with its fallback order. GET /platforms
func (h *PlatformsHandler) List(c *fiber.Ctx) error {
	methods := h.svc.Methods()

	platforms := make([]PlatformInfo, 0, len(catalog))
	for _, info := range catalog {
		if !h.svc.Supports(info.ID) {
			continue
		}
		info.Methods = methods[info.ID]
		platforms = append(platforms, info)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"platforms": platforms,
	})
}
