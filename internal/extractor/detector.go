package extractor

import (
	"regexp"
	"strings"

	"github.com/KeremKalyoncu/grabkit/internal/types"
)

// detectionTable is checked in order; the first containing substring wins
var detectionTable = []struct {
	platform types.Platform
	hosts    []string
}{
	{types.PlatformTikTok, []string{"tiktok.com", "vm.tiktok.com", "vt.tiktok.com"}},
	{types.PlatformInstagram, []string{"instagram.com"}},
	{types.PlatformTwitter, []string{"twitter.com", "x.com"}},
}

var youTubeHost = regexp.MustCompile(`(?i)(?:youtube\.com|youtu\.be)`)

// Detect classifies a raw URL into one of the auto-detected platforms.
// It never fails; unknown or empty input reports false.
func Detect(rawURL string) (types.Platform, bool) {
	s := strings.ToLower(strings.TrimSpace(rawURL))
	if s == "" {
		return types.PlatformUnknown, false
	}
	for _, entry := range detectionTable {
		for _, host := range entry.hosts {
			if strings.Contains(s, host) {
				return entry.platform, true
			}
		}
	}
	return types.PlatformUnknown, false
}

// IsYouTubeURL reports whether rawURL points at YouTube
func IsYouTubeURL(rawURL string) bool {
	return youTubeHost.MatchString(rawURL)
}
