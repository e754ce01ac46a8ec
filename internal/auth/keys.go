package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	AdminTokenPrefix = "sk_live_"

	ServiceTikTok  = "tiktok"
	ServiceYouTube = "youtube"
)

// Services lists the per-user key kinds
var Services = []string{ServiceTikTok, ServiceYouTube}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewAdminToken returns sk_live_ followed by 48 hex characters
func NewAdminToken() (string, error) {
	r, err := randomHex(24)
	if err != nil {
		return "", err
	}
	return AdminTokenPrefix + r, nil
}

// NewServiceKey returns <service>_ followed by 48 hex characters
func NewServiceKey(service string) (string, error) {
	if !ValidService(service) {
		return "", fmt.Errorf("invalid service %q", service)
	}
	r, err := randomHex(24)
	if err != nil {
		return "", err
	}
	return service + "_" + r, nil
}

// ValidService reports whether service can own keys
func ValidService(service string) bool {
	for _, s := range Services {
		if s == service {
			return true
		}
	}
	return false
}

// ServiceOf returns the service a key belongs to, or "" for anything that
// should be treated as an admin token
func ServiceOf(key string) string {
	for _, s := range Services {
		if strings.HasPrefix(key, s+"_") {
			return s
		}
	}
	return ""
}

// MaskKey keeps the first 15 and last 4 characters
func MaskKey(key string) string {
	if len(key) <= 19 {
		return key
	}
	return key[:15] + "..." + key[len(key)-4:]
}
