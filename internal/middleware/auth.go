package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/KeremKalyoncu/grabkit/internal/auth"
	apperrors "github.com/KeremKalyoncu/grabkit/internal/errors"
)

// KeyFromRequest returns the first credential found in X-API-Key,
// Authorization: Bearer, ?api_key or ?key
func KeyFromRequest(c *fiber.Ctx) string {
	if key := strings.TrimSpace(c.Get("X-API-Key")); key != "" {
		return key
	}
	if h := c.Get(fiber.HeaderAuthorization); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		if key := strings.TrimSpace(h[7:]); key != "" {
			return key
		}
	}
	if key := c.Query("api_key"); key != "" {
		return key
	}
	return c.Query("key")
}

// CredentialFrom builds the gate input for the request
func CredentialFrom(c *fiber.Ctx) auth.Credential {
	return auth.Credential{Key: KeyFromRequest(c), IP: c.IP()}
}

// SetUsageHeaders copies the decision's quota headers onto the response
func SetUsageHeaders(c *fiber.Ctx, d *auth.Decision) {
	if d == nil {
		return
	}
	for k, v := range d.Headers() {
		c.Set(k, v)
	}
}

// AdminOnly guards routes with the X-Admin-Key header. An empty admin key
// disables the routes entirely.
func AdminOnly(adminKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		given := c.Get("X-Admin-Key")
		if adminKey == "" || given == "" {
			return apperrors.ErrUnauthorized.WithMessage("Admin key required")
		}
		if subtle.ConstantTimeCompare([]byte(given), []byte(adminKey)) != 1 {
			return apperrors.ErrForbidden.WithMessage("Invalid admin key")
		}
		return c.Next()
	}
}
