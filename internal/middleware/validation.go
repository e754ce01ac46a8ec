package middleware

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/KeremKalyoncu/grabkit/internal/errors"
)

// FieldError describes one invalid request field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func invalidField(field, message string) error {
	return apperrors.ErrValidation.WithDetails([]FieldError{{Field: field, Message: message}})
}

// ValidateMediaURL requires a non-empty absolute http(s) URL
func ValidateMediaURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return invalidField("url", "URL is required")
	}
	if !IsHTTPURL(raw) {
		return invalidField("url", "URL must be a valid http(s) URL")
	}
	return nil
}

// IsHTTPURL reports whether raw parses as an absolute http or https URL
func IsHTTPURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// URLRequest is the body accepted by the POST extraction endpoints
type URLRequest struct {
	URL string `json:"url" form:"url"`
}

// ParseURLRequest reads {url} from the body, falling back to ?url=
func ParseURLRequest(c *fiber.Ctx) (string, error) {
	var req URLRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return "", apperrors.ErrInvalidRequest.WithCause(err)
		}
	}
	if req.URL == "" {
		req.URL = c.Query("url")
	}
	return strings.TrimSpace(req.URL), nil
}
