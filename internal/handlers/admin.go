package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/KeremKalyoncu/grabkit/internal/auth"
	apperrors "github.com/KeremKalyoncu/grabkit/internal/errors"
	"github.com/KeremKalyoncu/grabkit/internal/middleware"
)

// AdminHandler exposes the runtime settings
type AdminHandler struct {
	settings *auth.Settings
	logger   *zap.Logger
}

// NewAdminHandler creates an admin handler
func NewAdminHandler(settings *auth.Settings, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{settings: settings, logger: logger}
}

// GetSettings serves GET /admin/settings
func (h *AdminHandler) GetSettings(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success":  true,
		"settings": h.settings.Snapshot(),
	})
}

type settingsUpdate struct {
	RequireAPIKey *bool `json:"requireApiKey"`
}

// UpdateSettings serves PUT /admin/settings
func (h *AdminHandler) UpdateSettings(c *fiber.Ctx) error {
	var req settingsUpdate
	if err := c.BodyParser(&req); err != nil {
		return apperrors.ErrInvalidRequest.WithCause(err)
	}
	if req.RequireAPIKey == nil {
		return apperrors.ErrValidation.WithDetails([]middleware.FieldError{
			{Field: "requireApiKey", Message: "requireApiKey must be a boolean"},
		})
	}

	if err := h.settings.SetRequireAPIKey(c.UserContext(), *req.RequireAPIKey); err != nil {
		return apperrors.ErrInternal.WithCause(err)
	}
	h.logger.Info("Runtime settings updated", zap.Bool("require_api_key", *req.RequireAPIKey))

	return c.JSON(fiber.Map{
		"success":  true,
		"settings": h.settings.Snapshot(),
	})
}
