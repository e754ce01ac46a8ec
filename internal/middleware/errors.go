package middleware

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/KeremKalyoncu/grabkit/internal/errors"
)

// normalize turns framework errors into the application taxonomy
func normalize(err error) error {
	if apperrors.IsCustomError(err) {
		return err
	}
	var fe *fiber.Error
	if !errors.As(err, &fe) {
		return apperrors.ErrInternal.WithCause(err)
	}
	switch fe.Code {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return apperrors.ErrRouteNotFound
	case http.StatusRequestEntityTooLarge:
		return apperrors.ErrInvalidRequest.WithMessage("Request body too large")
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperrors.ErrInvalidRequest.WithCause(err)
	}
	return apperrors.NewCustomError("HTTP_ERROR", fe.Message, fe.Code)
}

// Envelope renders err as the JSON failure body. Causes are only exposed
// outside production.
func Envelope(err error, production bool) fiber.Map {
	err = normalize(err)
	ce, _ := apperrors.As(err)

	body := fiber.Map{
		"success": false,
		"error":   ce.Message,
		"code":    ce.Code,
	}
	if ce.Details != nil {
		body["details"] = ce.Details
	}
	if !production && ce.Cause != nil {
		body["cause"] = ce.Cause.Error()
	}
	return body
}

// StatusOf returns the HTTP status the error handler would use for err
func StatusOf(err error) int {
	return apperrors.GetStatusCode(normalize(err))
}

// ErrorHandler is the fiber error handler producing the failure envelope
func ErrorHandler(logger *zap.Logger, production bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := StatusOf(err)

		fields := []zap.Field{
			zap.Error(err),
			zap.String("path", c.Path()),
			zap.String("method", c.Method()),
			zap.Int("status", status),
			zap.String("error_code", apperrors.GetErrorCode(normalize(err))),
		}
		if status >= http.StatusInternalServerError {
			logger.Error("Request error", fields...)
		} else {
			logger.Debug("Request rejected", fields...)
		}

		return c.Status(status).JSON(Envelope(err, production))
	}
}

// NotFound answers every unmatched route
func NotFound(c *fiber.Ctx) error {
	return apperrors.ErrRouteNotFound
}
