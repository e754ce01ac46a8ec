package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// CustomError represents an application error with metadata
type CustomError struct {
	Code       string      // Machine-readable error code
	Message    string      // Human-readable message
	StatusCode int         // HTTP status code
	Cause      error       // Underlying error
	Details    interface{} // Additional error details
}

// Error implements the error interface
func (e *CustomError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CustomError) Unwrap() error {
	return e.Cause
}

// Is matches any CustomError carrying the same code
func (e *CustomError) Is(target error) bool {
	t, ok := target.(*CustomError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewCustomError creates a new custom error
func NewCustomError(code string, message string, statusCode int) *CustomError {
	return &CustomError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

func (e *CustomError) clone() *CustomError {
	c := *e
	return &c
}

// WithCause returns a copy carrying the underlying error.
// The predefined values below are shared, so they are never modified in place.
func (e *CustomError) WithCause(err error) *CustomError {
	c := e.clone()
	c.Cause = err
	return c
}

// WithDetails returns a copy carrying additional details
func (e *CustomError) WithDetails(details interface{}) *CustomError {
	c := e.clone()
	c.Details = details
	return c
}

// WithMessage returns a copy with a replaced human-readable message
func (e *CustomError) WithMessage(format string, args ...interface{}) *CustomError {
	c := e.clone()
	c.Message = fmt.Sprintf(format, args...)
	return c
}

// Pre-defined errors
var (
	// Validation errors (400)
	ErrInvalidURL = NewCustomError(
		"INVALID_URL",
		"The provided URL is invalid or not supported",
		http.StatusBadRequest,
	)

	ErrValidation = NewCustomError(
		"VALIDATION_FAILED",
		"Validation failed",
		http.StatusBadRequest,
	)

	ErrInvalidRequest = NewCustomError(
		"INVALID_REQUEST",
		"Request body is invalid or missing required fields",
		http.StatusBadRequest,
	)

	ErrInvalidFormat = NewCustomError(
		"INVALID_FORMAT",
		"The specified format is not supported",
		http.StatusBadRequest,
	)

	// Authorization errors
	ErrUnauthorized = NewCustomError(
		"UNAUTHORIZED",
		"API key required",
		http.StatusUnauthorized,
	)

	ErrInvalidKey = NewCustomError(
		"UNAUTHORIZED",
		"Invalid API key",
		http.StatusUnauthorized,
	)

	ErrInsufficientCredits = NewCustomError(
		"INSUFFICIENT_CREDITS",
		"Insufficient credits",
		http.StatusPaymentRequired,
	)

	ErrForbidden = NewCustomError(
		"FORBIDDEN",
		"API key is disabled",
		http.StatusForbidden,
	)

	ErrLimitExceeded = NewCustomError(
		"LIMIT_EXCEEDED",
		"Usage limit exceeded",
		http.StatusTooManyRequests,
	)

	ErrRateLimited = NewCustomError(
		"RATE_LIMITED",
		"Too many requests. Please try again later",
		http.StatusTooManyRequests,
	)

	// Not found errors (404)
	ErrNotFound = NewCustomError(
		"NOT_FOUND",
		"The requested content was not found or is private",
		http.StatusNotFound,
	)

	ErrJobNotFound = NewCustomError(
		"JOB_NOT_FOUND",
		"The requested job was not found",
		http.StatusNotFound,
	)

	ErrRouteNotFound = NewCustomError(
		"ROUTE_NOT_FOUND",
		"Endpoint not found",
		http.StatusNotFound,
	)

	// Upstream errors
	ErrExtractionFailed = NewCustomError(
		"EXTRACTION_FAILED",
		"Media extraction failed",
		http.StatusBadGateway,
	)

	ErrUpstreamUnavailable = NewCustomError(
		"UPSTREAM_UNAVAILABLE",
		"Unable to reach the platform. Please try again later.",
		http.StatusServiceUnavailable,
	)

	ErrURLExpired = NewCustomError(
		"URL_EXPIRED",
		"Video URL has expired. Please fetch a new URL.",
		http.StatusForbidden,
	)

	// Server errors (500)
	ErrInternal = NewCustomError(
		"INTERNAL_ERROR",
		"An internal server error occurred",
		http.StatusInternalServerError,
	)

	ErrQueueFailed = NewCustomError(
		"QUEUE_ERROR",
		"Failed to queue archive job",
		http.StatusInternalServerError,
	)

	ErrStorageFailed = NewCustomError(
		"STORAGE_ERROR",
		"Storage operation failed",
		http.StatusInternalServerError,
	)

	ErrProcessingFailed = NewCustomError(
		"PROCESSING_ERROR",
		"Failed to process media",
		http.StatusInternalServerError,
	)

	ErrConfigInvalid = NewCustomError(
		"CONFIG_ERROR",
		"Configuration is invalid",
		http.StatusInternalServerError,
	)
)

// IsCustomError checks if an error is a CustomError
func IsCustomError(err error) bool {
	var customErr *CustomError
	return errors.As(err, &customErr)
}

// As returns the CustomError in err's chain, if any
func As(err error) (*CustomError, bool) {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr, true
	}
	return nil, false
}

// GetStatusCode extracts HTTP status code from an error
func GetStatusCode(err error) int {
	if customErr, ok := As(err); ok {
		return customErr.StatusCode
	}
	return http.StatusInternalServerError
}

// GetErrorCode extracts error code from an error
func GetErrorCode(err error) string {
	if customErr, ok := As(err); ok {
		return customErr.Code
	}
	return "UNKNOWN_ERROR"
}

// GetErrorMessage extracts human-readable message from an error
func GetErrorMessage(err error) string {
	if customErr, ok := As(err); ok {
		return customErr.Message
	}
	return "An unknown error occurred"
}
