package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithCauseDoesNotMutateSentinel(t *testing.T) {
	cause := fmt.Errorf("boom")
	wrapped := ErrExtractionFailed.WithCause(cause).WithMessage("Failed to download %s video: %s", "TikTok", "boom")

	assert.Nil(t, ErrExtractionFailed.Cause)
	assert.Equal(t, "Media extraction failed", ErrExtractionFailed.Message)
	assert.Equal(t, "Failed to download TikTok video: boom", wrapped.Message)
	assert.ErrorIs(t, wrapped, cause)
	assert.True(t, errors.Is(wrapped, ErrExtractionFailed))
}

func TestHelpers(t *testing.T) {
	err := fmt.Errorf("outer: %w", ErrInsufficientCredits)

	assert.True(t, IsCustomError(err))
	assert.Equal(t, http.StatusPaymentRequired, GetStatusCode(err))
	assert.Equal(t, "INSUFFICIENT_CREDITS", GetErrorCode(err))
	assert.Equal(t, "Insufficient credits", GetErrorMessage(err))

	plain := errors.New("plain")
	assert.False(t, IsCustomError(plain))
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(plain))
	assert.Equal(t, "UNKNOWN_ERROR", GetErrorCode(plain))
}

func TestIsMatchesByCode(t *testing.T) {
	// Invalid and missing keys share a code but not a message.
	assert.True(t, errors.Is(ErrInvalidKey, ErrUnauthorized))
	assert.False(t, errors.Is(ErrLimitExceeded, ErrRateLimited))
}
