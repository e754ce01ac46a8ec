package extractor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"

	"github.com/KeremKalyoncu/grabkit/internal/circuitbreaker"
	apperrors "github.com/KeremKalyoncu/grabkit/internal/errors"
	"github.com/KeremKalyoncu/grabkit/internal/types"
)

func failurePrefix(p types.Platform) string {
	if p == types.PlatformYouTube {
		return "Failed to extract YouTube audio"
	}
	return fmt.Sprintf("Failed to download %s video", p.DisplayName())
}

func invalidURL(p types.Platform, reason string) error {
	return apperrors.ErrInvalidURL.WithMessage("%s: %s", failurePrefix(p), reason)
}

// wrapFailure maps a terminal chain error onto the error taxonomy while
// keeping the last method's reason in the client-facing message
func wrapFailure(p types.Platform, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return classify(err).WithCause(err).WithMessage("%s: %s", failurePrefix(p), err.Error())
}

func classify(err error) *apperrors.CustomError {
	var status *StatusError
	if errors.As(err, &status) {
		switch status.StatusCode {
		case http.StatusNotFound, http.StatusGone:
			return apperrors.ErrNotFound
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return apperrors.ErrUpstreamUnavailable
		}
		return apperrors.ErrExtractionFailed
	}

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) ||
		errors.Is(err, circuitbreaker.ErrTooManyRequests) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return apperrors.ErrUpstreamUnavailable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.ErrUpstreamUnavailable
	}

	return apperrors.ErrExtractionFailed
}
