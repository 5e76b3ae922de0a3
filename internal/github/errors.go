package github

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/nikhilbhatia/commitcanvas/internal/pkg/errors"
)

// apiError is the provider's error envelope.
type apiError struct {
	StatusCode int
	Message    string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("github: %s (status %d)", e.Message, e.StatusCode)
}

// classify maps a provider error to the engine's error taxonomy.
// Non-fast-forward ref updates are surfaced as RemoteConflict so bulk
// callers can count them and keep going.
func classify(e *apiError) *errors.AppError {
	msg := strings.ToLower(e.Message)

	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return errors.RemoteAuthFailure(e)
	case e.StatusCode == http.StatusNotFound:
		return errors.RemoteNotFound("resource", e)
	case e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode == http.StatusForbidden && strings.Contains(msg, "rate limit"):
		return errors.RemoteRateLimited(e)
	case e.StatusCode == http.StatusForbidden:
		return errors.RemoteAuthFailure(e)
	case e.StatusCode == http.StatusUnprocessableEntity && strings.Contains(msg, "fast forward"):
		return errors.RemoteConflict(e)
	case e.StatusCode == http.StatusConflict:
		return errors.RemoteConflict(e)
	default:
		return errors.RemoteUnknown(e)
	}
}

// IsConflict reports whether the error is a recoverable non-fast-forward
// conflict.
func IsConflict(err error) bool {
	return errors.IsCode(err, errors.ErrCodeRemoteConflict)
}

// IsRateLimited reports whether the provider throttled the request.
func IsRateLimited(err error) bool {
	return errors.IsCode(err, errors.ErrCodeRemoteRateLimited)
}
