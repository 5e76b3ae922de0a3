package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application error with additional context.
type AppError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	StatusCode int         `json:"-"`
	Internal   error       `json:"-"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap returns the internal error for errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Error codes used across the commit engine.
const (
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeDatabase           = "DATABASE_ERROR"
	ErrCodeNoActiveRepository = "NO_ACTIVE_REPOSITORY"
	ErrCodeAlreadyCommitted   = "ALREADY_COMMITTED_TODAY"
	ErrCodeTrialExpired       = "TRIAL_EXPIRED"
	ErrCodeRemoteAuth         = "REMOTE_AUTH_FAILURE"
	ErrCodeRemoteNotFound     = "REMOTE_NOT_FOUND"
	ErrCodeRemoteConflict     = "REMOTE_CONFLICT"
	ErrCodeRemoteRateLimited  = "REMOTE_RATE_LIMITED"
	ErrCodeRemoteUnknown      = "UNKNOWN_REMOTE_FAILURE"
	ErrCodeRateLimited        = "RATE_LIMITED"
)

// New creates a new AppError.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with an AppError.
func Wrap(err error, code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Internal:   err,
	}
}

// WithDetails adds details to an AppError.
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// Internal creates an internal server error.
func Internal(message string, err error) *AppError {
	return Wrap(err, ErrCodeInternal, message, http.StatusInternalServerError)
}

// BadRequest creates a bad request error.
func BadRequest(message string) *AppError {
	return New(ErrCodeBadRequest, message, http.StatusBadRequest)
}

// NotFound creates a not found error.
func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// ValidationError creates a validation error.
func ValidationError(message string, details interface{}) *AppError {
	return New(ErrCodeValidation, message, http.StatusBadRequest).WithDetails(details)
}

// DatabaseError creates a database error.
func DatabaseError(message string, err error) *AppError {
	return Wrap(err, ErrCodeDatabase, message, http.StatusInternalServerError)
}

// NoActiveRepository indicates the user has no repository selected for commits.
func NoActiveRepository() *AppError {
	return New(ErrCodeNoActiveRepository, "user has no active repository configured", http.StatusConflict)
}

// TrialExpired indicates a standard-tier user whose trial window has ended.
func TrialExpired() *AppError {
	return New(ErrCodeTrialExpired, "trial period has expired; upgrade required for automatic commits", http.StatusForbidden)
}

// RemoteAuthFailure indicates the git provider rejected our credentials.
func RemoteAuthFailure(err error) *AppError {
	return Wrap(err, ErrCodeRemoteAuth, "git provider authentication failed", http.StatusBadGateway)
}

// RemoteNotFound indicates a missing remote repository, branch or object.
func RemoteNotFound(what string, err error) *AppError {
	return Wrap(err, ErrCodeRemoteNotFound, fmt.Sprintf("remote %s not found", what), http.StatusBadGateway)
}

// RemoteConflict marks a non-fast-forward ref update. Recoverable: bulk
// callers count it and continue instead of aborting the run.
func RemoteConflict(err error) *AppError {
	return Wrap(err, ErrCodeRemoteConflict, "branch moved during update (non-fast-forward)", http.StatusConflict)
}

// RemoteRateLimited indicates the provider throttled us; transient.
func RemoteRateLimited(err error) *AppError {
	return Wrap(err, ErrCodeRemoteRateLimited, "git provider rate limit exceeded", http.StatusTooManyRequests)
}

// RemoteUnknown wraps any other provider failure.
func RemoteUnknown(err error) *AppError {
	return Wrap(err, ErrCodeRemoteUnknown, "git provider request failed", http.StatusBadGateway)
}

// RateLimited creates a rate limit error for the API surface.
func RateLimited(message string) *AppError {
	return New(ErrCodeRateLimited, message, http.StatusTooManyRequests)
}

// CodeOf extracts the application error code from any error.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given application error code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}
