package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrValidation marks malformed input. The concrete error is a
	// [*ValidationError] carrying per-field messages.
	ErrValidation = errors.New("validation failed")
	// ErrEmailExists is returned by Register when the normalized email is taken.
	ErrEmailExists = errors.New("email already registered")
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotVerified is returned by Login for a correct password on an
	// unverified account.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrNotFound is returned by RequestVerificationEmail for an unknown email.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidToken covers absent, consumed and superseded tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when a token is used at or after its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrRateLimited is matched by every [*RateLimitError].
	ErrRateLimited = errors.New("rate limited")
	// ErrInternal wraps unexpected store, hasher or mailer failures.
	ErrInternal = errors.New("internal error")
	// ErrEngineNotReady is returned by methods on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ValidationError lists per-field problems with a request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) true.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// RateLimitError reports a denied request and when the window resets.
type RateLimitError struct {
	Endpoint   Endpoint
	ResetAt    time.Time
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: %s, retry after %s", ErrRateLimited, e.Endpoint, e.RetryAfter.Round(time.Second))
}

// Is makes errors.Is(err, ErrRateLimited) true.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

func newValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}
