package errors

import (
	"errors"
	"fmt"
)

// Common error types for the broker auth proxy
var (
	// Entropy errors
	ErrEntropyUnavailable = errors.New("secure random source unavailable")

	// Authorization flow errors
	ErrStateMismatch    = errors.New("state mismatch")
	ErrNoPendingAttempt = errors.New("no pending authorization attempt")

	// Token errors
	ErrNoStoredToken   = errors.New("no stored token")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrTokenExpired    = errors.New("token expired")

	// Provider errors
	ErrExchangeFailed = errors.New("code exchange failed")
	ErrRefreshFailed  = errors.New("token refresh failed")
	ErrRevokeFailed   = errors.New("token revocation failed")
	ErrNetwork        = errors.New("provider unreachable")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidSession  = errors.New("invalid session")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// ProviderError carries the provider's HTTP status and response body for a
// failed token-endpoint call. It unwraps to ErrExchangeFailed or
// ErrRefreshFailed so callers can branch with errors.Is while still reading
// the provider detail with errors.As.
type ProviderError struct {
	Kind       error // ErrExchangeFailed or ErrRefreshFailed
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: provider returned %d", e.Kind.Error(), e.StatusCode)
}

func (e *ProviderError) Unwrap() error {
	return e.Kind
}

// NewExchangeError builds a ProviderError for a failed authorization-code exchange.
func NewExchangeError(statusCode int, body string) *ProviderError {
	return &ProviderError{Kind: ErrExchangeFailed, StatusCode: statusCode, Body: body}
}

// NewRefreshError builds a ProviderError for a failed refresh exchange.
func NewRefreshError(statusCode int, body string) *ProviderError {
	return &ProviderError{Kind: ErrRefreshFailed, StatusCode: statusCode, Body: body}
}

// NewRevokeError builds a ProviderError for a rejected revocation call.
func NewRevokeError(statusCode int, body string) *ProviderError {
	return &ProviderError{Kind: ErrRevokeFailed, StatusCode: statusCode, Body: body}
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text
func New(text string) error {
	return errors.New(text)
}
