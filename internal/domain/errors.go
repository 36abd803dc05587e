// Package domain contains the core business entities for Constable.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ===========================================
	// Credential Errors
	// ===========================================

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateUsername indicates a user with the same username exists.
	ErrDuplicateUsername = errors.New("username already taken")

	// ErrInvalidCredentialFormat indicates the username or password fails
	// the minimal format rules (non-empty, length bounds).
	ErrInvalidCredentialFormat = errors.New("invalid credential format")

	// ErrInvalidCredentials indicates authentication failed. Deliberately
	// covers both "unknown user" and "wrong password" so callers cannot
	// enumerate usernames.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserInactive indicates the user account is disabled.
	ErrUserInactive = errors.New("user account is inactive")

	// ===========================================
	// Session Token Errors
	// ===========================================

	// ErrTokenInvalid indicates the token is unknown or revoked.
	ErrTokenInvalid = errors.New("token is invalid")

	// ErrTokenExpired indicates the token is past its expiry.
	ErrTokenExpired = errors.New("token has expired")

	// ErrUnauthenticated indicates the request carried no acceptable
	// credential. All token failures collapse into this at the auth gate.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ===========================================
	// Search Errors
	// ===========================================

	// ErrUnknownDimension indicates a filter named a dimension outside the
	// five recognized ones.
	ErrUnknownDimension = errors.New("unknown filter dimension")

	// ErrInvalidFilterValue indicates a filter value is not in the
	// dimension's vocabulary. Usually carried by InvalidFilterValueError.
	ErrInvalidFilterValue = errors.New("invalid filter value")

	// ErrPaginationOutOfRange indicates a negative offset or negative
	// limit. Over-large limits are clamped, not rejected.
	ErrPaginationOutOfRange = errors.New("pagination out of range")

	// ===========================================
	// Infrastructure Errors
	// ===========================================

	// ErrStorageUnavailable indicates the record store could not serve the
	// query. Surfaced as-is; retrying is the caller's decision.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// InvalidFilterValueError names the first offending dimension/value pair
// of a rejected filter request. It unwraps to ErrInvalidFilterValue.
type InvalidFilterValueError struct {
	Dimension Dimension
	Value     string
}

// Error implements the error interface.
func (e *InvalidFilterValueError) Error() string {
	return fmt.Sprintf("invalid value %q for dimension %q", e.Value, e.Dimension)
}

// Unwrap returns ErrInvalidFilterValue for errors.Is checks.
func (e *InvalidFilterValueError) Unwrap() error {
	return ErrInvalidFilterValue
}

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with domain context if it's not already a DomainError.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	return &DomainError{
		Err:     err,
		Message: message,
	}
}
