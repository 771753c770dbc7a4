// Package domain contains the core business entities for Vaultbox.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates a user with the same username exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrInvalidCredentials indicates authentication failed.
	// Returned identically for unknown users and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidRole indicates the role is not admin or user.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidInput indicates a required field is missing or malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ===========================================
	// Authorization Errors
	// ===========================================

	// ErrUnauthorized indicates the caller has no session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller's role does not permit the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrSelfDeletion indicates an admin attempted to delete their own account.
	ErrSelfDeletion = errors.New("admin cannot delete themselves")

	// ===========================================
	// Object Errors
	// ===========================================

	// ErrObjectNotFound indicates the object does not exist or belongs to
	// someone else. The two cases are deliberately indistinguishable.
	ErrObjectNotFound = errors.New("file not found or access denied")

	// ErrNoFileProvided indicates an upload carried no files.
	ErrNoFileProvided = errors.New("no file provided")

	// ErrFileTooLarge indicates a file exceeded the configured size limit.
	ErrFileTooLarge = errors.New("file too large")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., username, file id).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}
