package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewConfigInvalid reports incomplete ticket configuration. The full list of
// problems is carried in details under "errors" so an operator sees every
// defect in one pass.
func NewConfigInvalid(errs []string) error {
	return NewDomainError("CONFIG_INVALID", "ticket configuration is incomplete", http.StatusUnprocessableEntity, map[string]any{"errors": errs})
}

// NewPermissionDenied reports insufficient bot capabilities on configured resources.
func NewPermissionDenied(errs []string) error {
	return NewDomainError("PERMISSION_DENIED", "bot permissions are insufficient", http.StatusUnprocessableEntity, map[string]any{"errors": errs})
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewQuotaExceeded reports a user at their concurrent ticket limit.
func NewQuotaExceeded(current, limit uint) error {
	return NewDomainError("QUOTA_EXCEEDED",
		fmt.Sprintf("open ticket limit reached (%d of %d)", current, limit),
		http.StatusConflict,
		map[string]any{"current": current, "limit": limit})
}

// NewPlatformError wraps a transient messaging platform failure. The original
// error is preserved for operator logs; the user-facing message stays generic.
func NewPlatformError(err error) error {
	return &DomainError{
		Code:       "PLATFORM_ERROR",
		Message:    "messaging platform request failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewPersistenceError wraps a registry or transcript write failure.
func NewPersistenceError(err error) error {
	return &DomainError{
		Code:       "PERSISTENCE_ERROR",
		Message:    "failed to persist ticket state",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsCode reports whether err carries the given DomainError code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == code
}
