package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Stable machine-readable error codes surfaced to clients.
const (
	CodeValidation         = "VALIDATION_FAILED"
	CodeDuplicateEmail     = "DUPLICATE_EMAIL"
	CodeDuplicateStudentID = "DUPLICATE_STUDENT_ID"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountLocked      = "ACCOUNT_LOCKED"
	CodeAccountDeactivated = "ACCOUNT_DEACTIVATED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeWeakPassword       = "WEAK_PASSWORD"
	CodeNotFound           = "NOT_FOUND"
	CodeInternal           = "INTERNAL_ERROR"
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

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewDuplicateEmail() error {
	return NewDomainError(CodeDuplicateEmail, "User with this email already exists", http.StatusBadRequest, nil)
}

func NewDuplicateStudentID() error {
	return NewDomainError(CodeDuplicateStudentID, "Student ID already exists", http.StatusBadRequest, nil)
}

// NewInvalidCredentials is returned for unknown emails and wrong passwords alike.
func NewInvalidCredentials() error {
	return NewDomainError(CodeInvalidCredentials, "Invalid email or password", http.StatusUnauthorized, nil)
}

// NewIncorrectCurrentPassword is the change-password flavour of invalid
// credentials. The caller is already authenticated, so it maps to 400.
func NewIncorrectCurrentPassword() error {
	return NewDomainError(CodeInvalidCredentials, "Current password is incorrect", http.StatusBadRequest, nil)
}

func NewAccountLocked(until *time.Time) error {
	var details map[string]any
	if until != nil {
		details = map[string]any{"locked_until": until.UTC()}
	}
	return NewDomainError(CodeAccountLocked,
		"Account is temporarily locked due to too many failed login attempts",
		http.StatusLocked, details)
}

func NewAccountDeactivated() error {
	return NewDomainError(CodeAccountDeactivated, "Account is deactivated", http.StatusUnauthorized, nil)
}

func NewWeakPassword(minLength int) error {
	return NewDomainError(CodeWeakPassword,
		fmt.Sprintf("New password must be at least %d characters long", minLength),
		http.StatusBadRequest, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
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
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError returns err as a DomainError, wrapping unknown errors as internal.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// HasCode reports whether err carries the given DomainError code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == code
}
