package dto

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rsams/attendance-service/internal/domain"
	apperrors "github.com/rsams/attendance-service/pkg/util/errorutil"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type fieldErrors []FieldError

func (f *fieldErrors) add(field, message string) {
	*f = append(*f, FieldError{Field: field, Message: message})
}

// err converts collected field errors into a validation DomainError.
func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return apperrors.NewValidationError("Validation failed", map[string]any{"errors": []FieldError(f)})
}

func isEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " <>") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	return at > 0 && strings.Contains(s[at+1:], ".")
}

func lengthBetween(s string, min, max int) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	return n >= min && n <= max
}

// strongPassword requires at least one lowercase letter, one uppercase
// letter and one digit.
func strongPassword(s string) bool {
	var lower, upper, digit bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return lower && upper && digit
}

func validRole(r domain.Role, allowed ...domain.Role) bool {
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}
