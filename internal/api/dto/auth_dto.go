package dto

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rsams/attendance-service/internal/domain"
)

const minPasswordLength = 8

// RegisterRequest payload for self registration.
type RegisterRequest struct {
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	Role      domain.Role `json:"role"`
	Name      string      `json:"name"`
	StudentID string      `json:"studentId"`
	Phone     string      `json:"phone"`
	Address   string      `json:"address"`
}

// Validate checks the request before it reaches the authenticator.
func (r RegisterRequest) Validate() error {
	var errs fieldErrors
	if !isEmail(r.Email) {
		errs.add("email", "Valid email is required")
	}
	if utf8.RuneCountInString(r.Password) < minPasswordLength {
		errs.add("password", "Password must be at least 8 characters long")
	} else if !strongPassword(r.Password) {
		errs.add("password", "Password must contain at least one lowercase letter, one uppercase letter, and one number")
	}
	if !validRole(r.Role, domain.RoleStudent, domain.RoleTeacher) {
		errs.add("role", "Role must be either STUDENT or TEACHER")
	}
	if !lengthBetween(r.Name, 2, 100) {
		errs.add("name", "Name must be between 2 and 100 characters")
	}
	if strings.TrimSpace(r.StudentID) != "" && !lengthBetween(r.StudentID, 3, 20) {
		errs.add("studentId", "Student ID must be between 3 and 20 characters")
	}
	return errs.err()
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the request shape.
func (r LoginRequest) Validate() error {
	var errs fieldErrors
	if !isEmail(r.Email) {
		errs.add("email", "Valid email is required")
	}
	if r.Password == "" {
		errs.add("password", "Password is required")
	}
	return errs.err()
}

// ChangePasswordRequest payload for PUT /auth/change-password. Policy checks
// happen in the authenticator.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// UpdateProfileRequest payload for PUT /auth/profile.
type UpdateProfileRequest struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

// Validate checks optional fields that are present.
func (r UpdateProfileRequest) Validate() error {
	var errs fieldErrors
	if r.Name != nil && !lengthBetween(*r.Name, 2, 100) {
		errs.add("name", "Name must be between 2 and 100 characters")
	}
	return errs.err()
}

// ProfileUpdate converts the request to its domain form.
func (r UpdateProfileRequest) ProfileUpdate() domain.ProfileUpdate {
	return domain.ProfileUpdate{Name: trimmed(r.Name), Phone: trimmed(r.Phone), Address: trimmed(r.Address)}
}

// AuthResponse carries a signed token and the account it belongs to.
type AuthResponse struct {
	User      AccountResponse `json:"user"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// NewAuthResponse builds the response for a session.
func NewAuthResponse(session *domain.Session) AuthResponse {
	return AuthResponse{
		User:      NewAccountResponse(session.Account),
		Token:     session.Token.Value,
		ExpiresAt: session.Token.ExpiresAt.UTC(),
	}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
