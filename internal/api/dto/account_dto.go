package dto

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rsams/attendance-service/internal/domain"
)

// AccountResponse is the outward view of an account. Password hash, failure
// counter and lock timestamp are never exposed.
type AccountResponse struct {
	ID             string                  `json:"id"`
	Email          string                  `json:"email"`
	Role           domain.Role             `json:"role"`
	IsActive       bool                    `json:"isActive"`
	LastLogin      *time.Time              `json:"lastLogin,omitempty"`
	CreatedAt      time.Time               `json:"createdAt"`
	UpdatedAt      time.Time               `json:"updatedAt"`
	StudentProfile *StudentProfileResponse `json:"studentProfile,omitempty"`
	TeacherProfile *TeacherProfileResponse `json:"teacherProfile,omitempty"`
}

// StudentProfileResponse payload.
type StudentProfileResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StudentID string `json:"studentId"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
}

// TeacherProfileResponse payload.
type TeacherProfileResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// NewAccountResponse maps a domain account.
func NewAccountResponse(a *domain.Account) AccountResponse {
	resp := AccountResponse{
		ID:        a.ID,
		Email:     a.Email,
		Role:      a.Role,
		IsActive:  a.IsActive,
		LastLogin: a.LastLoginAt,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if sp, ok := a.StudentProfile(); ok {
		resp.StudentProfile = &StudentProfileResponse{ID: sp.ID, Name: sp.Name, StudentID: sp.StudentID, Phone: sp.Phone, Address: sp.Address}
	}
	if tp, ok := a.TeacherProfile(); ok {
		resp.TeacherProfile = &TeacherProfileResponse{ID: tp.ID, Name: tp.Name, Phone: tp.Phone, Address: tp.Address}
	}
	return resp
}

// NewAccountResponses maps a slice of accounts.
func NewAccountResponses(accounts []domain.Account) []AccountResponse {
	out := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		out = append(out, NewAccountResponse(&accounts[i]))
	}
	return out
}

// CreateAccountRequest payload for POST /admin/users.
type CreateAccountRequest struct {
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	Role      domain.Role `json:"role"`
	Name      string      `json:"name"`
	StudentID string      `json:"studentId"`
	Phone     string      `json:"phone"`
	Address   string      `json:"address"`
}

// Validate checks the request shape.
func (r CreateAccountRequest) Validate() error {
	var errs fieldErrors
	if !isEmail(r.Email) {
		errs.add("email", "Valid email is required")
	}
	if utf8.RuneCountInString(r.Password) < minPasswordLength {
		errs.add("password", "Password must be at least 8 characters")
	}
	if !validRole(r.Role, domain.RoleStudent, domain.RoleTeacher, domain.RoleAdmin) {
		errs.add("role", "Invalid role")
	}
	if !lengthBetween(r.Name, 2, 100) {
		errs.add("name", "Name must be between 2 and 100 characters")
	}
	if strings.TrimSpace(r.StudentID) != "" && !lengthBetween(r.StudentID, 3, 20) {
		errs.add("studentId", "Student ID must be between 3 and 20 characters")
	}
	return errs.err()
}

// UpdateAccountRequest payload for PUT /admin/users/:id.
type UpdateAccountRequest struct {
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
	IsActive *bool   `json:"isActive"`
}

// Validate checks optional fields that are present.
func (r UpdateAccountRequest) Validate() error {
	var errs fieldErrors
	if r.Name != nil && strings.TrimSpace(*r.Name) != "" && !lengthBetween(*r.Name, 2, 100) {
		errs.add("name", "Name must be between 2 and 100 characters")
	}
	return errs.err()
}

// Pagination metadata for list responses.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// AccountListResponse payload for GET /admin/users.
type AccountListResponse struct {
	Users      []AccountResponse `json:"users"`
	Pagination Pagination        `json:"pagination"`
}
