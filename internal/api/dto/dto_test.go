package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsams/attendance-service/internal/domain"
	apperrors "github.com/rsams/attendance-service/pkg/util/errorutil"
)

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	require.Equal(t, apperrors.CodeValidation, de.Code)
	var fields []string
	for _, fe := range de.Details["errors"].([]FieldError) {
		fields = append(fields, fe.Field)
	}
	return fields
}

func TestRegisterRequest_Validate(t *testing.T) {
	valid := RegisterRequest{Email: "alice@example.com", Password: "Password1", Role: domain.RoleStudent, Name: "Alice"}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(r *RegisterRequest)
		field  string
	}{
		{"bad email", func(r *RegisterRequest) { r.Email = "alice" }, "email"},
		{"display name email", func(r *RegisterRequest) { r.Email = "Alice <alice@example.com>" }, "email"},
		{"short password", func(r *RegisterRequest) { r.Password = "Pa1" }, "password"},
		{"no uppercase", func(r *RegisterRequest) { r.Password = "password1" }, "password"},
		{"no digit", func(r *RegisterRequest) { r.Password = "Passwords" }, "password"},
		{"admin self registration", func(r *RegisterRequest) { r.Role = domain.RoleAdmin }, "role"},
		{"short name", func(r *RegisterRequest) { r.Name = " A " }, "name"},
		{"short student id", func(r *RegisterRequest) { r.StudentID = "S1" }, "studentId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			assert.Equal(t, []string{tt.field}, fieldsOf(t, r.Validate()))
		})
	}
}

func TestLoginRequest_Validate(t *testing.T) {
	assert.NoError(t, LoginRequest{Email: "a@b.co", Password: "x"}.Validate())
	assert.Equal(t, []string{"email", "password"}, fieldsOf(t, LoginRequest{}.Validate()))
}

func TestCreateAccountRequest_AllowsAdmin(t *testing.T) {
	r := CreateAccountRequest{Email: "root@example.com", Password: "admin12345", Role: domain.RoleAdmin, Name: "Root"}
	assert.NoError(t, r.Validate())

	r.Role = "JANITOR"
	assert.Equal(t, []string{"role"}, fieldsOf(t, r.Validate()))
}

func TestAccountResponse_HidesSecrets(t *testing.T) {
	locked := time.Now().Add(time.Hour)
	acc := &domain.Account{
		ID:               "id-1",
		Email:            "alice@example.com",
		PasswordHash:     "$2a$12$secret",
		Role:             domain.RoleStudent,
		IsActive:         true,
		FailedLoginCount: 3,
		LockedUntil:      &locked,
		Profile:          &domain.StudentProfile{ID: "p1", Name: "Alice", StudentID: "ST1"},
	}

	raw, err := json.Marshal(NewAccountResponse(acc))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, secret := range []string{"passwordHash", "password_hash", "failedLoginCount", "loginAttempts", "lockedUntil"} {
		assert.NotContains(t, fields, secret)
	}
	assert.NotContains(t, string(raw), "$2a$12$secret")
	assert.Contains(t, fields, "studentProfile")
	assert.NotContains(t, fields, "teacherProfile")
}

func TestUpdateProfileRequest(t *testing.T) {
	name := "  Bob  "
	r := UpdateProfileRequest{Name: &name}
	require.NoError(t, r.Validate())
	assert.Equal(t, "Bob", *r.ProfileUpdate().Name)
	assert.Nil(t, r.ProfileUpdate().Phone)

	short := "B"
	assert.Equal(t, []string{"name"}, fieldsOf(t, UpdateProfileRequest{Name: &short}.Validate()))
}
