package domain

import (
	"strings"
	"time"
)

// Role enumerates account roles.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
	RoleAdmin   Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// HasProfile reports whether accounts of this role own a profile.
func (r Role) HasProfile() bool {
	return r == RoleStudent || r == RoleTeacher
}

// Account is the authentication identity record.
type Account struct {
	ID               string
	Email            string
	PasswordHash     string
	Role             Role
	IsActive         bool
	FailedLoginCount int
	LockedUntil      *time.Time
	LastLoginAt      *time.Time
	Profile          Profile
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsLocked reports whether the lock is still in effect at now.
func (a *Account) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}

// StudentProfile returns the student profile when the account owns one.
func (a *Account) StudentProfile() (*StudentProfile, bool) {
	p, ok := a.Profile.(*StudentProfile)
	return p, ok && p != nil
}

// TeacherProfile returns the teacher profile when the account owns one.
func (a *Account) TeacherProfile() (*TeacherProfile, bool) {
	p, ok := a.Profile.(*TeacherProfile)
	return p, ok && p != nil
}

// LoginCounters is the lockout state written by a failed login.
type LoginCounters struct {
	FailedLoginCount int
	LockedUntil      *time.Time
}

// NormalizeEmail canonicalizes an email for lookup and uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
