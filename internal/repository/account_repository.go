package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rsams/attendance-service/internal/domain"
)

var (
	// ErrAccountNotFound is returned when no account matches the lookup.
	ErrAccountNotFound = errors.New("account not found")
	// ErrDuplicateEmail is returned when the email unique constraint rejects a write.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateStudentID is returned when the student id unique constraint rejects a write.
	ErrDuplicateStudentID = errors.New("student id already in use")
	// ErrAccountLocked is returned by login counter updates while the lock is in effect.
	ErrAccountLocked = errors.New("account locked")
)

// AccountRepository is the credential store.
//
// RecordFailedLogin and RecordSuccessfulLogin are single conditional writes:
// each applies only while the account is not locked at now, so concurrent
// attempts for the same account cannot lose counter updates.
type AccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	CreateWithProfile(ctx context.Context, account *domain.Account) error
	RecordFailedLogin(ctx context.Context, id string, now time.Time, maxAttempts int, lockFor time.Duration) (*domain.LoginCounters, error)
	RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateProfile(ctx context.Context, id string, role domain.Role, update domain.ProfileUpdate) error
	SetActive(ctx context.Context, id string, active bool) error
	Unlock(ctx context.Context, id string) error
	List(ctx context.Context, filter domain.AccountFilter) (*domain.AccountPage, error)
	CountByRole(ctx context.Context, now time.Time) (map[domain.Role]domain.RoleStats, error)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes search text match literally inside a LIKE pattern that
// declares ESCAPE '\'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
