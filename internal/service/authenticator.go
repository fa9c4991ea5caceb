package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rsams/attendance-service/internal/auth"
	"github.com/rsams/attendance-service/internal/config"
	"github.com/rsams/attendance-service/internal/domain"
	"github.com/rsams/attendance-service/internal/events"
	"github.com/rsams/attendance-service/internal/observability"
	"github.com/rsams/attendance-service/internal/repository"
	apperrors "github.com/rsams/attendance-service/pkg/util/errorutil"
)

// RegisterInput carries the fields needed to create an account and its profile.
type RegisterInput struct {
	Email     string
	Password  string
	Role      domain.Role
	Name      string
	StudentID string
	Phone     string
	Address   string
}

// Authenticator implements registration, login with lockout, token
// verification and password changes.
type Authenticator struct {
	accounts   repository.AccountRepository
	hasher     auth.PasswordHasher
	tokens     *auth.TokenIssuer
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger

	maxAttempts       int
	lockFor           time.Duration
	minPasswordLength int
	now               func() time.Time
}

// AuthenticatorDependencies encapsulates collaborators for the authenticator.
type AuthenticatorDependencies struct {
	Accounts   repository.AccountRepository
	Hasher     auth.PasswordHasher
	Tokens     *auth.TokenIssuer
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewAuthenticator builds the authenticator.
func NewAuthenticator(cfg config.AuthConfig, deps AuthenticatorDependencies) *Authenticator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	minLen := cfg.MinPasswordLength
	if minLen <= 0 {
		minLen = 8
	}
	return &Authenticator{
		accounts:          deps.Accounts,
		hasher:            deps.Hasher,
		tokens:            deps.Tokens,
		dispatcher:        deps.Dispatcher,
		metrics:           deps.Metrics,
		logger:            logger,
		maxAttempts:       cfg.MaxLoginAttempts,
		lockFor:           cfg.LockDuration(),
		minPasswordLength: minLen,
		now:               time.Now,
	}
}

// WithClock overrides the time source.
func (a *Authenticator) WithClock(now func() time.Time) *Authenticator {
	a.now = now
	return a
}

// Register creates a STUDENT or TEACHER account with its profile and signs a
// token for it.
func (a *Authenticator) Register(ctx context.Context, input RegisterInput) (*domain.Session, error) {
	if input.Role != domain.RoleStudent && input.Role != domain.RoleTeacher {
		return nil, apperrors.NewValidationError("Role must be either STUDENT or TEACHER", map[string]any{"role": input.Role})
	}

	account, err := createAccount(ctx, a.accounts, a.hasher, input, a.minPasswordLength, a.now())
	if err != nil {
		a.metrics.RecordAuth("register", outcomeOf(err))
		return nil, err
	}

	token, err := a.tokens.Issue(account.ID, account.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	a.metrics.RecordAuth("register", "success")
	publish(ctx, a.dispatcher, events.EventAccountRegistered, account.ID, events.Actor{ActorID: account.ID, Role: account.Role},
		events.AccountRegisteredPayload{Email: account.Email, Role: account.Role, Source: "self"})
	return &domain.Session{Account: account, Token: token}, nil
}

// Login verifies credentials and applies the lockout policy.
//
// Check order is fixed: existence, lock, password, active flag. A locked
// account is reported before the password is checked; deactivation only
// after a correct password.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	session, err := a.login(ctx, email, password)
	if err != nil {
		a.metrics.RecordAuth("login", outcomeOf(err))
		return nil, err
	}
	a.metrics.RecordAuth("login", "success")
	return session, nil
}

func (a *Authenticator) login(ctx context.Context, email, password string) (*domain.Session, error) {
	now := a.now()

	account, err := a.accounts.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, apperrors.NewInvalidCredentials()
		}
		return nil, apperrors.NewInternalError(err)
	}

	if account.IsLocked(now) {
		return nil, apperrors.NewAccountLocked(account.LockedUntil)
	}

	if !a.hasher.Verify(password, account.PasswordHash) {
		return nil, a.recordFailure(ctx, account, now)
	}

	if !account.IsActive {
		return nil, apperrors.NewAccountDeactivated()
	}

	if err := a.accounts.RecordSuccessfulLogin(ctx, account.ID, now); err != nil {
		switch {
		case errors.Is(err, repository.ErrAccountLocked):
			// a concurrent failure locked the account after our read
			return nil, apperrors.NewAccountLocked(nil)
		case errors.Is(err, repository.ErrAccountNotFound):
			return nil, apperrors.NewInvalidCredentials()
		}
		return nil, apperrors.NewInternalError(err)
	}
	account.FailedLoginCount = 0
	account.LockedUntil = nil
	account.LastLoginAt = &now

	token, err := a.tokens.Issue(account.ID, account.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &domain.Session{Account: account, Token: token}, nil
}

// recordFailure bumps the failure counter and always answers with invalid
// credentials; the lock it may set applies from the next attempt.
func (a *Authenticator) recordFailure(ctx context.Context, account *domain.Account, now time.Time) error {
	counters, err := a.accounts.RecordFailedLogin(ctx, account.ID, now, a.maxAttempts, a.lockFor)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAccountLocked):
			return apperrors.NewAccountLocked(nil)
		case errors.Is(err, repository.ErrAccountNotFound):
			return apperrors.NewInvalidCredentials()
		}
		return apperrors.NewInternalError(err)
	}

	if counters.LockedUntil != nil && counters.LockedUntil.After(now) {
		a.logger.Warn("account locked after failed logins",
			zap.String("account_id", account.ID),
			zap.Int("failed_login_count", counters.FailedLoginCount),
			zap.Time("locked_until", *counters.LockedUntil))
		publish(ctx, a.dispatcher, events.EventAccountLocked, account.ID, events.Actor{},
			events.AccountLockedPayload{FailedLoginCount: counters.FailedLoginCount, LockedUntil: *counters.LockedUntil})
	}
	return apperrors.NewInvalidCredentials()
}

// Authenticate verifies a bearer token and reloads its account so that
// deactivation takes effect on the next request.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*domain.Account, error) {
	claims, err := a.tokens.Verify(strings.TrimSpace(token))
	if err != nil {
		return nil, apperrors.NewUnauthorized("Invalid or expired token")
	}

	account, err := a.accounts.FindByID(ctx, claims.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, apperrors.NewUnauthorized("Invalid token or user not found")
		}
		return nil, apperrors.NewInternalError(err)
	}
	if !account.IsActive {
		return nil, apperrors.NewUnauthorized("Invalid token or user not found")
	}
	return account, nil
}

// ChangePassword replaces the password after checking the current one.
// Failure counters and locks are left untouched.
func (a *Authenticator) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	account, err := a.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return apperrors.NewUnauthorized("Invalid token or user not found")
		}
		return apperrors.NewInternalError(err)
	}

	if !a.hasher.Verify(currentPassword, account.PasswordHash) {
		a.metrics.RecordAuth("change_password", apperrors.CodeInvalidCredentials)
		return apperrors.NewIncorrectCurrentPassword()
	}
	if utf8.RuneCountInString(newPassword) < a.minPasswordLength {
		a.metrics.RecordAuth("change_password", apperrors.CodeWeakPassword)
		return apperrors.NewWeakPassword(a.minPasswordLength)
	}

	hash, err := a.hasher.Hash(newPassword)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := a.accounts.UpdatePassword(ctx, account.ID, hash); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return apperrors.NewUnauthorized("Invalid token or user not found")
		}
		return apperrors.NewInternalError(err)
	}

	a.metrics.RecordAuth("change_password", "success")
	publish(ctx, a.dispatcher, events.EventAccountPasswordChanged, account.ID, events.Actor{ActorID: account.ID, Role: account.Role}, nil)
	return nil
}

// createAccount validates, hashes and persists a new account with the
// profile its role requires. Uniqueness is decided by the store.
func createAccount(ctx context.Context, accounts repository.AccountRepository, hasher auth.PasswordHasher, input RegisterInput, minPasswordLength int, now time.Time) (*domain.Account, error) {
	email := domain.NormalizeEmail(input.Email)
	if email == "" {
		return nil, apperrors.NewValidationError("Valid email is required", map[string]any{"email": input.Email})
	}
	if !input.Role.Valid() {
		return nil, apperrors.NewValidationError("Invalid role", map[string]any{"role": input.Role})
	}
	if utf8.RuneCountInString(input.Password) < minPasswordLength {
		return nil, apperrors.NewValidationError("Password is too short", map[string]any{"min_length": minPasswordLength})
	}
	name := strings.TrimSpace(input.Name)
	if input.Role.HasProfile() && name == "" {
		return nil, apperrors.NewValidationError("Name is required", nil)
	}

	// fast path only; the unique constraint is authoritative
	if _, err := accounts.FindByEmail(ctx, email); err == nil {
		return nil, apperrors.NewDuplicateEmail()
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, apperrors.NewInternalError(err)
	}

	hash, err := hasher.Hash(input.Password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	account := &domain.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         input.Role,
		IsActive:     true,
	}
	switch input.Role {
	case domain.RoleStudent:
		studentID := strings.TrimSpace(input.StudentID)
		if studentID == "" {
			studentID = GenerateStudentID(now)
		}
		account.Profile = &domain.StudentProfile{
			ID:        uuid.NewString(),
			AccountID: account.ID,
			Name:      name,
			StudentID: studentID,
			Phone:     strings.TrimSpace(input.Phone),
			Address:   strings.TrimSpace(input.Address),
		}
	case domain.RoleTeacher:
		account.Profile = &domain.TeacherProfile{
			ID:        uuid.NewString(),
			AccountID: account.ID,
			Name:      name,
			Phone:     strings.TrimSpace(input.Phone),
			Address:   strings.TrimSpace(input.Address),
		}
	}

	if err := accounts.CreateWithProfile(ctx, account); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, apperrors.NewDuplicateEmail()
		case errors.Is(err, repository.ErrDuplicateStudentID):
			return nil, apperrors.NewDuplicateStudentID()
		}
		return nil, apperrors.NewInternalError(err)
	}
	return account, nil
}

func outcomeOf(err error) string {
	return apperrors.ToDomainError(err).Code
}
