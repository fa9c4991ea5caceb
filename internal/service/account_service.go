package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rsams/attendance-service/internal/auth"
	"github.com/rsams/attendance-service/internal/domain"
	"github.com/rsams/attendance-service/internal/events"
	"github.com/rsams/attendance-service/internal/repository"
	apperrors "github.com/rsams/attendance-service/pkg/util/errorutil"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// StatsInvalidator drops cached account statistics.
type StatsInvalidator interface {
	Invalidate(ctx context.Context) error
}

// AccountUpdate carries optional administrative edits.
type AccountUpdate struct {
	Name     *string
	Phone    *string
	Address  *string
	IsActive *bool
}

// ListAccountsInput selects a page of accounts.
type ListAccountsInput struct {
	Role   *domain.Role
	Search string
	Page   int
	Limit  int
}

// AccountList is a page of accounts with pagination metadata.
type AccountList struct {
	Accounts []domain.Account
	Page     int
	Limit    int
	Total    int64
	Pages    int
}

// AccountService implements administrative account management and
// self-service profile edits.
type AccountService struct {
	accounts          repository.AccountRepository
	hasher            auth.PasswordHasher
	dispatcher        events.Dispatcher
	stats             StatsInvalidator
	logger            *zap.Logger
	minPasswordLength int
	now               func() time.Time
}

// AccountServiceDependencies encapsulates collaborators for AccountService.
type AccountServiceDependencies struct {
	Accounts   repository.AccountRepository
	Hasher     auth.PasswordHasher
	Dispatcher events.Dispatcher
	Stats      StatsInvalidator
	Logger     *zap.Logger
}

// NewAccountService builds the service.
func NewAccountService(minPasswordLength int, deps AccountServiceDependencies) *AccountService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if minPasswordLength <= 0 {
		minPasswordLength = 8
	}
	return &AccountService{
		accounts:          deps.Accounts,
		hasher:            deps.Hasher,
		dispatcher:        deps.Dispatcher,
		stats:             deps.Stats,
		logger:            logger,
		minPasswordLength: minPasswordLength,
		now:               time.Now,
	}
}

// CreateAccount creates an account of any role. No token is issued.
func (s *AccountService) CreateAccount(ctx context.Context, actor events.Actor, input RegisterInput) (*domain.Account, error) {
	account, err := createAccount(ctx, s.accounts, s.hasher, input, s.minPasswordLength, s.now())
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	publish(ctx, s.dispatcher, events.EventAccountRegistered, account.ID, actor,
		events.AccountRegisteredPayload{Email: account.Email, Role: account.Role, Source: "admin"})
	return account, nil
}

// ListAccounts returns one page of accounts, newest first.
func (s *AccountService) ListAccounts(ctx context.Context, input ListAccountsInput) (*AccountList, error) {
	page := input.Page
	if page < 1 {
		page = 1
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if input.Role != nil && !input.Role.Valid() {
		return nil, apperrors.NewValidationError("Invalid role", map[string]any{"role": *input.Role})
	}

	result, err := s.accounts.List(ctx, domain.AccountFilter{
		Role:   input.Role,
		Search: strings.TrimSpace(input.Search),
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	return &AccountList{
		Accounts: result.Accounts,
		Page:     page,
		Limit:    limit,
		Total:    result.Total,
		Pages:    int(math.Ceil(float64(result.Total) / float64(limit))),
	}, nil
}

// GetAccount loads a single account.
func (s *AccountService) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, id)
	}
	return account, nil
}

// UpdateAccount applies profile edits and the active flag.
func (s *AccountService) UpdateAccount(ctx context.Context, actor events.Actor, id string, update AccountUpdate) (*domain.Account, error) {
	if update.IsActive != nil && !*update.IsActive && actor.ActorID == id {
		return nil, apperrors.NewValidationError("Cannot deactivate your own account", nil)
	}

	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, id)
	}

	// name is required and ignores blanks; blank phone or address clears it
	profile := domain.ProfileUpdate{Name: nonEmpty(update.Name), Phone: trimmed(update.Phone), Address: trimmed(update.Address)}
	if !profile.Empty() && account.Role.HasProfile() {
		if err := s.accounts.UpdateProfile(ctx, id, account.Role, profile); err != nil {
			return nil, mapRepoError(err, id)
		}
	}

	if update.IsActive != nil && *update.IsActive != account.IsActive {
		if err := s.accounts.SetActive(ctx, id, *update.IsActive); err != nil {
			return nil, mapRepoError(err, id)
		}
		s.invalidateStats(ctx)
		if !*update.IsActive {
			publish(ctx, s.dispatcher, events.EventAccountDeactivated, id, actor, nil)
		}
	}

	return s.GetAccount(ctx, id)
}

// DeactivateAccount soft deletes an account. Existing tokens stop working on
// their next use.
func (s *AccountService) DeactivateAccount(ctx context.Context, actor events.Actor, id string) error {
	if actor.ActorID == id {
		return apperrors.NewValidationError("Cannot deactivate your own account", nil)
	}
	if err := s.accounts.SetActive(ctx, id, false); err != nil {
		return mapRepoError(err, id)
	}
	s.invalidateStats(ctx)
	publish(ctx, s.dispatcher, events.EventAccountDeactivated, id, actor, nil)
	return nil
}

// UnlockAccount clears the lock and failure counter.
func (s *AccountService) UnlockAccount(ctx context.Context, actor events.Actor, id string) (*domain.Account, error) {
	if err := s.accounts.Unlock(ctx, id); err != nil {
		return nil, mapRepoError(err, id)
	}
	s.invalidateStats(ctx)
	publish(ctx, s.dispatcher, events.EventAccountUnlocked, id, actor, nil)
	return s.GetAccount(ctx, id)
}

// UpdateOwnProfile edits the caller's own profile. ADMIN accounts have none.
func (s *AccountService) UpdateOwnProfile(ctx context.Context, account *domain.Account, update domain.ProfileUpdate) (*domain.Account, error) {
	if !account.Role.HasProfile() {
		return nil, apperrors.NewValidationError("Account has no profile", map[string]any{"role": account.Role})
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, apperrors.NewValidationError("Name cannot be empty", nil)
	}
	if !update.Empty() {
		if err := s.accounts.UpdateProfile(ctx, account.ID, account.Role, update); err != nil {
			return nil, mapRepoError(err, account.ID)
		}
	}
	return s.GetAccount(ctx, account.ID)
}

func (s *AccountService) invalidateStats(ctx context.Context) {
	if s.stats == nil {
		return
	}
	if err := s.stats.Invalidate(ctx); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func mapRepoError(err error, id string) error {
	if errors.Is(err, repository.ErrAccountNotFound) {
		return apperrors.NewNotFound("User", map[string]any{"id": id})
	}
	return apperrors.NewInternalError(err)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
