package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rsams/attendance-service/internal/domain"
	"github.com/rsams/attendance-service/internal/events"
	"github.com/rsams/attendance-service/internal/repository"
)

// memoryRepo is an in-memory AccountRepository with the same conditional
// semantics as the SQL stores.
type memoryRepo struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	failNext error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{accounts: make(map[string]*domain.Account)}
}

func (r *memoryRepo) takeErr() error {
	err := r.failNext
	r.failNext = nil
	return err
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	switch p := a.Profile.(type) {
	case *domain.StudentProfile:
		cp := *p
		c.Profile = &cp
	case *domain.TeacherProfile:
		cp := *p
		c.Profile = &cp
	}
	return &c
}

func (r *memoryRepo) get(id string) *domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		return cloneAccount(a)
	}
	return nil
}

func (r *memoryRepo) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeErr(); err != nil {
		return nil, err
	}
	for _, a := range r.accounts {
		if a.Email == email {
			return cloneAccount(a), nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

func (r *memoryRepo) FindByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeErr(); err != nil {
		return nil, err
	}
	if a, ok := r.accounts[id]; ok {
		return cloneAccount(a), nil
	}
	return nil, repository.ErrAccountNotFound
}

func (r *memoryRepo) CreateWithProfile(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeErr(); err != nil {
		return err
	}
	newSP, isStudent := account.Profile.(*domain.StudentProfile)
	for _, a := range r.accounts {
		if a.Email == account.Email {
			return repository.ErrDuplicateEmail
		}
		if sp, ok := a.Profile.(*domain.StudentProfile); ok && isStudent && sp.StudentID == newSP.StudentID {
			return repository.ErrDuplicateStudentID
		}
	}
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	r.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (r *memoryRepo) RecordFailedLogin(_ context.Context, id string, now time.Time, maxAttempts int, lockFor time.Duration) (*domain.LoginCounters, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	if a.IsLocked(now) {
		return nil, repository.ErrAccountLocked
	}
	a.FailedLoginCount++
	if a.FailedLoginCount >= maxAttempts {
		until := now.Add(lockFor)
		a.LockedUntil = &until
	}
	return &domain.LoginCounters{FailedLoginCount: a.FailedLoginCount, LockedUntil: a.LockedUntil}, nil
}

func (r *memoryRepo) RecordSuccessfulLogin(_ context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	if a.IsLocked(now) {
		return repository.ErrAccountLocked
	}
	a.FailedLoginCount = 0
	a.LockedUntil = nil
	a.LastLoginAt = &now
	return nil
}

func (r *memoryRepo) mutate(id string, fn func(a *domain.Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeErr(); err != nil {
		return err
	}
	a, ok := r.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	fn(a)
	return nil
}

func (r *memoryRepo) UpdatePassword(_ context.Context, id, hash string) error {
	return r.mutate(id, func(a *domain.Account) { a.PasswordHash = hash })
}

func (r *memoryRepo) UpdateProfile(_ context.Context, id string, _ domain.Role, u domain.ProfileUpdate) error {
	return r.mutate(id, func(a *domain.Account) {
		switch p := a.Profile.(type) {
		case *domain.StudentProfile:
			applyUpdate(&p.Name, &p.Phone, &p.Address, u)
		case *domain.TeacherProfile:
			applyUpdate(&p.Name, &p.Phone, &p.Address, u)
		}
	})
}

func applyUpdate(name, phone, address *string, u domain.ProfileUpdate) {
	if u.Name != nil {
		*name = *u.Name
	}
	if u.Phone != nil {
		*phone = *u.Phone
	}
	if u.Address != nil {
		*address = *u.Address
	}
}

func (r *memoryRepo) SetActive(_ context.Context, id string, active bool) error {
	return r.mutate(id, func(a *domain.Account) { a.IsActive = active })
}

func (r *memoryRepo) Unlock(_ context.Context, id string) error {
	return r.mutate(id, func(a *domain.Account) {
		a.FailedLoginCount = 0
		a.LockedUntil = nil
	})
}

func (r *memoryRepo) List(_ context.Context, f domain.AccountFilter) (*domain.AccountPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []domain.Account
	for _, a := range r.accounts {
		if f.Role != nil && a.Role != *f.Role {
			continue
		}
		if f.Search != "" {
			needle := strings.ToLower(f.Search)
			name := ""
			if a.Profile != nil {
				name = a.Profile.DisplayName()
			}
			if !strings.Contains(a.Email, needle) && !strings.Contains(strings.ToLower(name), needle) {
				continue
			}
		}
		matched = append(matched, *cloneAccount(a))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Email < matched[j].Email })
	page := &domain.AccountPage{Total: int64(len(matched))}
	end := f.Offset + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	if f.Offset < len(matched) {
		page.Accounts = matched[f.Offset:end]
	}
	return page, nil
}

func (r *memoryRepo) CountByRole(_ context.Context, now time.Time) (map[domain.Role]domain.RoleStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeErr(); err != nil {
		return nil, err
	}
	out := make(map[domain.Role]domain.RoleStats)
	for _, a := range r.accounts {
		s := out[a.Role]
		s.Total++
		if a.IsActive {
			s.Active++
		}
		if a.IsLocked(now) {
			s.Locked++
		}
		out[a.Role] = s
	}
	return out, nil
}

// plainHasher keeps tests fast; bcrypt is covered in the auth package.
type plainHasher struct{}

func (plainHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }
func (plainHasher) Verify(plain, digest string) bool  { return digest == "hashed:"+plain }

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func newRecordingDispatcher() (events.Dispatcher, *eventRecorder) {
	d := events.NewInMemoryDispatcher(nil)
	rec := &eventRecorder{}
	for _, t := range events.AllEventTypes {
		d.Subscribe(t, func(_ context.Context, e events.Event) error {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.events = append(rec.events, e)
			return nil
		})
	}
	return d, rec
}

func (r *eventRecorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
