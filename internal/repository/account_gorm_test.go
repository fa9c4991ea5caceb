package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rsams/attendance-service/internal/domain"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, MigrateGorm(db))
	return db
}

func newStudent(email, studentID, name string) *domain.Account {
	id := uuid.NewString()
	return &domain.Account{
		ID:           id,
		Email:        email,
		PasswordHash: "hash",
		Role:         domain.RoleStudent,
		IsActive:     true,
		Profile: &domain.StudentProfile{
			ID:        uuid.NewString(),
			AccountID: id,
			Name:      name,
			StudentID: studentID,
			Phone:     "555-0100",
		},
	}
}

func newTeacher(email, name string) *domain.Account {
	id := uuid.NewString()
	return &domain.Account{
		ID:           id,
		Email:        email,
		PasswordHash: "hash",
		Role:         domain.RoleTeacher,
		IsActive:     true,
		Profile:      &domain.TeacherProfile{ID: uuid.NewString(), AccountID: id, Name: name},
	}
}

func TestGormAccountRepository_CreateAndFind(t *testing.T) {
	repo := NewGormAccountRepository(setupTestDB(t))
	ctx := context.Background()

	student := newStudent("alice@example.com", "ST1", "Alice")
	require.NoError(t, repo.CreateWithProfile(ctx, student))
	assert.False(t, student.CreatedAt.IsZero())

	got, err := repo.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, student.ID, got.ID)
	assert.Equal(t, domain.RoleStudent, got.Role)
	assert.True(t, got.IsActive)
	assert.Zero(t, got.FailedLoginCount)
	assert.Nil(t, got.LockedUntil)

	profile, ok := got.StudentProfile()
	require.True(t, ok)
	assert.Equal(t, "Alice", profile.Name)
	assert.Equal(t, "ST1", profile.StudentID)
	assert.Equal(t, "555-0100", profile.Phone)
	assert.Empty(t, profile.Address)

	byID, err := repo.FindByID(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", byID.Email)
}

func TestGormAccountRepository_AdminHasNoProfile(t *testing.T) {
	repo := NewGormAccountRepository(setupTestDB(t))
	ctx := context.Background()

	admin := &domain.Account{ID: uuid.NewString(), Email: "root@example.com", PasswordHash: "h", Role: domain.RoleAdmin, IsActive: true}
	require.NoError(t, repo.CreateWithProfile(ctx, admin))

	got, err := repo.FindByID(ctx, admin.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Profile)
}

func TestGormAccountRepository_NotFound(t *testing.T) {
	repo := NewGormAccountRepository(setupTestDB(t))
	ctx := context.Background()

	_, err := repo.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.ErrorIs(t, repo.SetActive(ctx, "missing", false), ErrAccountNotFound)
	assert.ErrorIs(t, repo.UpdatePassword(ctx, "missing", "x"), ErrAccountNotFound)
	_, err = repo.RecordFailedLogin(ctx, "missing", time.Now(), 5, time.Minute)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestGormAccountRepository_DuplicateEmail(t *testing.T) {
	repo := NewGormAccountRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.CreateWithProfile(ctx, newStudent("dup@example.com", "ST1", "First")))
	err := repo.CreateWithProfile(ctx, newTeacher("dup@example.com", "Second"))
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	got, err := repo.FindByEmail(ctx, "dup@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStudent, got.Role)
}

func TestGormAccountRepository_DuplicateStudentIDRollsBackAccount(t *testing.T) {
	repo := NewGormAccountRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.CreateWithProfile(ctx, newStudent("one@example.com", "ST42", "One")))
	err := repo.CreateWithProfile(ctx, newStudent("two@example.com", "ST42", "Two"))
	assert.ErrorIs(t, err, ErrDuplicateStudentID)

	_, err = repo.FindByEmail(ctx, "two@example.com")
	assert.ErrorIs(t, err, ErrAccountNotFound, "account must not outlive its failed profile insert")
}

func TestGormAccountRepository_FailedLoginLocksAtThreshold(t *testing.T) {
	repo := NewGormAccountRepository(setupTestDB(t))
	ctx := context.Background()
	acc := newStudent("lock@example.com", "ST1", "Lock")
	require.NoError(t, repo.CreateWithProfile(ctx, acc))

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 1; i <= 2; i++ {
		c, err := repo.RecordFailedLogin(ctx, acc.ID, now, 3, 30*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, c.FailedLoginCount)
		assert.Nil(t, c.LockedUntil)
	}

	c, err := repo.RecordFailedLogin(ctx, acc.ID, now, 3, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 3, c.FailedLoginCount)
	require.NotNil(t, c.LockedUntil)
	assert.True(t, c.LockedUntil.Equal(now.Add(30*time.Minute)))

	// locked: neither counter nor lock move
	_, err = repo.RecordFailedLogin(ctx, acc.ID, now.Add(time.Minute), 3, 30*time.Minute)
	assert.ErrorIs(t, err, ErrAccountLocked)
	assert.ErrorIs(t, repo.RecordSuccessfulLogin(ctx, acc.ID, now.Add(time.Minute)), ErrAccountLocked)

	got, err := repo.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.FailedLoginCount)

	// expired lock: success resets everything
	later := now.Add(31 * time.Minute)
	require.NoError(t, repo.RecordSuccessfulLogin(ctx, acc.ID, later))
	got, err = repo.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Zero(t, got.FailedLoginCount)
	assert.Nil(t, got.LockedUntil)
	require.NotNil(t, got.LastLoginAt)
	assert.True(t, got.LastLoginAt.Equal(later))
}

func TestGormAccountRepository_ConcurrentFailuresAreAllCounted(t *testing.T) {
	repo := NewGormAccountRepository(setupTestDB(t))
	ctx := context.Background()
	acc := newStudent("race@example.com", "ST1", "Race")
	require.NoError(t, repo.CreateWithProfile(ctx, acc))

	const attempts = 20
	now := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.RecordFailedLogin(ctx, acc.ID, now, 1000, time.Minute)
		}()
	}
	wg.Wait()

	got, err := repo.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, attempts, got.FailedLoginCount)
}

func TestGormAccountRepository_UnlockAndSetActive(t *testing.T) {
	repo := NewGormAccountRepository(setupTestDB(t))
	ctx := context.Background()
	acc := newStudent("admin-ops@example.com", "ST1", "Ops")
	require.NoError(t, repo.CreateWithProfile(ctx, acc))

	now := time.Now()
	_, err := repo.RecordFailedLogin(ctx, acc.ID, now, 1, time.Hour)
	require.NoError(t, err)

	require.NoError(t, repo.Unlock(ctx, acc.ID))
	require.NoError(t, repo.SetActive(ctx, acc.ID, false))

	got, err := repo.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Zero(t, got.FailedLoginCount)
	assert.Nil(t, got.LockedUntil)
	assert.False(t, got.IsActive)
}

func TestGormAccountRepository_UpdateProfileAndPassword(t *testing.T) {
	repo := NewGormAccountRepository(setupTestDB(t))
	ctx := context.Background()
	acc := newTeacher("t@example.com", "Old Name")
	require.NoError(t, repo.CreateWithProfile(ctx, acc))

	name, addr := "New Name", "1 Main St"
	require.NoError(t, repo.UpdateProfile(ctx, acc.ID, domain.RoleTeacher, domain.ProfileUpdate{Name: &name, Address: &addr}))
	require.NoError(t, repo.UpdatePassword(ctx, acc.ID, "new-hash"))

	got, err := repo.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
	profile, ok := got.TeacherProfile()
	require.True(t, ok)
	assert.Equal(t, "New Name", profile.Name)
	assert.Equal(t, "1 Main St", profile.Address)

	blank := ""
	require.NoError(t, repo.UpdateProfile(ctx, acc.ID, domain.RoleTeacher, domain.ProfileUpdate{Address: &blank}))
	got, err = repo.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	profile, _ = got.TeacherProfile()
	assert.Empty(t, profile.Address)
	assert.Equal(t, "New Name", profile.Name)
}

func TestGormAccountRepository_ListAndCount(t *testing.T) {
	repo := NewGormAccountRepository(setupTestDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.CreateWithProfile(ctx, newStudent(fmt.Sprintf("s%d@example.com", i), fmt.Sprintf("ST%d", i), fmt.Sprintf("Student %d", i))))
	}
	teacher := newTeacher("sarah@example.com", "Sarah Johnson")
	require.NoError(t, repo.CreateWithProfile(ctx, teacher))
	require.NoError(t, repo.SetActive(ctx, teacher.ID, false))

	all, err := repo.List(ctx, domain.AccountFilter{Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 4, all.Total)
	assert.Len(t, all.Accounts, 4)

	role := domain.RoleStudent
	page, err := repo.List(ctx, domain.AccountFilter{Role: &role, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Len(t, page.Accounts, 2)

	found, err := repo.List(ctx, domain.AccountFilter{Search: "johnson"})
	require.NoError(t, err)
	require.EqualValues(t, 1, found.Total)
	assert.Equal(t, teacher.ID, found.Accounts[0].ID)

	// wildcard characters in the search text match literally
	for _, search := range []string{"%", "_", "s_@"} {
		none, err := repo.List(ctx, domain.AccountFilter{Search: search})
		require.NoError(t, err)
		assert.Zero(t, none.Total, "search %q", search)
	}

	stats, err := repo.CountByRole(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStats{Total: 3, Active: 3}, stats[domain.RoleStudent])
	assert.Equal(t, domain.RoleStats{Total: 1, Active: 0}, stats[domain.RoleTeacher])
}
