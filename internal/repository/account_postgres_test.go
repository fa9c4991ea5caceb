package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsams/attendance-service/internal/domain"
)

// setupPostgres connects to TEST_POSTGRES_DSN, which must point at a database
// with the accounts schema applied. Tables are truncated before each test.
func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE accounts CASCADE`)
	require.NoError(t, err)
	return pool
}

func TestAccountRepository_Postgres(t *testing.T) {
	repo := NewAccountRepository(setupPostgres(t))
	ctx := context.Background()

	student := newStudent("pg@example.com", "ST-PG-1", "Pat")
	require.NoError(t, repo.CreateWithProfile(ctx, student))

	assert.ErrorIs(t, repo.CreateWithProfile(ctx, newTeacher("pg@example.com", "Other")), ErrDuplicateEmail)
	assert.ErrorIs(t, repo.CreateWithProfile(ctx, newStudent("pg2@example.com", "ST-PG-1", "Other")), ErrDuplicateStudentID)
	_, err := repo.FindByEmail(ctx, "pg2@example.com")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	got, err := repo.FindByEmail(ctx, "pg@example.com")
	require.NoError(t, err)
	profile, ok := got.StudentProfile()
	require.True(t, ok)
	assert.Equal(t, "ST-PG-1", profile.StudentID)

	now := time.Now().UTC().Truncate(time.Microsecond)
	_, err = repo.RecordFailedLogin(ctx, student.ID, now, 2, time.Hour)
	require.NoError(t, err)
	counters, err := repo.RecordFailedLogin(ctx, student.ID, now, 2, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, counters.FailedLoginCount)
	require.NotNil(t, counters.LockedUntil)
	assert.True(t, counters.LockedUntil.Equal(now.Add(time.Hour)))

	_, err = repo.RecordFailedLogin(ctx, student.ID, now, 2, time.Hour)
	assert.ErrorIs(t, err, ErrAccountLocked)

	stats, err := repo.CountByRole(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStats{Total: 1, Active: 1, Locked: 1}, stats[domain.RoleStudent])

	require.NoError(t, repo.Unlock(ctx, student.ID))
	require.NoError(t, repo.RecordSuccessfulLogin(ctx, student.ID, now))

	page, err := repo.List(ctx, domain.AccountFilter{Search: "pat", Limit: 5})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
}
