package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rsams/attendance-service/internal/domain"
)

const (
	pgUniqueViolation = "23505"

	constraintAccountEmail     = "accounts_email_key"
	constraintStudentProfileID = "student_profiles_student_id_key"
)

const accountSelect = `
        SELECT a.id, a.email, a.password_hash, a.role, a.is_active,
               a.failed_login_count, a.locked_until, a.last_login_at,
               a.created_at, a.updated_at,
               sp.id, sp.name, sp.student_id, sp.phone, sp.address,
               tp.id, tp.name, tp.phone, tp.address
        FROM accounts a
        LEFT JOIN student_profiles sp ON sp.account_id = a.id
        LEFT JOIN teacher_profiles tp ON tp.account_id = a.id`

type accountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository returns a Postgres-backed implementation.
func NewAccountRepository(pool *pgxpool.Pool) AccountRepository {
	return &accountRepository{pool: pool}
}

func (r *accountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, accountSelect+` WHERE a.email=$1`, email)
}

func (r *accountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.findOne(ctx, accountSelect+` WHERE a.id=$1`, id)
}

func (r *accountRepository) findOne(ctx context.Context, query string, arg any) (*domain.Account, error) {
	account, err := scanAccount(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func (r *accountRepository) CreateWithProfile(ctx context.Context, account *domain.Account) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const insertAccount = `
        INSERT INTO accounts (id, email, password_hash, role, is_active, failed_login_count)
        VALUES ($1, $2, $3, $4, $5, 0)
        RETURNING created_at, updated_at`
		if err := tx.QueryRow(ctx, insertAccount,
			account.ID,
			account.Email,
			account.PasswordHash,
			string(account.Role),
			account.IsActive,
		).Scan(&account.CreatedAt, &account.UpdatedAt); err != nil {
			return err
		}

		switch p := account.Profile.(type) {
		case *domain.StudentProfile:
			const insertStudent = `
        INSERT INTO student_profiles (id, account_id, name, student_id, phone, address)
        VALUES ($1, $2, $3, $4, $5, $6)`
			_, err := tx.Exec(ctx, insertStudent, p.ID, account.ID, p.Name, p.StudentID, nullable(p.Phone), nullable(p.Address))
			return err
		case *domain.TeacherProfile:
			const insertTeacher = `
        INSERT INTO teacher_profiles (id, account_id, name, phone, address)
        VALUES ($1, $2, $3, $4, $5)`
			_, err := tx.Exec(ctx, insertTeacher, p.ID, account.ID, p.Name, nullable(p.Phone), nullable(p.Address))
			return err
		}
		return nil
	})
	return translateUniqueViolation(err)
}

func (r *accountRepository) RecordFailedLogin(ctx context.Context, id string, now time.Time, maxAttempts int, lockFor time.Duration) (*domain.LoginCounters, error) {
	const query = `
        UPDATE accounts
        SET failed_login_count = failed_login_count + 1,
            locked_until = CASE WHEN failed_login_count + 1 >= $3 THEN $4::timestamptz ELSE locked_until END,
            updated_at = NOW()
        WHERE id=$1 AND (locked_until IS NULL OR locked_until <= $2)
        RETURNING failed_login_count, locked_until`

	var counters domain.LoginCounters
	err := r.pool.QueryRow(ctx, query, id, now, maxAttempts, now.Add(lockFor)).
		Scan(&counters.FailedLoginCount, &counters.LockedUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.lockedOrMissing(ctx, id)
		}
		return nil, err
	}
	return &counters, nil
}

func (r *accountRepository) RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) error {
	const query = `
        UPDATE accounts
        SET failed_login_count = 0, locked_until = NULL, last_login_at = $2, updated_at = NOW()
        WHERE id=$1 AND (locked_until IS NULL OR locked_until <= $2)`

	cmd, err := r.pool.Exec(ctx, query, id, now)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return r.lockedOrMissing(ctx, id)
	}
	return nil
}

// lockedOrMissing explains why a conditional login update matched no row.
func (r *accountRepository) lockedOrMissing(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrAccountNotFound
	}
	return ErrAccountLocked
}

func (r *accountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.execOne(ctx, `UPDATE accounts SET password_hash=$2, updated_at=NOW() WHERE id=$1`, id, passwordHash)
}

func (r *accountRepository) UpdateProfile(ctx context.Context, id string, role domain.Role, update domain.ProfileUpdate) error {
	var table string
	switch role {
	case domain.RoleStudent:
		table = "student_profiles"
	case domain.RoleTeacher:
		table = "teacher_profiles"
	default:
		return nil
	}
	query := fmt.Sprintf(`
        UPDATE %s
        SET name = COALESCE($2, name),
            phone = CASE WHEN $3::text IS NULL THEN phone ELSE NULLIF($3::text, '') END,
            address = CASE WHEN $4::text IS NULL THEN address ELSE NULLIF($4::text, '') END,
            updated_at = NOW()
        WHERE account_id=$1`, table)
	return r.execOne(ctx, query, id, update.Name, update.Phone, update.Address)
}

func (r *accountRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.execOne(ctx, `UPDATE accounts SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
}

func (r *accountRepository) Unlock(ctx context.Context, id string) error {
	return r.execOne(ctx, `UPDATE accounts SET failed_login_count=0, locked_until=NULL, updated_at=NOW() WHERE id=$1`, id)
}

func (r *accountRepository) execOne(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *accountRepository) List(ctx context.Context, filter domain.AccountFilter) (*domain.AccountPage, error) {
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if filter.Role != nil {
		args = append(args, string(*filter.Role))
		conditions = append(conditions, fmt.Sprintf("a.role = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(`(a.email ILIKE $%d ESCAPE '\' OR sp.name ILIKE $%d ESCAPE '\' OR tp.name ILIKE $%d ESCAPE '\')`, n, n, n))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := `
        SELECT COUNT(*) FROM accounts a
        LEFT JOIN student_profiles sp ON sp.account_id = a.id
        LEFT JOIN teacher_profiles tp ON tp.account_id = a.id` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)
	listQuery := accountSelect + where +
		fmt.Sprintf(" ORDER BY a.created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	page := &domain.AccountPage{Total: total}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		page.Accounts = append(page.Accounts, *account)
	}
	return page, rows.Err()
}

func (r *accountRepository) CountByRole(ctx context.Context, now time.Time) (map[domain.Role]domain.RoleStats, error) {
	const query = `
        SELECT role,
               COUNT(*),
               COUNT(*) FILTER (WHERE is_active),
               COUNT(*) FILTER (WHERE locked_until > $1)
        FROM accounts
        GROUP BY role`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[domain.Role]domain.RoleStats)
	for rows.Next() {
		var (
			role domain.Role
			s    domain.RoleStats
		)
		if err := rows.Scan(&role, &s.Total, &s.Active, &s.Locked); err != nil {
			return nil, err
		}
		stats[role] = s
	}
	return stats, rows.Err()
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	var spID, spName, spStudentID, spPhone, spAddr *string
	var tpID, tpName, tpPhone, tpAddr *string
	if err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Role,
		&account.IsActive,
		&account.FailedLoginCount,
		&account.LockedUntil,
		&account.LastLoginAt,
		&account.CreatedAt,
		&account.UpdatedAt,
		&spID, &spName, &spStudentID, &spPhone, &spAddr,
		&tpID, &tpName, &tpPhone, &tpAddr,
	); err != nil {
		return nil, err
	}

	switch {
	case account.Role == domain.RoleStudent && spID != nil:
		account.Profile = &domain.StudentProfile{
			ID:        *spID,
			AccountID: account.ID,
			Name:      deref(spName),
			StudentID: deref(spStudentID),
			Phone:     deref(spPhone),
			Address:   deref(spAddr),
		}
	case account.Role == domain.RoleTeacher && tpID != nil:
		account.Profile = &domain.TeacherProfile{
			ID:        *tpID,
			AccountID: account.ID,
			Name:      deref(tpName),
			Phone:     deref(tpPhone),
			Address:   deref(tpAddr),
		}
	}
	return &account, nil
}

func translateUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch pgErr.ConstraintName {
		case constraintAccountEmail:
			return ErrDuplicateEmail
		case constraintStudentProfileID:
			return ErrDuplicateStudentID
		}
	}
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
