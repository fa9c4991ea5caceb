package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rsams/attendance-service/internal/domain"
)

type accountModel struct {
	ID               string `gorm:"primaryKey;size:64"`
	Email            string `gorm:"size:320;not null;uniqueIndex:accounts_email_key"`
	PasswordHash     string `gorm:"not null"`
	Role             string `gorm:"size:16;not null;index"`
	IsActive         bool   `gorm:"not null"`
	FailedLoginCount int    `gorm:"not null"`
	LockedUntil      *time.Time
	LastLoginAt      *time.Time
	CreatedAt        time.Time `gorm:"index"`
	UpdatedAt        time.Time
	StudentProfile   *studentProfileModel `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE"`
	TeacherProfile   *teacherProfileModel `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE"`
}

func (accountModel) TableName() string { return "accounts" }

type studentProfileModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	AccountID string `gorm:"size:64;not null;uniqueIndex"`
	Name      string `gorm:"not null"`
	StudentID string `gorm:"size:32;not null;uniqueIndex:student_profiles_student_id_key"`
	Phone     *string
	Address   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (studentProfileModel) TableName() string { return "student_profiles" }

type teacherProfileModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	AccountID string `gorm:"size:64;not null;uniqueIndex"`
	Name      string `gorm:"not null"`
	Phone     *string
	Address   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (teacherProfileModel) TableName() string { return "teacher_profiles" }

// MigrateGorm creates or updates the account tables for a GORM-managed database.
func MigrateGorm(db *gorm.DB) error {
	return db.AutoMigrate(&accountModel{}, &studentProfileModel{}, &teacherProfileModel{})
}

type gormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository returns a GORM-backed implementation. Times are
// stored in UTC so that SQLite text timestamps compare correctly.
func NewGormAccountRepository(db *gorm.DB) AccountRepository {
	return &gormAccountRepository{db: db}
}

func (r *gormAccountRepository) withProfiles(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("StudentProfile").Preload("TeacherProfile")
}

func (r *gormAccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(r.withProfiles(ctx).Where("email = ?", email))
}

func (r *gormAccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.findOne(r.withProfiles(ctx).Where("id = ?", id))
}

func (r *gormAccountRepository) findOne(q *gorm.DB) (*domain.Account, error) {
	var m accountModel
	if err := q.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return m.toDomain(), nil
}

func (r *gormAccountRepository) CreateWithProfile(ctx context.Context, account *domain.Account) error {
	now := time.Now().UTC()
	m := accountModel{
		ID:           account.ID,
		Email:        account.Email,
		PasswordHash: account.PasswordHash,
		Role:         string(account.Role),
		IsActive:     account.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&m).Error; err != nil {
			return err
		}
		switch p := account.Profile.(type) {
		case *domain.StudentProfile:
			return tx.Create(&studentProfileModel{
				ID:        p.ID,
				AccountID: account.ID,
				Name:      p.Name,
				StudentID: p.StudentID,
				Phone:     nullable(p.Phone),
				Address:   nullable(p.Address),
				CreatedAt: now,
				UpdatedAt: now,
			}).Error
		case *domain.TeacherProfile:
			return tx.Create(&teacherProfileModel{
				ID:        p.ID,
				AccountID: account.ID,
				Name:      p.Name,
				Phone:     nullable(p.Phone),
				Address:   nullable(p.Address),
				CreatedAt: now,
				UpdatedAt: now,
			}).Error
		}
		return nil
	})
	if err != nil {
		if isGormDuplicate(err) {
			return r.classifyDuplicate(ctx, account.Email)
		}
		return err
	}

	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

// classifyDuplicate decides which unique constraint rejected an insert.
// Accounts are never hard-deleted, so an existing email means the email
// constraint fired; otherwise it was the student id.
func (r *gormAccountRepository) classifyDuplicate(ctx context.Context, email string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&accountModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateEmail
	}
	return ErrDuplicateStudentID
}

func isGormDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (r *gormAccountRepository) RecordFailedLogin(ctx context.Context, id string, now time.Time, maxAttempts int, lockFor time.Duration) (*domain.LoginCounters, error) {
	now = now.UTC()
	var counters *domain.LoginCounters
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&accountModel{}).
			Where("id = ? AND (locked_until IS NULL OR locked_until <= ?)", id, now).
			Updates(map[string]any{
				"failed_login_count": gorm.Expr("failed_login_count + 1"),
				"locked_until":       gorm.Expr("CASE WHEN failed_login_count + 1 >= ? THEN ? ELSE locked_until END", maxAttempts, now.Add(lockFor)),
				"updated_at":         now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return r.lockedOrMissing(tx, id)
		}

		var m accountModel
		if err := tx.Select("failed_login_count", "locked_until").Where("id = ?", id).First(&m).Error; err != nil {
			return err
		}
		counters = &domain.LoginCounters{FailedLoginCount: m.FailedLoginCount, LockedUntil: m.LockedUntil}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counters, nil
}

func (r *gormAccountRepository) RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) error {
	now = now.UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&accountModel{}).
			Where("id = ? AND (locked_until IS NULL OR locked_until <= ?)", id, now).
			Updates(map[string]any{
				"failed_login_count": 0,
				"locked_until":       nil,
				"last_login_at":      now,
				"updated_at":         now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return r.lockedOrMissing(tx, id)
		}
		return nil
	})
}

func (r *gormAccountRepository) lockedOrMissing(tx *gorm.DB, id string) error {
	var count int64
	if err := tx.Model(&accountModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrAccountNotFound
	}
	return ErrAccountLocked
}

func (r *gormAccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.updateAccount(ctx, id, map[string]any{"password_hash": passwordHash})
}

func (r *gormAccountRepository) UpdateProfile(ctx context.Context, id string, role domain.Role, update domain.ProfileUpdate) error {
	fields := map[string]any{"updated_at": time.Now().UTC()}
	if update.Name != nil {
		fields["name"] = *update.Name
	}
	if update.Phone != nil {
		fields["phone"] = nullable(*update.Phone)
	}
	if update.Address != nil {
		fields["address"] = nullable(*update.Address)
	}

	var model any
	switch role {
	case domain.RoleStudent:
		model = &studentProfileModel{}
	case domain.RoleTeacher:
		model = &teacherProfileModel{}
	default:
		return nil
	}
	res := r.db.WithContext(ctx).Model(model).Where("account_id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *gormAccountRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.updateAccount(ctx, id, map[string]any{"is_active": active})
}

func (r *gormAccountRepository) Unlock(ctx context.Context, id string) error {
	return r.updateAccount(ctx, id, map[string]any{"failed_login_count": 0, "locked_until": nil})
}

func (r *gormAccountRepository) updateAccount(ctx context.Context, id string, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&accountModel{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *gormAccountRepository) List(ctx context.Context, filter domain.AccountFilter) (*domain.AccountPage, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Model(&accountModel{}).
			Joins("LEFT JOIN student_profiles sp ON sp.account_id = accounts.id").
			Joins("LEFT JOIN teacher_profiles tp ON tp.account_id = accounts.id")
		if filter.Role != nil {
			db = db.Where("accounts.role = ?", string(*filter.Role))
		}
		if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
			like := "%" + escapeLike(search) + "%"
			db = db.Where(`(LOWER(accounts.email) LIKE ? ESCAPE '\' OR LOWER(sp.name) LIKE ? ESCAPE '\' OR LOWER(tp.name) LIKE ? ESCAPE '\')`, like, like, like)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Scopes(scope).Count(&total).Error; err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	var models []accountModel
	if err := r.withProfiles(ctx).Scopes(scope).
		Select("accounts.*").
		Order("accounts.created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&models).Error; err != nil {
		return nil, err
	}

	page := &domain.AccountPage{Total: total, Accounts: make([]domain.Account, 0, len(models))}
	for i := range models {
		page.Accounts = append(page.Accounts, *models[i].toDomain())
	}
	return page, nil
}

func (r *gormAccountRepository) CountByRole(ctx context.Context, now time.Time) (map[domain.Role]domain.RoleStats, error) {
	var rows []struct {
		Role   string
		Total  int64
		Active int64
		Locked int64
	}
	err := r.db.WithContext(ctx).Model(&accountModel{}).
		Select(`role,
                COUNT(*) AS total,
                SUM(CASE WHEN is_active THEN 1 ELSE 0 END) AS active,
                SUM(CASE WHEN locked_until > ? THEN 1 ELSE 0 END) AS locked`, now.UTC()).
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := make(map[domain.Role]domain.RoleStats, len(rows))
	for _, row := range rows {
		stats[domain.Role(row.Role)] = domain.RoleStats{Total: row.Total, Active: row.Active, Locked: row.Locked}
	}
	return stats, nil
}

func (m *accountModel) toDomain() *domain.Account {
	account := &domain.Account{
		ID:               m.ID,
		Email:            m.Email,
		PasswordHash:     m.PasswordHash,
		Role:             domain.Role(m.Role),
		IsActive:         m.IsActive,
		FailedLoginCount: m.FailedLoginCount,
		LockedUntil:      m.LockedUntil,
		LastLoginAt:      m.LastLoginAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	switch {
	case account.Role == domain.RoleStudent && m.StudentProfile != nil:
		p := m.StudentProfile
		account.Profile = &domain.StudentProfile{
			ID:        p.ID,
			AccountID: p.AccountID,
			Name:      p.Name,
			StudentID: p.StudentID,
			Phone:     deref(p.Phone),
			Address:   deref(p.Address),
		}
	case account.Role == domain.RoleTeacher && m.TeacherProfile != nil:
		p := m.TeacherProfile
		account.Profile = &domain.TeacherProfile{
			ID:        p.ID,
			AccountID: p.AccountID,
			Name:      p.Name,
			Phone:     deref(p.Phone),
			Address:   deref(p.Address),
		}
	}
	return account
}
