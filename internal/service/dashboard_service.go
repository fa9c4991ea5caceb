package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rsams/attendance-service/internal/domain"
	"github.com/rsams/attendance-service/internal/repository"
	apperrors "github.com/rsams/attendance-service/pkg/util/errorutil"
)

const dashboardCacheKey = "dashboard:accounts"

// DashboardStats summarizes accounts per role.
type DashboardStats struct {
	Roles       map[domain.Role]domain.RoleStats `json:"roles"`
	Total       int64                            `json:"total"`
	GeneratedAt time.Time                        `json:"generated_at"`
}

// DashboardService serves account statistics through a Redis cache-aside
// layer. A nil or unreachable Redis degrades to direct reads.
type DashboardService struct {
	accounts repository.AccountRepository
	redis    *redis.Client
	ttl      time.Duration
	logger   *zap.Logger
	sfGroup  singleflight.Group
	now      func() time.Time
}

// NewDashboardService builds the service.
func NewDashboardService(accounts repository.AccountRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &DashboardService{accounts: accounts, redis: client, ttl: ttl, logger: logger, now: time.Now}
}

// Stats returns account counts per role. The second return reports a cache hit.
func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, bool, error) {
	if cached, ok := s.fromCache(ctx); ok {
		return cached, true, nil
	}

	val, err, _ := s.sfGroup.Do(dashboardCacheKey, func() (any, error) {
		return s.load(ctx)
	})
	if err != nil {
		return nil, false, apperrors.NewInternalError(err)
	}
	stats := val.(*DashboardStats)
	s.store(ctx, stats)
	return stats, false, nil
}

// Invalidate drops the cached statistics.
func (s *DashboardService) Invalidate(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Del(ctx, dashboardCacheKey).Err()
}

func (s *DashboardService) load(ctx context.Context) (*DashboardStats, error) {
	now := s.now()
	byRole, err := s.accounts.CountByRole(ctx, now)
	if err != nil {
		return nil, err
	}
	stats := &DashboardStats{Roles: make(map[domain.Role]domain.RoleStats, 3), GeneratedAt: now.UTC()}
	for _, role := range []domain.Role{domain.RoleStudent, domain.RoleTeacher, domain.RoleAdmin} {
		rs := byRole[role]
		stats.Roles[role] = rs
		stats.Total += rs.Total
	}
	return stats, nil
}

func (s *DashboardService) fromCache(ctx context.Context) (*DashboardStats, bool) {
	if s.redis == nil {
		return nil, false
	}
	raw, err := s.redis.Get(ctx, dashboardCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var stats DashboardStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		s.logger.Warn("dashboard cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return &stats, true
}

func (s *DashboardService) store(ctx context.Context, stats *DashboardStats) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, dashboardCacheKey, raw, s.ttl).Err(); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.Error(err))
	}
}
