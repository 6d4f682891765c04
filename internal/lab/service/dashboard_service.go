package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kayas881/Dental-system-management-sub000/internal/lab/entity"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const statsCacheKey = "lab:dashboard:stats"

// DashboardService lab overview counters
type DashboardService struct {
	repos  *repository.Repositories
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDashboardService(repos *repository.Repositories, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &DashboardService{repos: repos, rdb: rdb, ttl: ttl, logger: logger}
}

// DashboardStats counts shown on the lab dashboard
type DashboardStats struct {
	WorkOrders    map[string]int64 `json:"work_orders"`
	Bills         map[string]int64 `json:"bills"`
	TotalOrders   int64            `json:"total_orders"`
	OpenRevisions int64            `json:"open_revisions"`
	UnpricedBills int64            `json:"unpriced_bills"`
	GeneratedAt   time.Time        `json:"generated_at"`
}

// Stats returns the counters, from the Redis cache when it is fresh.
func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, statsCacheKey).Result(); err == nil {
			var stats DashboardStats
			if json.Unmarshal([]byte(cached), &stats) == nil {
				return &stats, nil
			}
		}
	}

	orders, err := s.repos.WorkOrder.CountByStatus(ctx)
	if err != nil {
		return nil, storageErr(err, "Dashboard", "")
	}
	bills, err := s.repos.Bill.CountByStatus(ctx)
	if err != nil {
		return nil, storageErr(err, "Dashboard", "")
	}

	stats := &DashboardStats{
		WorkOrders:    orders,
		Bills:         bills,
		OpenRevisions: orders[entity.WorkOrderStatusReturned] + orders[entity.WorkOrderStatusRevisionInProgress],
		UnpricedBills: bills[entity.BillStatusPending],
		GeneratedAt:   time.Now().UTC(),
	}
	for _, n := range orders {
		stats.TotalOrders += n
	}

	if s.rdb != nil {
		if data, err := json.Marshal(stats); err == nil {
			if err := s.rdb.Set(ctx, statsCacheKey, data, s.ttl).Err(); err != nil {
				s.logger.Warn("cache dashboard stats failed", zap.Error(err))
			}
		}
	}
	return stats, nil
}

// Invalidate drops the cached counters.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, statsCacheKey).Err(); err != nil {
		s.logger.Warn("invalidate dashboard stats failed", zap.Error(err))
	}
}
