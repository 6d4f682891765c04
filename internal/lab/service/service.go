package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/kayas881/Dental-system-management-sub000/internal/config"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/entity"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/policy"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/repository"
	"github.com/kayas881/Dental-system-management-sub000/internal/shared/lock"
	"github.com/kayas881/Dental-system-management-sub000/internal/shared/objectstore"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Services groups the lab services
type Services struct {
	WorkOrder *WorkOrderService
	Billing   *BillingService
	Pricing   *PricingService
	User      *UserService
	Dashboard *DashboardService
	Document  *DocumentService
}

// NewServices wires the lab services. rdb and store may be nil.
func NewServices(repos *repository.Repositories, rdb *redis.Client, store *objectstore.Store, cfg *config.Config, logger *zap.Logger) *Services {
	locker := lock.New(rdb, "lab:lock:", cfg.Billing.LockTTL, cfg.Billing.LockWait)

	billing := NewBillingService(repos, locker, logger)
	document := NewDocumentService(repos, billing, cfg.Billing.BatchSize)
	pricing := NewPricingService(repos, logger)
	if store != nil {
		pricing.SetArchive(store, document)
	}

	return &Services{
		WorkOrder: NewWorkOrderService(repos, logger, cfg.Billing.BatchSize),
		Billing:   billing,
		Pricing:   pricing,
		User:      NewUserService(repos, logger),
		Dashboard: NewDashboardService(repos, rdb, cfg.Billing.StatsTTL, logger),
		Document:  document,
	}
}

func requireAuth(auth policy.AuthContext) error {
	if !auth.Authenticated() {
		return errUnauthenticated()
	}
	return nil
}

// findBillRef returns the bill holding the work order, or nil.
func findBillRef(ctx context.Context, repos *repository.Repositories, workOrderID string) (*repository.BillRef, error) {
	refs, err := repos.Bill.FindBillRefs(ctx, []string{workOrderID})
	if err != nil {
		return nil, err
	}
	if ref, ok := refs[workOrderID]; ok {
		return &ref, nil
	}
	return nil, nil
}

func orderState(wo *entity.WorkOrder) policy.WorkOrderState {
	return policy.WorkOrderState{
		Completed:          wo.Status == entity.WorkOrderStatusCompleted,
		RevisionInProgress: wo.Status == entity.WorkOrderStatusRevisionInProgress,
		RevisionCount:      wo.RevisionCount,
	}
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// parseDate accepts a calendar date or an RFC 3339 timestamp. Empty input yields nil.
func parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, errValidation([]string{field}, "Invalid date for %s: %q", field, value)
}

func today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// toothColumn never hands a nil slice to storage; JSON null would erase the set.
func toothColumn(nums []int) datatypes.JSONSlice[int] {
	if nums == nil {
		return datatypes.JSONSlice[int]{}
	}
	return datatypes.JSONSlice[int](nums)
}

func sortStrings(s []string) []string {
	sort.Strings(s)
	return s
}
