package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kayas881/Dental-system-management-sub000/internal/lab/entity"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/policy"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/repository"
	"github.com/kayas881/Dental-system-management-sub000/internal/shared/objectstore"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PricingService bill amounts and the pending → priced → printed → sent workflow.
type PricingService struct {
	repos    *repository.Repositories
	logger   *zap.Logger
	now      func() time.Time
	archive  *objectstore.Store
	document *DocumentService
}

func NewPricingService(repos *repository.Repositories, logger *zap.Logger) *PricingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PricingService{repos: repos, logger: logger, now: time.Now}
}

// SetArchive uploads a copy of every printed bill to store.
func (s *PricingService) SetArchive(store *objectstore.Store, document *DocumentService) {
	s.archive = store
	s.document = document
}

// ItemPriceResult the repriced item and its reconciled bill
type ItemPriceResult struct {
	Item *entity.BillItem `json:"item"`
	Bill *entity.Bill     `json:"bill"`
}

func (s *PricingService) authorize(auth policy.AuthContext) error {
	if err := requireAuth(auth); err != nil {
		return err
	}
	if !policy.CanPriceBill(auth.Role) {
		return errPermission("price bills")
	}
	return nil
}

// SetAmount prices a bill. The stored tooth numbers are read and written
// back with the amount so the update can never clear them. On a grouped
// bill the amount is spread over the items so the two stay reconciled.
func (s *PricingService) SetAmount(ctx context.Context, auth policy.AuthContext, billID string, amount decimal.Decimal) (*entity.Bill, error) {
	if err := s.authorize(auth); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, errValidation([]string{"amount"}, "Amount must be greater than zero")
	}

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		bill, err := tx.Bill.FindByID(ctx, billID)
		if err != nil {
			return err
		}
		content := fmt.Sprintf("amount %s -> %s", bill.Amount.StringFixed(2), amount.StringFixed(2))
		if bill.IsGrouped && len(bill.Items) > 0 {
			for i, share := range spreadAmount(amount, bill.Items) {
				if err := tx.Bill.UpdateItem(ctx, bill.Items[i].ID, map[string]interface{}{
					"unit_price":  share.unit,
					"total_price": share.total,
				}); err != nil {
					return err
				}
			}
			content += fmt.Sprintf(", spread over %d items", len(bill.Items))
		}

		now := s.now()
		if err := tx.Bill.Updates(ctx, billID, map[string]interface{}{
			"amount":        amount,
			"status":        entity.BillStatusPriced,
			"priced_by":     auth.UserID,
			"priced_at":     now,
			"tooth_numbers": toothColumn(bill.ToothNumbers),
		}); err != nil {
			return err
		}
		return tx.ActivityLog.LogActivity(ctx, entity.EntityBill, billID, bill.SerialNumber,
			"price", bill.Status, entity.BillStatusPriced, content, auth.UserID)
	})
	if err != nil {
		return nil, storageErr(err, "Bill", billID)
	}

	s.logger.Info("bill priced", zap.String("bill", billID), zap.String("amount", amount.StringFixed(2)), zap.String("user", auth.UserID))
	return s.load(ctx, billID)
}

type itemShare struct {
	unit  decimal.Decimal
	total decimal.Decimal
}

// spreadAmount splits amount over items by quantity, in cents. The last
// item absorbs the rounding remainder.
func spreadAmount(amount decimal.Decimal, items []entity.BillItem) []itemShare {
	quantity := func(it entity.BillItem) int64 {
		if it.Quantity < 1 {
			return 1
		}
		return int64(it.Quantity)
	}
	var units int64
	for _, it := range items {
		units += quantity(it)
	}
	unit := amount.Div(decimal.NewFromInt(units)).Truncate(2)

	shares := make([]itemShare, len(items))
	assigned := decimal.Zero
	for i, it := range items {
		q := decimal.NewFromInt(quantity(it))
		shares[i] = itemShare{unit: unit, total: unit.Mul(q)}
		assigned = assigned.Add(shares[i].total)
	}
	if rest := amount.Sub(assigned); !rest.IsZero() {
		last := len(items) - 1
		q := decimal.NewFromInt(quantity(items[last]))
		shares[last].total = shares[last].total.Add(rest)
		shares[last].unit = shares[last].total.DivRound(q, 2)
	}
	return shares
}

// SetItemPrice prices one grouped bill item. The bill amount is reconciled
// to the sum of its item totals in the same transaction: a pending bill
// becomes priced once the sum is positive, a priced bill whose sum drops to
// zero goes back to pending, and a printed or sent bill must keep a
// positive sum.
func (s *PricingService) SetItemPrice(ctx context.Context, auth policy.AuthContext, itemID string, unitPrice decimal.Decimal) (*ItemPriceResult, error) {
	if err := s.authorize(auth); err != nil {
		return nil, err
	}
	if unitPrice.IsNegative() {
		return nil, errValidation([]string{"unit_price"}, "Unit price must not be negative")
	}

	var billID string
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		item, err := tx.Bill.FindItemByID(ctx, itemID)
		if err != nil {
			return err
		}
		billID = item.BillID
		total := unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		if err := tx.Bill.UpdateItem(ctx, itemID, map[string]interface{}{
			"unit_price":  unitPrice,
			"total_price": total,
		}); err != nil {
			return err
		}

		bill, err := tx.Bill.FindByID(ctx, item.BillID)
		if err != nil {
			return err
		}
		sum := decimal.Zero
		for _, it := range bill.Items {
			sum = sum.Add(it.TotalPrice)
		}

		fields := map[string]interface{}{
			"amount":        sum,
			"tooth_numbers": toothColumn(bill.ToothNumbers),
		}
		status := bill.Status
		switch {
		case sum.IsPositive() && bill.Status == entity.BillStatusPending:
			status = entity.BillStatusPriced
			fields["priced_by"] = auth.UserID
			fields["priced_at"] = s.now()
		case !sum.IsPositive() && bill.Status == entity.BillStatusPriced:
			status = entity.BillStatusPending
			fields["priced_by"] = ""
			fields["priced_at"] = nil
		case !sum.IsPositive() && bill.Status != entity.BillStatusPending:
			return errTransition("A %s bill must keep an amount greater than zero", bill.Status)
		}
		if status != bill.Status {
			fields["status"] = status
		}
		if err := tx.Bill.Updates(ctx, bill.ID, fields); err != nil {
			return err
		}
		return tx.ActivityLog.LogActivity(ctx, entity.EntityBill, bill.ID, bill.SerialNumber,
			"price_item", bill.Status, status,
			fmt.Sprintf("%s unit price %s, amount %s -> %s",
				item.SerialNumber, unitPrice.StringFixed(2), bill.Amount.StringFixed(2), sum.StringFixed(2)),
			auth.UserID)
	})
	if err != nil {
		return nil, storageErr(err, "Bill item", itemID)
	}

	item, err := s.repos.Bill.FindItemByID(ctx, itemID)
	if err != nil {
		return nil, storageErr(err, "Bill item", itemID)
	}
	bill, err := s.load(ctx, billID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("bill item priced", zap.String("item", itemID), zap.String("bill", billID), zap.String("user", auth.UserID))
	return &ItemPriceResult{Item: item, Bill: bill}, nil
}

// SetStatus sets any of the four bill statuses. Ordering is not enforced.
func (s *PricingService) SetStatus(ctx context.Context, auth policy.AuthContext, billID, status string) (*entity.Bill, error) {
	if err := s.authorize(auth); err != nil {
		return nil, err
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if !entity.IsValidBillStatus(status) {
		return nil, errValidation([]string{"status"}, "Invalid bill status %q; expected one of %s", status, joinList(entity.ValidBillStatuses))
	}

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		bill, err := tx.Bill.FindByID(ctx, billID)
		if err != nil {
			return err
		}
		fields := map[string]interface{}{"status": status}
		if status == entity.BillStatusPrinted && bill.PrintedAt == nil {
			fields["printed_at"] = s.now()
		}
		if err := tx.Bill.Updates(ctx, billID, fields); err != nil {
			return err
		}
		return tx.ActivityLog.LogActivity(ctx, entity.EntityBill, billID, bill.SerialNumber,
			"set_status", bill.Status, status, "", auth.UserID)
	})
	if err != nil {
		return nil, storageErr(err, "Bill", billID)
	}

	s.logger.Info("bill status set", zap.String("bill", billID), zap.String("status", status), zap.String("user", auth.UserID))
	return s.load(ctx, billID)
}

// MarkPrinted records a print. Any authenticated caller may print; repeating
// it is a no-op, and a bill already sent stays sent.
func (s *PricingService) MarkPrinted(ctx context.Context, auth policy.AuthContext, billID string) (*entity.Bill, error) {
	if err := requireAuth(auth); err != nil {
		return nil, err
	}

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		bill, err := tx.Bill.FindByID(ctx, billID)
		if err != nil {
			return err
		}
		if bill.Status == entity.BillStatusPrinted || bill.Status == entity.BillStatusSent {
			return nil
		}
		fields := map[string]interface{}{"status": entity.BillStatusPrinted}
		if bill.PrintedAt == nil {
			fields["printed_at"] = s.now()
		}
		if err := tx.Bill.Updates(ctx, billID, fields); err != nil {
			return err
		}
		return tx.ActivityLog.LogActivity(ctx, entity.EntityBill, billID, bill.SerialNumber,
			"print", bill.Status, entity.BillStatusPrinted, "", auth.UserID)
	})
	if err != nil {
		return nil, storageErr(err, "Bill", billID)
	}

	bill, err := s.load(ctx, billID)
	if err != nil {
		return nil, err
	}
	s.archivePrint(ctx, bill)
	return bill, nil
}

// archivePrint uploads the rendered bill. Failures are logged only; the
// print itself already succeeded.
func (s *PricingService) archivePrint(ctx context.Context, bill *entity.Bill) {
	if s.archive == nil || s.document == nil {
		return
	}
	data, filename, err := s.document.RenderBill(ctx, bill.ID)
	if err != nil {
		s.logger.Warn("render bill for archive failed", zap.String("bill", bill.ID), zap.Error(err))
		return
	}
	objectName := fmt.Sprintf("bills/%s/%s-%s", s.now().Format("200601"), s.now().Format("20060102T150405"), filename)
	path, err := s.archive.Put(ctx, objectName, data, xlsxContentType)
	if err != nil {
		s.logger.Warn("archive bill failed", zap.String("bill", bill.ID), zap.Error(err))
		return
	}
	s.logger.Info("bill archived", zap.String("bill", bill.ID), zap.String("path", path))
}

func (s *PricingService) load(ctx context.Context, billID string) (*entity.Bill, error) {
	bill, err := s.repos.Bill.FindByID(ctx, billID)
	if err != nil {
		return nil, storageErr(err, "Bill", billID)
	}
	bill.SumItems()
	return bill, nil
}
