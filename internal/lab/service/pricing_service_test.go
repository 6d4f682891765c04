package service

import (
	"context"
	"reflect"
	"testing"

	"github.com/kayas881/Dental-system-management-sub000/internal/lab/entity"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/testutil"
	"github.com/shopspring/decimal"
)

func TestSetAmountPreservesTeeth(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()
	testutil.SeedCompletedWorkOrder(t, db, "wo-a", "WO-202401-0001", "Dr. Smith", "2024-01-10", 11, 21, 46)
	bill, err := svc.Billing.CreateIndividualBill(ctx, adminAuth, "wo-a", &CreateBillRequest{})
	if err != nil {
		t.Fatalf("CreateIndividualBill: %v", err)
	}
	before := []int(bill.ToothNumbers)

	if _, err := svc.Pricing.SetAmount(ctx, adminAuth, bill.ID, decimal.NewFromInt(150)); err != nil {
		t.Fatalf("first SetAmount: %v", err)
	}
	priced, err := svc.Pricing.SetAmount(ctx, adminAuth, bill.ID, decimal.RequireFromString("175.50"))
	if err != nil {
		t.Fatalf("second SetAmount: %v", err)
	}

	if got := []int(priced.ToothNumbers); !reflect.DeepEqual(got, before) {
		t.Errorf("Tooth numbers changed: before %v after %v", before, got)
	}
	if !priced.Amount.Equal(decimal.RequireFromString("175.50")) {
		t.Errorf("Expected amount 175.50, got %s", priced.Amount)
	}
	if priced.Status != entity.BillStatusPriced || priced.PricedBy != adminAuth.UserID || priced.PricedAt == nil {
		t.Errorf("Unexpected pricing state: %+v", priced)
	}
}

func TestSetAmountValidation(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()
	testutil.SeedCompletedWorkOrder(t, db, "wo-a", "WO-202401-0001", "Dr. Smith", "2024-01-10")
	bill, err := svc.Billing.CreateIndividualBill(ctx, adminAuth, "wo-a", &CreateBillRequest{})
	if err != nil {
		t.Fatalf("CreateIndividualBill: %v", err)
	}

	_, err = svc.Pricing.SetAmount(ctx, staffAuth, bill.ID, decimal.NewFromInt(10))
	expectKind(t, err, KindPermissionDenied)
	_, err = svc.Pricing.SetAmount(ctx, adminAuth, bill.ID, decimal.Zero)
	expectKind(t, err, KindValidation)
	_, err = svc.Pricing.SetAmount(ctx, adminAuth, bill.ID, decimal.NewFromInt(-5))
	expectKind(t, err, KindValidation)
	_, err = svc.Pricing.SetAmount(ctx, adminAuth, "bill-missing", decimal.NewFromInt(10))
	expectKind(t, err, KindNotFound)
}

func TestSetItemPriceReconcilesBill(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()
	testutil.SeedCompletedWorkOrder(t, db, "wo-a", "WO-202401-0001", "Dr. Smith", "2024-01-10", 11)
	testutil.SeedCompletedWorkOrder(t, db, "wo-b", "WO-202401-0002", "Dr. Smith", "2024-01-11", 21)
	grouped, err := svc.Billing.CreateGroupedBill(ctx, adminAuth, &GroupedBillRequest{WorkOrderIDs: []string{"wo-a", "wo-b"}})
	if err != nil {
		t.Fatalf("CreateGroupedBill: %v", err)
	}

	first, err := svc.Pricing.SetItemPrice(ctx, adminAuth, grouped.Items[0].ID, decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("SetItemPrice: %v", err)
	}
	if !first.Item.TotalPrice.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected total 100, got %s", first.Item.TotalPrice)
	}
	if !first.Bill.Amount.Equal(decimal.NewFromInt(100)) || first.Bill.Status != entity.BillStatusPriced {
		t.Errorf("Expected priced bill of 100, got %s %s", first.Bill.Amount, first.Bill.Status)
	}

	second, err := svc.Pricing.SetItemPrice(ctx, adminAuth, grouped.Items[1].ID, decimal.RequireFromString("49.50"))
	if err != nil {
		t.Fatalf("SetItemPrice: %v", err)
	}
	if !second.Bill.Amount.Equal(decimal.RequireFromString("149.50")) {
		t.Errorf("Expected bill total 149.50, got %s", second.Bill.Amount)
	}
	if second.Bill.ItemsTotal == nil || !second.Bill.ItemsTotal.Equal(second.Bill.Amount) {
		t.Errorf("Items total %v must match amount %s", second.Bill.ItemsTotal, second.Bill.Amount)
	}
	if got := []int(second.Bill.ToothNumbers); !reflect.DeepEqual(got, []int{11, 21}) {
		t.Errorf("Tooth numbers changed: %v", got)
	}

	_, err = svc.Pricing.SetItemPrice(ctx, adminAuth, grouped.Items[0].ID, decimal.NewFromInt(-1))
	expectKind(t, err, KindValidation)
	_, err = svc.Pricing.SetItemPrice(ctx, staffAuth, grouped.Items[0].ID, decimal.NewFromInt(1))
	expectKind(t, err, KindPermissionDenied)
}

func TestMarkPrintedIdempotent(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()
	testutil.SeedCompletedWorkOrder(t, db, "wo-a", "WO-202401-0001", "Dr. Smith", "2024-01-10")
	bill, err := svc.Billing.CreateIndividualBill(ctx, adminAuth, "wo-a", &CreateBillRequest{})
	if err != nil {
		t.Fatalf("CreateIndividualBill: %v", err)
	}

	first, err := svc.Pricing.MarkPrinted(ctx, staffAuth, bill.ID)
	if err != nil {
		t.Fatalf("MarkPrinted by staff: %v", err)
	}
	if first.Status != entity.BillStatusPrinted || first.PrintedAt == nil {
		t.Fatalf("Expected printed, got %s", first.Status)
	}
	second, err := svc.Pricing.MarkPrinted(ctx, staffAuth, bill.ID)
	if err != nil {
		t.Fatalf("second MarkPrinted: %v", err)
	}
	if second.Status != entity.BillStatusPrinted || !second.PrintedAt.Equal(*first.PrintedAt) {
		t.Errorf("Repeated print changed the bill: %+v", second)
	}

	_, err = svc.Pricing.MarkPrinted(ctx, policyNone, bill.ID)
	expectKind(t, err, KindUnauthenticated)
}

func TestSetStatus(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()
	testutil.SeedCompletedWorkOrder(t, db, "wo-a", "WO-202401-0001", "Dr. Smith", "2024-01-10")
	bill, err := svc.Billing.CreateIndividualBill(ctx, adminAuth, "wo-a", &CreateBillRequest{})
	if err != nil {
		t.Fatalf("CreateIndividualBill: %v", err)
	}

	_, err = svc.Pricing.SetStatus(ctx, adminAuth, bill.ID, "paid")
	expectKind(t, err, KindValidation)
	_, err = svc.Pricing.SetStatus(ctx, staffAuth, bill.ID, "sent")
	expectKind(t, err, KindPermissionDenied)

	sent, err := svc.Pricing.SetStatus(ctx, adminAuth, bill.ID, " SENT ")
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if sent.Status != entity.BillStatusSent {
		t.Errorf("Expected sent, got %s", sent.Status)
	}

	printed, err := svc.Pricing.MarkPrinted(ctx, staffAuth, bill.ID)
	if err != nil {
		t.Fatalf("MarkPrinted: %v", err)
	}
	if printed.Status != entity.BillStatusSent {
		t.Errorf("A sent bill must stay sent, got %s", printed.Status)
	}
}

func itemFor(t *testing.T, bill *entity.Bill, workOrderID string) entity.BillItem {
	t.Helper()
	for _, item := range bill.Items {
		if item.WorkOrderID == workOrderID {
			return item
		}
	}
	t.Fatalf("No item for %s in bill %s", workOrderID, bill.ID)
	return entity.BillItem{}
}

func TestSetAmountSpreadsOverGroupedItems(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()
	testutil.SeedCompletedWorkOrder(t, db, "wo-a", "WO-202401-0001", "Dr. Smith", "2024-01-10", 11)
	testutil.SeedCompletedWorkOrder(t, db, "wo-b", "WO-202401-0002", "Dr. Smith", "2024-01-11", 21)
	testutil.SeedCompletedWorkOrder(t, db, "wo-c", "WO-202401-0003", "Dr. Smith", "2024-01-12", 31)
	grouped, err := svc.Billing.CreateGroupedBill(ctx, adminAuth, &GroupedBillRequest{WorkOrderIDs: []string{"wo-a", "wo-b", "wo-c"}})
	if err != nil {
		t.Fatalf("CreateGroupedBill: %v", err)
	}

	priced, err := svc.Pricing.SetAmount(ctx, adminAuth, grouped.Bill.ID, decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("SetAmount: %v", err)
	}
	if priced.ItemsTotal == nil || !priced.ItemsTotal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("Items must add up to the amount, got %v", priced.ItemsTotal)
	}
	for _, item := range priced.Items {
		if !item.TotalPrice.Equal(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))) {
			t.Errorf("Item %s total %s does not match its unit price %s", item.SerialNumber, item.TotalPrice, item.UnitPrice)
		}
		if item.TotalPrice.LessThan(decimal.RequireFromString("33.33")) {
			t.Errorf("Unexpected share %s for %s", item.TotalPrice, item.SerialNumber)
		}
	}

	// repricing one item keeps the others and logs the old amount
	a := itemFor(t, priced, "wo-a")
	result, err := svc.Pricing.SetItemPrice(ctx, adminAuth, a.ID, decimal.NewFromInt(50))
	if err != nil {
		t.Fatalf("SetItemPrice: %v", err)
	}
	want := decimal.NewFromInt(100).Sub(a.TotalPrice).Add(decimal.NewFromInt(50))
	if !result.Bill.Amount.Equal(want) {
		t.Errorf("Expected amount %s, got %s", want, result.Bill.Amount)
	}
	var logged int64
	if err := db.Model(&entity.ActivityLog{}).
		Where("entity_id = ? AND action = ? AND content LIKE ?", grouped.Bill.ID, "price_item", "%amount 100.00 -> %").
		Count(&logged).Error; err != nil {
		t.Fatalf("count logs: %v", err)
	}
	if logged != 1 {
		t.Errorf("Expected the amount change logged once, got %d", logged)
	}
}

func TestSetItemPriceToZero(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()
	testutil.SeedCompletedWorkOrder(t, db, "wo-a", "WO-202401-0001", "Dr. Smith", "2024-01-10", 11)
	testutil.SeedCompletedWorkOrder(t, db, "wo-b", "WO-202401-0002", "Dr. Smith", "2024-01-11", 21)
	grouped, err := svc.Billing.CreateGroupedBill(ctx, adminAuth, &GroupedBillRequest{WorkOrderIDs: []string{"wo-a", "wo-b"}})
	if err != nil {
		t.Fatalf("CreateGroupedBill: %v", err)
	}
	bill, err := svc.Billing.Get(ctx, grouped.Bill.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	a, b := itemFor(t, bill, "wo-a"), itemFor(t, bill, "wo-b")

	if _, err := svc.Pricing.SetItemPrice(ctx, adminAuth, a.ID, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("SetItemPrice: %v", err)
	}
	result, err := svc.Pricing.SetItemPrice(ctx, adminAuth, a.ID, decimal.Zero)
	if err != nil {
		t.Fatalf("SetItemPrice to zero: %v", err)
	}
	if result.Bill.Status != entity.BillStatusPending || !result.Bill.Amount.IsZero() {
		t.Errorf("A zero priced bill must return to pending, got %s %s", result.Bill.Status, result.Bill.Amount)
	}
	if result.Bill.PricedAt != nil || result.Bill.PricedBy != "" {
		t.Errorf("Pricing stamp must be cleared, got %q %v", result.Bill.PricedBy, result.Bill.PricedAt)
	}

	if _, err := svc.Pricing.SetItemPrice(ctx, adminAuth, b.ID, decimal.NewFromInt(80)); err != nil {
		t.Fatalf("SetItemPrice: %v", err)
	}
	if _, err := svc.Pricing.MarkPrinted(ctx, staffAuth, bill.ID); err != nil {
		t.Fatalf("MarkPrinted: %v", err)
	}
	_, err = svc.Pricing.SetItemPrice(ctx, adminAuth, b.ID, decimal.Zero)
	expectKind(t, err, KindInvalidTransition)

	after, err := svc.Billing.Get(ctx, bill.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if after.Status != entity.BillStatusPrinted || !after.Amount.Equal(decimal.NewFromInt(80)) {
		t.Errorf("Refused repricing must leave the bill unchanged, got %s %s", after.Status, after.Amount)
	}
	if got := itemFor(t, after, "wo-b"); !got.TotalPrice.Equal(decimal.NewFromInt(80)) {
		t.Errorf("Refused repricing must leave the item unchanged, got %s", got.TotalPrice)
	}
}

func TestSpreadAmount(t *testing.T) {
	items := []entity.BillItem{{Quantity: 1}, {Quantity: 2}, {Quantity: 1}}
	shares := spreadAmount(decimal.NewFromInt(10), items)
	sum := decimal.Zero
	for _, s := range shares {
		sum = sum.Add(s.total)
	}
	if !sum.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("Shares must add up to 10, got %s", sum)
	}
	if !shares[0].unit.Equal(decimal.RequireFromString("2.5")) || !shares[1].total.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Unexpected shares %+v", shares)
	}
}
