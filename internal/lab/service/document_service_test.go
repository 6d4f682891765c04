package service

import (
	"context"
	"strings"
	"testing"

	"github.com/kayas881/Dental-system-management-sub000/internal/lab/testutil"
)

func TestExportBill(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()
	testutil.SeedCompletedWorkOrder(t, db, "wo-a", "WO-202401-0001", "Dr. Smith", "2024-01-10", 11)
	testutil.SeedCompletedWorkOrder(t, db, "wo-b", "WO-202401-0002", "Dr. Smith", "2024-01-12", 36)
	grouped, err := svc.Billing.CreateGroupedBill(ctx, adminAuth, &GroupedBillRequest{WorkOrderIDs: []string{"wo-a", "wo-b"}})
	if err != nil {
		t.Fatalf("CreateGroupedBill: %v", err)
	}

	f, filename, err := svc.Document.ExportBill(ctx, grouped.Bill.ID)
	if err != nil {
		t.Fatalf("ExportBill: %v", err)
	}
	defer f.Close()

	if filename != "bill_WO-202401-0001.xlsx" {
		t.Errorf("Unexpected filename %q", filename)
	}
	serial, _ := f.GetCellValue("Bill", "B1")
	if serial != "WO-202401-0001, WO-202401-0002" {
		t.Errorf("Expected both serials in B1, got %q", serial)
	}
	doctor, _ := f.GetCellValue("Bill", "B2")
	if doctor != "Dr. Smith" {
		t.Errorf("Expected doctor in B2, got %q", doctor)
	}

	rows, err := f.GetRows("Bill")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	var itemRows int
	for _, r := range rows {
		if len(r) > 0 && strings.HasPrefix(r[0], "WO-202401-") {
			itemRows++
		}
	}
	if itemRows != 2 {
		t.Errorf("Expected 2 item rows, got %d", itemRows)
	}

	data, _, err := svc.Document.RenderBill(ctx, grouped.Bill.ID)
	if err != nil {
		t.Fatalf("RenderBill: %v", err)
	}
	if len(data) < 4 || string(data[:2]) != "PK" {
		t.Error("Expected a zip encoded workbook")
	}

	_, _, err = svc.Document.ExportBill(ctx, "missing")
	expectKind(t, err, KindNotFound)
}

func TestExportWorkOrders(t *testing.T) {
	svc, db := setupServices(t)
	serials := []string{"WO-202401-0001", "WO-202401-0002", "WO-202401-0003"}
	for i, s := range serials {
		testutil.SeedWorkOrder(t, db, testutil.WorkOrderSeed{ID: "wo-" + string(rune('a'+i)), Serial: s, Doctor: "Dr. Jones", Teeth: []int{11}})
	}

	f, filename, err := svc.Document.ExportWorkOrders(context.Background())
	if err != nil {
		t.Fatalf("ExportWorkOrders: %v", err)
	}
	defer f.Close()

	if !strings.HasPrefix(filename, "work_orders_") || !strings.HasSuffix(filename, ".xlsx") {
		t.Errorf("Unexpected filename %q", filename)
	}
	rows, err := f.GetRows("Work Orders")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	// header plus one row per order, across batches of two
	if len(rows) != 4 {
		t.Fatalf("Expected 4 rows, got %d", len(rows))
	}
	if rows[0][0] != "Serial" {
		t.Errorf("Expected header row, got %v", rows[0])
	}
	found := make(map[string]bool)
	for _, r := range rows[1:] {
		found[r[0]] = true
		if r[1] != "Dr. Jones" {
			t.Errorf("Unexpected doctor %q", r[1])
		}
	}
	for _, s := range serials {
		if !found[s] {
			t.Errorf("Missing %s in export", s)
		}
	}
}
