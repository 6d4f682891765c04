package repository

import (
	"context"
	"testing"
	"time"

	"github.com/kayas881/Dental-system-management-sub000/internal/lab/testutil"
)

func TestGenerateSerial(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewWorkOrderRepository(db)
	ctx := context.Background()
	now := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)

	serial, err := repo.GenerateSerial(ctx, now)
	if err != nil {
		t.Fatalf("GenerateSerial: %v", err)
	}
	if serial != "WO-202401-0001" {
		t.Errorf("Expected WO-202401-0001 for an empty month, got %s", serial)
	}

	testutil.SeedWorkOrder(t, db, testutil.WorkOrderSeed{ID: "wo-1", Serial: "WO-202401-0042", Doctor: "Dr. Smith"})
	testutil.SeedWorkOrder(t, db, testutil.WorkOrderSeed{ID: "wo-2", Serial: "WO-202312-0900", Doctor: "Dr. Smith"})
	serial, err = repo.GenerateSerial(ctx, now)
	if err != nil {
		t.Fatalf("GenerateSerial: %v", err)
	}
	if serial != "WO-202401-0043" {
		t.Errorf("Expected WO-202401-0043, got %s", serial)
	}
}

func TestGenerateSerialPastFourDigits(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewWorkOrderRepository(db)
	ctx := context.Background()
	now := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)

	testutil.SeedWorkOrder(t, db, testutil.WorkOrderSeed{ID: "wo-1", Serial: "WO-202401-9999", Doctor: "Dr. Smith"})
	serial, err := repo.GenerateSerial(ctx, now)
	if err != nil {
		t.Fatalf("GenerateSerial: %v", err)
	}
	if serial != "WO-202401-10000" {
		t.Fatalf("Expected WO-202401-10000, got %s", serial)
	}

	testutil.SeedWorkOrder(t, db, testutil.WorkOrderSeed{ID: "wo-2", Serial: serial, Doctor: "Dr. Smith"})
	serial, err = repo.GenerateSerial(ctx, now)
	if err != nil {
		t.Fatalf("GenerateSerial: %v", err)
	}
	if serial != "WO-202401-10001" {
		t.Errorf("Expected WO-202401-10001 after a five digit serial, got %s", serial)
	}
}
