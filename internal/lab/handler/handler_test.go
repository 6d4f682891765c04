package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kayas881/Dental-system-management-sub000/internal/config"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/repository"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/service"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/testutil"
	"gorm.io/gorm"
)

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	cfg := &config.Config{}
	cfg.Billing.BatchSize = 50
	svc := service.NewServices(repository.NewRepositories(db), nil, nil, cfg, nil)

	r := testutil.SetupRouter()
	RegisterRoutes(r, NewHandlers(svc), testutil.JWTSecret)
	return r, db
}

func TestRequiresToken(t *testing.T) {
	r, _ := setupRouter(t)

	w := testutil.DoRequest(r, http.MethodGet, "/api/v1/work-orders", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", w.Code)
	}

	w = testutil.DoRequest(r, http.MethodGet, "/api/v1/work-orders", nil, "not-a-token")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for bad token, got %d", w.Code)
	}

	w = testutil.DoRequest(r, http.MethodGet, "/health/live", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on health, got %d", w.Code)
	}
}

func TestStaffCreatesWorkOrder(t *testing.T) {
	r, _ := setupRouter(t)
	token := testutil.StaffToken()

	body := map[string]interface{}{
		"doctor_name":     "Dr. Smith",
		"patient_name":    "Jane Roe",
		"product_quality": "Zirconia",
		"product_shade":   "A2",
		"tooth_numbers":   []int{21, 11},
		"order_date":      "2024-01-05",
	}
	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/work-orders", body, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data, _ := resp["data"].(map[string]interface{})
	serial, _ := data["serial_number"].(string)
	if !strings.HasPrefix(serial, "WO-") || !strings.HasSuffix(serial, "-0001") {
		t.Errorf("Unexpected serial %q", serial)
	}
	id, _ := data["id"].(string)

	w = testutil.DoRequest(r, http.MethodGet, "/api/v1/work-orders?doctor_name=Dr.%20Smith", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	list, _ := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if items, _ := list["items"].([]interface{}); len(items) != 1 {
		t.Errorf("Expected 1 listed order, got %v", list["items"])
	}

	w = testutil.DoRequest(r, http.MethodGet, "/api/v1/work-orders/"+id+"/bill", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	w = testutil.DoRequest(r, http.MethodPost, "/api/v1/work-orders", map[string]interface{}{"doctor_name": "Dr. Smith"}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without patient, got %d", w.Code)
	}
}

func TestGroupedBillMixedDoctors(t *testing.T) {
	r, db := setupRouter(t)
	testutil.SeedCompletedWorkOrder(t, db, "wo-a", "WO-202401-0001", "Dr. Smith", "2024-01-10", 11)
	testutil.SeedCompletedWorkOrder(t, db, "wo-b", "WO-202401-0002", "Dr. Jones", "2024-01-11", 21)

	body := map[string]interface{}{"work_order_ids": []string{"wo-a", "wo-b"}}
	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/bills/grouped", body, testutil.AdminToken())
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if code, _ := resp["code"].(float64); code != 40903 {
		t.Errorf("Expected code 40903, got %v", resp["code"])
	}
	data, _ := resp["data"].(map[string]interface{})
	if data["kind"] != string(service.KindMixedDoctors) {
		t.Errorf("Unexpected kind %v", data["kind"])
	}

	w = testutil.DoRequest(r, http.MethodPost, "/api/v1/bills/grouped", body, testutil.StaffToken())
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for staff, got %d", w.Code)
	}
}

func TestBillPricingFlow(t *testing.T) {
	r, db := setupRouter(t)
	testutil.SeedCompletedWorkOrder(t, db, "wo-a", "WO-202401-0001", "Dr. Smith", "2024-01-10", 11)
	admin := testutil.AdminToken()

	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/work-orders/wo-a/bill", nil, admin)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	data, _ := testutil.ParseResponse(w)["data"].(map[string]interface{})
	billID, _ := data["id"].(string)

	w = testutil.DoRequest(r, http.MethodPost, "/api/v1/work-orders/wo-a/bill", nil, admin)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for second bill, got %d", w.Code)
	}

	w = testutil.DoRequest(r, http.MethodPut, "/api/v1/bills/"+billID+"/amount", map[string]interface{}{"amount": "120.00"}, admin)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data, _ = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != "priced" {
		t.Errorf("Expected priced, got %v", data["status"])
	}

	w = testutil.DoRequest(r, http.MethodPost, "/api/v1/bills/"+billID+"/print", nil, testutil.StaffToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for print, got %d", w.Code)
	}

	w = testutil.DoRequest(r, http.MethodGet, "/api/v1/bills/"+billID+"/export", nil, admin)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for export, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("Unexpected content type %q", ct)
	}

	w = testutil.DoRequest(r, http.MethodGet, "/api/v1/bills/missing", nil, admin)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestUserRoutesRequireAdmin(t *testing.T) {
	r, db := setupRouter(t)
	testutil.SeedUser(t, db, "test-admin-001", "admin@lab.test", "ADMIN")
	testutil.SeedUser(t, db, "test-staff-001", "staff@lab.test", "USER")

	w := testutil.DoRequest(r, http.MethodGet, "/api/v1/users", nil, testutil.StaffToken())
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", w.Code)
	}

	w = testutil.DoRequest(r, http.MethodGet, "/api/v1/users", nil, testutil.AdminToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	w = testutil.DoRequest(r, http.MethodGet, "/api/v1/me", nil, testutil.StaffToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for me, got %d", w.Code)
	}
	data, _ := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["email"] != "staff@lab.test" {
		t.Errorf("Unexpected profile %v", data)
	}

	w = testutil.DoRequest(r, http.MethodDelete, "/api/v1/users/test-admin-001", nil, testutil.AdminToken())
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for self delete, got %d", w.Code)
	}
}

func TestExportWorkOrders(t *testing.T) {
	r, db := setupRouter(t)
	testutil.SeedWorkOrder(t, db, testutil.WorkOrderSeed{ID: "wo-a", Serial: "WO-202401-0001", Doctor: "Dr. Smith"})

	w := testutil.DoRequest(r, http.MethodGet, "/api/v1/work-orders/export", nil, testutil.StaffToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "work_orders_") {
		t.Errorf("Unexpected disposition %q", cd)
	}
	if w.Body.Len() == 0 {
		t.Error("Expected workbook body")
	}
}

func TestDashboardStats(t *testing.T) {
	r, db := setupRouter(t)
	testutil.SeedWorkOrder(t, db, testutil.WorkOrderSeed{ID: "wo-a", Serial: "WO-202401-0001", Doctor: "Dr. Smith"})

	w := testutil.DoRequest(r, http.MethodGet, "/api/v1/dashboard/stats?refresh=true", nil, testutil.StaffToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	data, _ := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if total, _ := data["total_orders"].(float64); total != 1 {
		t.Errorf("Expected 1 order, got %v", data["total_orders"])
	}
}
