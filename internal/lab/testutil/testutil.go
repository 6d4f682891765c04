package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/entity"
	"github.com/kayas881/Dental-system-management-sub000/internal/middleware"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const JWTSecret = "lab-test-jwt-secret"

// TestEnv holds test environment resources
type TestEnv struct {
	DB     *gorm.DB
	Router *gin.Engine
	T      *testing.T
}

// SetupTestDB opens a private in-memory sqlite database for the test and
// migrates every lab table. The database is dropped when the test ends.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := entity.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT for userID carrying roles
func GenerateTestToken(userID string, roles ...string) string {
	if roles == nil {
		roles = []string{}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  "Test " + userID,
		"email": userID + "@test.local",
		"roles": roles,
		"iss":   "lab",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// AdminToken token of the default admin test user
func AdminToken() string {
	return GenerateTestToken("test-admin-001", "ADMIN")
}

// StaffToken token of the default staff test user
func StaffToken() string {
	return GenerateTestToken("test-staff-001", "USER")
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a handler.Response-like map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// Date midnight UTC of "2006-01-02"
func Date(s string) *time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &d
}

// WorkOrderSeed describes a work order row to insert
type WorkOrderSeed struct {
	ID             string
	Serial         string
	Doctor         string
	Patient        string
	Status         string
	Teeth          []int
	CompletionDate *time.Time
	BatchID        *string
	RevisionCount  int
}

// SeedWorkOrder inserts a work order. Status defaults to in_progress.
func SeedWorkOrder(t *testing.T, db *gorm.DB, s WorkOrderSeed) *entity.WorkOrder {
	t.Helper()
	if s.Status == "" {
		s.Status = entity.WorkOrderStatusInProgress
	}
	if s.Patient == "" {
		s.Patient = "Patient " + s.Serial
	}
	teeth := s.Teeth
	if teeth == nil {
		teeth = []int{}
	}
	wo := &entity.WorkOrder{
		ID:             s.ID,
		SerialNumber:   s.Serial,
		DoctorName:     s.Doctor,
		PatientName:    s.Patient,
		ProductQuality: "Zirconia",
		ProductShade:   "A2",
		ToothNumbers:   datatypes.JSONSlice[int](teeth),
		Status:         s.Status,
		OrderDate:      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		CompletionDate: s.CompletionDate,
		BatchID:        s.BatchID,
		RevisionCount:  s.RevisionCount,
		CreatedBy:      "test-admin-001",
	}
	if err := db.Create(wo).Error; err != nil {
		t.Fatalf("Failed to seed work order: %v", err)
	}
	return wo
}

// SeedCompletedWorkOrder inserts a completed work order with the given completion date.
func SeedCompletedWorkOrder(t *testing.T, db *gorm.DB, id, serial, doctor, completed string, teeth ...int) *entity.WorkOrder {
	t.Helper()
	return SeedWorkOrder(t, db, WorkOrderSeed{
		ID:             id,
		Serial:         serial,
		Doctor:         doctor,
		Status:         entity.WorkOrderStatusCompleted,
		Teeth:          teeth,
		CompletionDate: Date(completed),
	})
}

// SeedUser inserts an account with password "password123".
func SeedUser(t *testing.T, db *gorm.DB, id, email, role string) *entity.UserProfile {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	u := &entity.UserProfile{
		ID:           id,
		Email:        email,
		Name:         "User " + id,
		Role:         role,
		PasswordHash: string(hash),
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	return u
}
