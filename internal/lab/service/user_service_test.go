package service

import (
	"context"
	"strings"
	"testing"

	"github.com/kayas881/Dental-system-management-sub000/internal/lab/entity"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/policy"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/testutil"
)

func TestDeleteLastAdminFails(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()
	testutil.SeedUser(t, db, superAuth.UserID, "super@lab.test", "SUPER_ADMIN")
	testutil.SeedUser(t, db, "admin-1", "admin1@lab.test", "ADMIN")

	err := svc.User.Delete(ctx, superAuth, "admin-1")
	e := expectKind(t, err, KindPermissionDenied)
	if e.Message != "You do not have permission to delete the last remaining admin" {
		t.Errorf("Unexpected message %q", e.Message)
	}

	testutil.SeedUser(t, db, "admin-2", "admin2@lab.test", "ADMIN")
	if err := svc.User.Delete(ctx, superAuth, "admin-1"); err != nil {
		t.Fatalf("Delete with another admin left: %v", err)
	}
	err = svc.User.Delete(ctx, superAuth, "admin-2")
	expectKind(t, err, KindPermissionDenied)

	if n := countRows(t, db, &entity.UserProfile{}); n != 2 {
		t.Errorf("Expected 2 accounts left, got %d", n)
	}
}

func TestDeleteUserGuards(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()
	testutil.SeedUser(t, db, superAuth.UserID, "super@lab.test", "SUPER_ADMIN")
	testutil.SeedUser(t, db, adminAuth.UserID, "admin@lab.test", "ADMIN")
	testutil.SeedUser(t, db, "admin-2", "admin2@lab.test", "ADMIN")
	testutil.SeedUser(t, db, staffAuth.UserID, "staff@lab.test", "USER")

	err := svc.User.Delete(ctx, adminAuth, adminAuth.UserID)
	e := expectKind(t, err, KindPermissionDenied)
	if e.Message != "You do not have permission to delete your own account" {
		t.Errorf("Unexpected message %q", e.Message)
	}

	err = svc.User.Delete(ctx, adminAuth, superAuth.UserID)
	expectKind(t, err, KindPermissionDenied)

	err = svc.User.Delete(ctx, staffAuth, "admin-2")
	expectKind(t, err, KindPermissionDenied)

	if err := svc.User.Delete(ctx, adminAuth, staffAuth.UserID); err != nil {
		t.Fatalf("Delete staff: %v", err)
	}
	err = svc.User.Delete(ctx, adminAuth, "missing")
	expectKind(t, err, KindNotFound)
}

func TestCreateUser(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()
	testutil.SeedUser(t, db, adminAuth.UserID, "admin@lab.test", "ADMIN")

	u, err := svc.User.Create(ctx, adminAuth, &CreateUserRequest{Email: " New@Lab.Test ", Name: "New", Password: "longenough"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.Email != "new@lab.test" || u.Role != "USER" {
		t.Errorf("Unexpected user %+v", u)
	}
	if u.PasswordHash == "" || u.PasswordHash == "longenough" {
		t.Error("Password must be stored hashed")
	}

	_, err = svc.User.Create(ctx, adminAuth, &CreateUserRequest{Email: "NEW@lab.test", Password: "longenough"})
	if e := expectKind(t, err, KindValidation); !strings.Contains(e.Message, "already in use") {
		t.Errorf("Expected a duplicate email message, got %q", e.Message)
	}

	_, err = svc.User.Create(ctx, adminAuth, &CreateUserRequest{Email: "short@lab.test", Password: "short"})
	expectKind(t, err, KindValidation)

	_, err = svc.User.Create(ctx, adminAuth, &CreateUserRequest{Email: "sa@lab.test", Role: "super-admin", Password: "longenough"})
	expectKind(t, err, KindPermissionDenied)

	sa, err := svc.User.Create(ctx, superAuth, &CreateUserRequest{Email: "sa@lab.test", Role: "super-admin", Password: "longenough"})
	if err != nil {
		t.Fatalf("super admin Create: %v", err)
	}
	if sa.Role != "SUPER_ADMIN" {
		t.Errorf("Expected SUPER_ADMIN, got %s", sa.Role)
	}

	_, err = svc.User.Create(ctx, staffAuth, &CreateUserRequest{Email: "x@lab.test", Password: "longenough"})
	expectKind(t, err, KindPermissionDenied)
}

func TestSetRole(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()
	testutil.SeedUser(t, db, superAuth.UserID, "super@lab.test", "SUPER_ADMIN")
	testutil.SeedUser(t, db, adminAuth.UserID, "admin@lab.test", "ADMIN")
	testutil.SeedUser(t, db, staffAuth.UserID, "staff@lab.test", "USER")

	_, err := svc.User.SetRole(ctx, adminAuth, adminAuth.UserID, "USER")
	expectKind(t, err, KindPermissionDenied)

	_, err = svc.User.SetRole(ctx, adminAuth, superAuth.UserID, "USER")
	expectKind(t, err, KindPermissionDenied)

	u, err := svc.User.SetRole(ctx, adminAuth, staffAuth.UserID, "admin")
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if u.Role != policy.RoleAdmin.String() {
		t.Errorf("Expected ADMIN, got %s", u.Role)
	}

	u, err = svc.User.SetRole(ctx, adminAuth, adminAuth.UserID, "USER")
	if err != nil {
		t.Fatalf("demote with another admin left: %v", err)
	}
	if u.Role != policy.RoleUser.String() {
		t.Errorf("Expected USER, got %s", u.Role)
	}

	_, err = svc.User.SetRole(ctx, adminAuth, staffAuth.UserID, "owner")
	expectKind(t, err, KindValidation)
}

func TestPasswords(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()
	testutil.SeedUser(t, db, superAuth.UserID, "super@lab.test", "SUPER_ADMIN")
	testutil.SeedUser(t, db, adminAuth.UserID, "admin@lab.test", "ADMIN")
	testutil.SeedUser(t, db, staffAuth.UserID, "staff@lab.test", "USER")

	if err := svc.User.ResetPassword(ctx, adminAuth, staffAuth.UserID, "newpassword"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	err := svc.User.ResetPassword(ctx, adminAuth, superAuth.UserID, "newpassword")
	expectKind(t, err, KindPermissionDenied)

	err = svc.User.ChangeOwnPassword(ctx, staffAuth, &ChangePasswordRequest{CurrentPassword: "password123", NewPassword: "another-one"})
	expectKind(t, err, KindValidation)

	// resetting your own password would skip the current password check
	err = svc.User.ResetPassword(ctx, adminAuth, adminAuth.UserID, "takeover-pass")
	expectKind(t, err, KindValidation)
	err = svc.User.ResetPassword(ctx, superAuth, superAuth.UserID, "takeover-pass")
	expectKind(t, err, KindValidation)
	if err := svc.User.ChangeOwnPassword(ctx, adminAuth, &ChangePasswordRequest{CurrentPassword: "password123", NewPassword: "admin-rotated"}); err != nil {
		t.Fatalf("admin ChangeOwnPassword: %v", err)
	}

	if err := svc.User.ChangeOwnPassword(ctx, staffAuth, &ChangePasswordRequest{CurrentPassword: "newpassword", NewPassword: "another-one"}); err != nil {
		t.Fatalf("ChangeOwnPassword: %v", err)
	}
}

func TestBootstrap(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()

	if err := svc.User.Bootstrap(ctx, "Root@Lab.Test", "bootstrap-pass"); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if err := svc.User.Bootstrap(ctx, "other@lab.test", "bootstrap-pass"); err != nil {
		t.Fatalf("second Bootstrap: %v", err)
	}
	if n := countRows(t, db, &entity.UserProfile{}); n != 1 {
		t.Errorf("Expected exactly one account, got %d", n)
	}
}
