// Package policy answers "may this role do this" questions. All predicates
// are pure; callers pass the entity state they already loaded.
package policy

import (
	"fmt"
	"strings"
)

// Role is the closed set of lab roles.
type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// ParseRole normalizes external role input. It is the only place role
// strings are compared case-insensitively.
func ParseRole(s string) (Role, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	switch Role(normalized) {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return Role(normalized), nil
	case "STAFF":
		return RoleUser, nil
	case "SUPERADMIN":
		return RoleSuperAdmin, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Rank orders roles: USER < ADMIN < SUPER_ADMIN.
func (r Role) Rank() int {
	switch r {
	case RoleUser:
		return 1
	case RoleAdmin:
		return 2
	case RoleSuperAdmin:
		return 3
	}
	return 0
}

// IsAdmin reports whether the role is admin-capable.
func (r Role) IsAdmin() bool {
	return r.Rank() >= RoleAdmin.Rank()
}

func (r Role) String() string { return string(r) }

// AuthContext is the identity of the caller, passed explicitly to every engine call.
type AuthContext struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Role   Role   `json:"role"`
}

// Authenticated reports whether the context carries a user.
func (a AuthContext) Authenticated() bool {
	return a.UserID != "" && a.Role.Rank() > 0
}

// WorkOrderState is the part of a work order the policy looks at.
type WorkOrderState struct {
	Completed          bool
	RevisionInProgress bool
	RevisionCount      int
}

// CanEditWorkOrder admins always; staff only before completion, billing or any revision.
func CanEditWorkOrder(role Role, order WorkOrderState, hasBill bool) bool {
	if role.IsAdmin() {
		return true
	}
	if role != RoleUser {
		return false
	}
	return !order.Completed && !hasBill && order.RevisionCount == 0
}

// CanDeleteWorkOrder admins always; staff only while not completed, not
// mid-revision, unbilled and never revised.
func CanDeleteWorkOrder(role Role, order WorkOrderState, hasBill bool) bool {
	if role.IsAdmin() {
		return true
	}
	if role != RoleUser {
		return false
	}
	return !order.Completed && !order.RevisionInProgress && !hasBill && order.RevisionCount == 0
}

// CanCreateBill converting orders into bills is an admin task.
func CanCreateBill(role Role) bool {
	return role.IsAdmin()
}

// CanPriceBill admin only.
func CanPriceBill(role Role) bool {
	return role.IsAdmin()
}

// CanManageUsers admin only.
func CanManageUsers(role Role) bool {
	return role.IsAdmin()
}

// CanPromoteDemote SUPER_ADMIN accounts are never demoted.
func CanPromoteDemote(role Role, targetIsSuperAdmin bool) bool {
	return role.IsAdmin() && !targetIsSuperAdmin
}

// CanGrantRole only a SUPER_ADMIN may hand out SUPER_ADMIN.
func CanGrantRole(role Role, granted Role) bool {
	if !role.IsAdmin() || granted.Rank() == 0 {
		return false
	}
	return granted != RoleSuperAdmin || role == RoleSuperAdmin
}

// CanChangePassword admins may reset other accounts except SUPER_ADMIN;
// anyone may change their own.
func CanChangePassword(role Role, targetIsSuperAdmin, isSelf bool) bool {
	if isSelf {
		return role.Rank() > 0
	}
	return role.IsAdmin() && !targetIsSuperAdmin
}

// UserTarget describes the account an admin action is aimed at.
type UserTarget struct {
	Role Role
	// AdminCount is the number of ADMIN accounts currently in the system,
	// including the target.
	AdminCount int64
}

// LastAdmin reports whether removing the target would leave zero ADMIN accounts.
func (t UserTarget) LastAdmin() bool {
	return t.Role == RoleAdmin && t.AdminCount <= 1
}

// CanDeleteUser no self-delete, no SUPER_ADMIN delete, never the last ADMIN.
func CanDeleteUser(role Role, target UserTarget, isSelf bool) bool {
	if isSelf || !role.IsAdmin() {
		return false
	}
	if target.Role == RoleSuperAdmin || target.LastAdmin() {
		return false
	}
	return true
}
