package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/entity"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/policy"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// UserService user profile management
type UserService struct {
	repos  *repository.Repositories
	logger *zap.Logger
}

func NewUserService(repos *repository.Repositories, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repos: repos, logger: logger}
}

// CreateUserRequest new account
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Password string `json:"password" binding:"required"`
}

// ChangePasswordRequest self-service password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

func roleOf(u *entity.UserProfile) policy.Role {
	role, _ := policy.ParseRole(u.Role)
	return role
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", errValidation([]string{"password"}, "Password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", &Error{Kind: KindStorage, Message: "Could not hash password", Err: err}
	}
	return string(hash), nil
}

func (s *UserService) authorize(auth policy.AuthContext) error {
	if err := requireAuth(auth); err != nil {
		return err
	}
	if !policy.CanManageUsers(auth.Role) {
		return errPermission("manage users")
	}
	return nil
}

// Me the caller's own profile
func (s *UserService) Me(ctx context.Context, auth policy.AuthContext) (*entity.UserProfile, error) {
	if err := requireAuth(auth); err != nil {
		return nil, err
	}
	u, err := s.repos.User.FindByID(ctx, auth.UserID)
	if err != nil {
		return nil, storageErr(err, "User", auth.UserID)
	}
	return u, nil
}

// List one page of accounts
func (s *UserService) List(ctx context.Context, auth policy.AuthContext, page, pageSize int, filters map[string]string) ([]entity.UserProfile, int64, error) {
	if err := s.authorize(auth); err != nil {
		return nil, 0, err
	}
	items, total, err := s.repos.User.FindAll(ctx, page, pageSize, filters)
	if err != nil {
		return nil, 0, storageErr(err, "Users", "")
	}
	return items, total, nil
}

// Create adds an account. Only a SUPER_ADMIN may create another SUPER_ADMIN.
func (s *UserService) Create(ctx context.Context, auth policy.AuthContext, req *CreateUserRequest) (*entity.UserProfile, error) {
	if err := s.authorize(auth); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errValidation([]string{"email"}, "A valid email is required")
	}
	role := policy.RoleUser
	if req.Role != "" {
		parsed, err := policy.ParseRole(req.Role)
		if err != nil {
			return nil, errValidation([]string{"role"}, "Unknown role %q", req.Role)
		}
		role = parsed
	}
	if !policy.CanGrantRole(auth.Role, role) {
		return nil, errPermission("grant the " + role.String() + " role")
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	if _, err := s.repos.User.FindByEmail(ctx, email); err == nil {
		return nil, errValidation([]string{"email"}, "Email %s is already in use", email)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, storageErr(err, "User", email)
	}

	u := &entity.UserProfile{
		ID:           uuid.New().String()[:32],
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		Role:         role.String(),
		PasswordHash: hash,
		CreatedBy:    auth.UserID,
	}
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.User.Create(ctx, u); err != nil {
			return err
		}
		return tx.ActivityLog.LogActivity(ctx, entity.EntityUser, u.ID, u.Email, "create", "", u.Role, "", auth.UserID)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, errValidation([]string{"email"}, "Email %s is already in use", email)
	}
	if err != nil {
		return nil, storageErr(err, "User", u.ID)
	}

	s.logger.Info("user created", zap.String("id", u.ID), zap.String("role", u.Role), zap.String("by", auth.UserID))
	return u, nil
}

// SetRole promotes or demotes an account. SUPER_ADMIN accounts are never
// changed and the last ADMIN is never demoted.
func (s *UserService) SetRole(ctx context.Context, auth policy.AuthContext, userID, role string) (*entity.UserProfile, error) {
	if err := s.authorize(auth); err != nil {
		return nil, err
	}
	granted, err := policy.ParseRole(role)
	if err != nil {
		return nil, errValidation([]string{"role"}, "Unknown role %q", role)
	}

	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		target, err := tx.User.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		current := roleOf(target)
		if !policy.CanPromoteDemote(auth.Role, current == policy.RoleSuperAdmin) {
			return errPermission("change the role of this account")
		}
		if !policy.CanGrantRole(auth.Role, granted) {
			return errPermission("grant the " + granted.String() + " role")
		}
		if current == granted {
			return nil
		}
		if current == policy.RoleAdmin {
			admins, err := tx.User.CountByRole(ctx, policy.RoleAdmin.String())
			if err != nil {
				return err
			}
			if (policy.UserTarget{Role: current, AdminCount: admins}).LastAdmin() {
				return errPermission("demote the last remaining admin")
			}
		}
		if err := tx.User.Updates(ctx, userID, map[string]interface{}{"role": granted.String()}); err != nil {
			return err
		}
		return tx.ActivityLog.LogActivity(ctx, entity.EntityUser, userID, target.Email,
			"set_role", current.String(), granted.String(), "", auth.UserID)
	})
	if err != nil {
		return nil, storageErr(err, "User", userID)
	}

	s.logger.Info("user role set", zap.String("id", userID), zap.String("role", granted.String()), zap.String("by", auth.UserID))
	return s.get(ctx, userID)
}

// ResetPassword sets another account's password. The caller's own password
// only changes through ChangeOwnPassword.
func (s *UserService) ResetPassword(ctx context.Context, auth policy.AuthContext, userID, password string) error {
	if err := requireAuth(auth); err != nil {
		return err
	}
	target, err := s.repos.User.FindByID(ctx, userID)
	if err != nil {
		return storageErr(err, "User", userID)
	}
	if target.ID == auth.UserID {
		return errValidation([]string{"current_password"}, "Change your own password with your current password")
	}
	if !policy.CanChangePassword(auth.Role, roleOf(target) == policy.RoleSuperAdmin, false) {
		return errPermission("change the password of this account")
	}
	return s.writePassword(ctx, auth, target, password)
}

// ChangeOwnPassword verifies the current password before replacing it.
func (s *UserService) ChangeOwnPassword(ctx context.Context, auth policy.AuthContext, req *ChangePasswordRequest) error {
	if err := requireAuth(auth); err != nil {
		return err
	}
	if !policy.CanChangePassword(auth.Role, false, true) {
		return errPermission("change your password")
	}
	u, err := s.repos.User.FindByID(ctx, auth.UserID)
	if err != nil {
		return storageErr(err, "User", auth.UserID)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.CurrentPassword)) != nil {
		return errValidation([]string{"current_password"}, "Current password is incorrect")
	}
	return s.writePassword(ctx, auth, u, req.NewPassword)
}

func (s *UserService) writePassword(ctx context.Context, auth policy.AuthContext, target *entity.UserProfile, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.User.Updates(ctx, target.ID, map[string]interface{}{"password_hash": hash}); err != nil {
			return err
		}
		return tx.ActivityLog.LogActivity(ctx, entity.EntityUser, target.ID, target.Email, "password", "", "", "", auth.UserID)
	})
	if err != nil {
		return storageErr(err, "User", target.ID)
	}
	s.logger.Info("password changed", zap.String("id", target.ID), zap.String("by", auth.UserID))
	return nil
}

// Delete removes an account: never oneself, never a SUPER_ADMIN, never the
// last ADMIN.
func (s *UserService) Delete(ctx context.Context, auth policy.AuthContext, userID string) error {
	if err := s.authorize(auth); err != nil {
		return err
	}

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		target, err := tx.User.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		admins, err := tx.User.CountByRole(ctx, policy.RoleAdmin.String())
		if err != nil {
			return err
		}
		ut := policy.UserTarget{Role: roleOf(target), AdminCount: admins}
		isSelf := target.ID == auth.UserID
		if !policy.CanDeleteUser(auth.Role, ut, isSelf) {
			switch {
			case isSelf:
				return errPermission("delete your own account")
			case ut.Role == policy.RoleSuperAdmin:
				return errPermission("delete a super admin account")
			case ut.LastAdmin():
				return errPermission("delete the last remaining admin")
			}
			return errPermission("delete this account")
		}
		if err := tx.User.Delete(ctx, userID); err != nil {
			return err
		}
		return tx.ActivityLog.LogActivity(ctx, entity.EntityUser, userID, target.Email, "delete", target.Role, "", "", auth.UserID)
	})
	if err != nil {
		return storageErr(err, "User", userID)
	}

	s.logger.Info("user deleted", zap.String("id", userID), zap.String("by", auth.UserID))
	return nil
}

func (s *UserService) get(ctx context.Context, id string) (*entity.UserProfile, error) {
	u, err := s.repos.User.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr(err, "User", id)
	}
	return u, nil
}

// Bootstrap creates the first SUPER_ADMIN when no super admin exists yet.
func (s *UserService) Bootstrap(ctx context.Context, email, password string) error {
	count, err := s.repos.User.CountByRole(ctx, policy.RoleSuperAdmin.String())
	if err != nil {
		return storageErr(err, "Users", "")
	}
	if count > 0 {
		return nil
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	u := &entity.UserProfile{
		ID:           uuid.New().String()[:32],
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Name:         "Super Admin",
		Role:         policy.RoleSuperAdmin.String(),
		PasswordHash: hash,
	}
	if err := s.repos.User.Create(ctx, u); err != nil {
		return storageErr(err, "User", u.ID)
	}
	s.logger.Info("super admin bootstrapped", zap.String("email", u.Email))
	return nil
}
