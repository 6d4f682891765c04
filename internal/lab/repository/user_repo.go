package repository

import (
	"context"
	"strings"

	"github.com/kayas881/Dental-system-management-sub000/internal/lab/entity"
	"gorm.io/gorm"
)

// UserRepository user profile storage
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindAll lists accounts page by page
func (r *UserRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.UserProfile, int64, error) {
	var items []entity.UserProfile
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.UserProfile{})
	if role := filters["role"]; role != "" {
		query = query.Where("role = ?", role)
	}
	if keyword := filters["search"]; keyword != "" {
		like := "%" + strings.ToLower(keyword) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID loads one account
func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.UserProfile, error) {
	var u entity.UserProfile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// FindByEmail loads an account by its lower-cased email
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.UserProfile, error) {
	var u entity.UserProfile
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// Create inserts an account; ErrDuplicate on a taken email
func (r *UserRepository) Create(ctx context.Context, u *entity.UserProfile) error {
	return translate(r.db.WithContext(ctx).Create(u).Error)
}

// Updates writes the given account columns
func (r *UserRepository) Updates(ctx context.Context, id string, fields map[string]interface{}) error {
	delete(fields, "id")
	delete(fields, "email")
	result := r.db.WithContext(ctx).
		Model(&entity.UserProfile{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an account
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.UserProfile{}).Error
}

// CountByRole number of accounts holding role
func (r *UserRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.UserProfile{}).Where("role = ?", role).Count(&n).Error
	return n, err
}
