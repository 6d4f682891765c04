package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// DefaultBatchSize is the page size for full-table retrieval.
const DefaultBatchSize = 1000

// Repositories groups the lab repositories over one connection or transaction.
type Repositories struct {
	db *gorm.DB

	WorkOrder   *WorkOrderRepository
	Revision    *RevisionRepository
	Bill        *BillRepository
	User        *UserRepository
	ActivityLog *ActivityLogRepository
}

// NewRepositories creates the repository set.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:          db,
		WorkOrder:   NewWorkOrderRepository(db),
		Revision:    NewRevisionRepository(db),
		Bill:        NewBillRepository(db),
		User:        NewUserRepository(db),
		ActivityLog: NewActivityLogRepository(db),
	}
}

// DB returns the underlying handle.
func (r *Repositories) DB() *gorm.DB {
	return r.db
}

// Transaction runs fn with every repository bound to one database
// transaction. fn must only use the repositories it is handed.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}
