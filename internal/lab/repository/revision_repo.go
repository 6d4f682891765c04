package repository

import (
	"context"

	"github.com/kayas881/Dental-system-management-sub000/internal/lab/entity"
	"gorm.io/gorm"
)

// RevisionRepository revision history storage. Rows are only ever appended
// and outlive the work order they belong to.
type RevisionRepository struct {
	db *gorm.DB
}

func NewRevisionRepository(db *gorm.DB) *RevisionRepository {
	return &RevisionRepository{db: db}
}

// Create appends a history row
func (r *RevisionRepository) Create(ctx context.Context, h *entity.RevisionHistory) error {
	return translate(r.db.WithContext(ctx).Create(h).Error)
}

// FindByWorkOrder lists history rows by revision number
func (r *RevisionRepository) FindByWorkOrder(ctx context.Context, workOrderID string) ([]entity.RevisionHistory, error) {
	var rows []entity.RevisionHistory
	err := r.db.WithContext(ctx).
		Where("work_order_id = ?", workOrderID).
		Order("revision_number ASC").
		Find(&rows).Error
	return rows, err
}

// MaxRevisionNumber highest revision number recorded for the order, 0 when none
func (r *RevisionRepository) MaxRevisionNumber(ctx context.Context, workOrderID string) (int, error) {
	var maxNumber *int
	err := r.db.WithContext(ctx).
		Model(&entity.RevisionHistory{}).
		Where("work_order_id = ?", workOrderID).
		Select("MAX(revision_number)").
		Scan(&maxNumber).Error
	if err != nil || maxNumber == nil {
		return 0, err
	}
	return *maxNumber, nil
}
