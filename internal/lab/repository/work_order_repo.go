package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kayas881/Dental-system-management-sub000/internal/lab/entity"
	"gorm.io/gorm"
)

// WorkOrderRepository work order storage
type WorkOrderRepository struct {
	db *gorm.DB
}

func NewWorkOrderRepository(db *gorm.DB) *WorkOrderRepository {
	return &WorkOrderRepository{db: db}
}

// FindAll lists work orders page by page
func (r *WorkOrderRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.WorkOrder, int64, error) {
	var items []entity.WorkOrder
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.WorkOrder{})

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if doctor := filters["doctor_name"]; doctor != "" {
		query = query.Where("LOWER(doctor_name) LIKE ?", "%"+strings.ToLower(doctor)+"%")
	}
	if batchID := filters["batch_id"]; batchID != "" {
		query = query.Where("batch_id = ?", batchID)
	}
	if keyword := filters["search"]; keyword != "" {
		like := "%" + strings.ToLower(keyword) + "%"
		query = query.Where("LOWER(patient_name) LIKE ? OR LOWER(serial_number) LIKE ?", like, like)
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

// FindInBatches walks the whole table batchSize rows at a time.
func (r *WorkOrderRepository) FindInBatches(ctx context.Context, batchSize int, fn func(batch []entity.WorkOrder) error) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	var batch []entity.WorkOrder
	result := r.db.WithContext(ctx).
		Model(&entity.WorkOrder{}).
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
			return fn(batch)
		})
	return result.Error
}

// FindByID loads one work order
func (r *WorkOrderRepository) FindByID(ctx context.Context, id string) (*entity.WorkOrder, error) {
	var wo entity.WorkOrder
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&wo).Error
	if err != nil {
		return nil, translate(err)
	}
	return &wo, nil
}

// FindByIDs loads the given work orders; missing ids are simply absent from the result.
func (r *WorkOrderRepository) FindByIDs(ctx context.Context, ids []string) ([]entity.WorkOrder, error) {
	var items []entity.WorkOrder
	if len(ids) == 0 {
		return items, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error
	return items, err
}

// FindByBatch loads every order of a batch in creation order
func (r *WorkOrderRepository) FindByBatch(ctx context.Context, batchID string) ([]entity.WorkOrder, error) {
	var items []entity.WorkOrder
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("serial_number ASC").
		Find(&items).Error
	return items, err
}

// Create inserts a work order
func (r *WorkOrderRepository) Create(ctx context.Context, wo *entity.WorkOrder) error {
	return translate(r.db.WithContext(ctx).Create(wo).Error)
}

// Updates writes the given columns. It never touches serial_number, created_at or created_by.
func (r *WorkOrderRepository) Updates(ctx context.Context, id string, fields map[string]interface{}) error {
	delete(fields, "serial_number")
	delete(fields, "created_at")
	delete(fields, "created_by")
	delete(fields, "id")

	result := r.db.WithContext(ctx).
		Model(&entity.WorkOrder{}).
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

// Delete removes a work order row
func (r *WorkOrderRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.WorkOrder{}).Error
}

// GenerateSerial returns the next serial number WO-YYYYMM-NNNN. The counter
// widens past four digits, so the latest serial is the longest one.
func (r *WorkOrderRepository) GenerateSerial(ctx context.Context, now time.Time) (string, error) {
	prefix := fmt.Sprintf("WO-%s-", now.Format("200601"))
	var last []string
	err := r.db.WithContext(ctx).
		Model(&entity.WorkOrder{}).
		Where("serial_number LIKE ?", prefix+"%").
		Order("LENGTH(serial_number) DESC, serial_number DESC").
		Limit(1).
		Pluck("serial_number", &last).Error
	if err != nil {
		return "", err
	}

	next := 1
	if len(last) > 0 {
		if n, err := strconv.Atoi(strings.TrimPrefix(last[0], prefix)); err == nil {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, next), nil
}

// CountByStatus work order count per status
func (r *WorkOrderRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&entity.WorkOrder{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
