package repository

import (
	"context"

	"github.com/kayas881/Dental-system-management-sub000/internal/lab/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BillRef points at the bill a work order belongs to.
type BillRef struct {
	BillID string
	Kind   string
}

// BillRepository bill storage
type BillRepository struct {
	db *gorm.DB
}

func NewBillRepository(db *gorm.DB) *BillRepository {
	return &BillRepository{db: db}
}

// FindAll lists bills page by page
func (r *BillRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Bill, int64, error) {
	var items []entity.Bill
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Bill{})

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if doctor := filters["doctor_name"]; doctor != "" {
		query = query.Where("doctor_name = ?", doctor)
	}
	switch filters["grouped"] {
	case "true":
		query = query.Where("is_grouped = ?", true)
	case "false":
		query = query.Where("is_grouped = ?", false)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("serial_number ASC") }).
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID loads a bill with its items
func (r *BillRepository) FindByID(ctx context.Context, id string) (*entity.Bill, error) {
	var b entity.Bill
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, serial_number ASC") }).
		Where("id = ?", id).
		First(&b).Error
	if err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

// FindBillRefs reports, for each given work order that is already billed,
// which bill holds it. Individual bills, bill items and claims are all checked.
func (r *BillRepository) FindBillRefs(ctx context.Context, workOrderIDs []string) (map[string]BillRef, error) {
	refs := make(map[string]BillRef)
	if len(workOrderIDs) == 0 {
		return refs, nil
	}
	db := r.db.WithContext(ctx)

	var individual []entity.Bill
	if err := db.Select("id", "work_order_id").
		Where("is_grouped = ? AND work_order_id IN ?", false, workOrderIDs).
		Find(&individual).Error; err != nil {
		return nil, err
	}
	for _, b := range individual {
		if b.WorkOrderID != nil {
			refs[*b.WorkOrderID] = BillRef{BillID: b.ID, Kind: entity.BillKindIndividual}
		}
	}

	var items []entity.BillItem
	if err := db.Select("bill_id", "work_order_id").
		Where("work_order_id IN ?", workOrderIDs).
		Find(&items).Error; err != nil {
		return nil, err
	}
	for _, item := range items {
		if _, ok := refs[item.WorkOrderID]; !ok {
			refs[item.WorkOrderID] = BillRef{BillID: item.BillID, Kind: entity.BillKindGrouped}
		}
	}

	var claims []entity.BillClaim
	if err := db.Where("work_order_id IN ?", workOrderIDs).Find(&claims).Error; err != nil {
		return nil, err
	}
	for _, claim := range claims {
		if _, ok := refs[claim.WorkOrderID]; !ok {
			refs[claim.WorkOrderID] = BillRef{BillID: claim.BillID, Kind: claim.Kind}
		}
	}

	return refs, nil
}

// Create inserts the bill row only; items are written with CreateItems
func (r *BillRepository) Create(ctx context.Context, b *entity.Bill) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(b).Error)
}

// CreateItems inserts grouped bill items
func (r *BillRepository) CreateItems(ctx context.Context, items []entity.BillItem) error {
	if len(items) == 0 {
		return nil
	}
	return translate(r.db.WithContext(ctx).Create(&items).Error)
}

// CreateClaims reserves work orders for a bill. ErrDuplicate means at least
// one of them is already billed.
func (r *BillRepository) CreateClaims(ctx context.Context, claims []entity.BillClaim) error {
	if len(claims) == 0 {
		return nil
	}
	return translate(r.db.WithContext(ctx).Create(&claims).Error)
}

// Updates writes the given bill columns
func (r *BillRepository) Updates(ctx context.Context, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&entity.Bill{}).
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

// FindItemByID loads one bill item
func (r *BillRepository) FindItemByID(ctx context.Context, id string) (*entity.BillItem, error) {
	var item entity.BillItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

// UpdateItem writes the given item columns
func (r *BillRepository) UpdateItem(ctx context.Context, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&entity.BillItem{}).
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

// FindOrphanedGrouped grouped bills that own no items
func (r *BillRepository) FindOrphanedGrouped(ctx context.Context) ([]entity.Bill, error) {
	var bills []entity.Bill
	err := r.db.WithContext(ctx).
		Where("is_grouped = ?", true).
		Where("NOT EXISTS (SELECT 1 FROM bill_items WHERE bill_items.bill_id = bills.id)").
		Order("created_at ASC").
		Find(&bills).Error
	return bills, err
}

// ReleaseWorkOrder detaches a work order from whatever bill holds it:
// its claim, its bill item and an individual bill naming it.
func (r *BillRepository) ReleaseWorkOrder(ctx context.Context, workOrderID string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("work_order_id = ?", workOrderID).Delete(&entity.BillClaim{}).Error; err != nil {
		return err
	}
	if err := db.Where("work_order_id = ?", workOrderID).Delete(&entity.BillItem{}).Error; err != nil {
		return err
	}
	return db.Where("is_grouped = ? AND work_order_id = ?", false, workOrderID).Delete(&entity.Bill{}).Error
}

// Delete removes a bill row with its items and claims
func (r *BillRepository) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("bill_id = ?", id).Delete(&entity.BillClaim{}).Error; err != nil {
		return err
	}
	if err := db.Where("bill_id = ?", id).Delete(&entity.BillItem{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&entity.Bill{}).Error
}

// CountByStatus bill count per status
func (r *BillRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&entity.Bill{}).
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
