package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Bill statuses.
const (
	BillStatusPending = "pending"
	BillStatusPriced  = "priced"
	BillStatusPrinted = "printed"
	BillStatusSent    = "sent"
)

// ValidBillStatuses in workflow order.
var ValidBillStatuses = []string{BillStatusPending, BillStatusPriced, BillStatusPrinted, BillStatusSent}

// IsValidBillStatus reports whether s is one of ValidBillStatuses.
func IsValidBillStatus(s string) bool {
	for _, status := range ValidBillStatuses {
		if status == s {
			return true
		}
	}
	return false
}

// MultiplePatients is the patient name of a grouped bill spanning patients.
const MultiplePatients = "Multiple Patients"

// Bill kinds reported by the has-bill check.
const (
	BillKindIndividual = "individual"
	BillKindGrouped    = "grouped"
)

// Bill covers one work order (individual) or several through BillItems (grouped).
type Bill struct {
	ID           string `json:"id" gorm:"primaryKey;size:32"`
	SerialNumber string `json:"serial_number" gorm:"type:text;not null"`

	IsGrouped   bool    `json:"is_grouped" gorm:"not null;default:false"`
	GroupID     *string `json:"group_id" gorm:"size:36;index"`
	BatchID     *string `json:"batch_id" gorm:"size:32;index"`
	WorkOrderID *string `json:"work_order_id" gorm:"size:32;index"`

	DoctorName      string                   `json:"doctor_name" gorm:"size:128;index"`
	PatientName     string                   `json:"patient_name" gorm:"size:128"`
	WorkDescription string                   `json:"work_description" gorm:"type:text"`
	ToothNumbers    datatypes.JSONSlice[int] `json:"tooth_numbers" gorm:"not null"`

	BillDate       time.Time       `json:"bill_date"`
	CompletionDate *time.Time      `json:"completion_date"`
	Status         string          `json:"status" gorm:"size:20;not null;index"`
	Amount         decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	Notes          string          `json:"notes" gorm:"type:text"`

	PricedBy  string     `json:"priced_by" gorm:"size:32"`
	PricedAt  *time.Time `json:"priced_at"`
	PrintedAt *time.Time `json:"printed_at"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []BillItem `json:"items,omitempty" gorm:"foreignKey:BillID"`

	ItemsTotal *decimal.Decimal `json:"items_total,omitempty" gorm:"-"`
}

func (Bill) TableName() string {
	return "bills"
}

// SumItems sets ItemsTotal from the loaded items.
func (b *Bill) SumItems() {
	if !b.IsGrouped {
		return
	}
	total := decimal.Zero
	for _, item := range b.Items {
		total = total.Add(item.TotalPrice)
	}
	b.ItemsTotal = &total
}

// BillItem is one work order inside a grouped bill.
type BillItem struct {
	ID             string          `json:"id" gorm:"primaryKey;size:32"`
	BillID         string          `json:"bill_id" gorm:"size:32;not null;index"`
	WorkOrderID    string          `json:"work_order_id" gorm:"size:32;not null;uniqueIndex"`
	SerialNumber   string          `json:"serial_number" gorm:"size:32"`
	ProductQuality string          `json:"product_quality" gorm:"size:100"`
	ProductShade   string          `json:"product_shade" gorm:"size:50"`
	Quantity       int             `json:"quantity" gorm:"not null"`
	UnitPrice      decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	TotalPrice     decimal.Decimal `json:"total_price" gorm:"type:decimal(12,2);not null"`
	Notes          *string         `json:"notes" gorm:"type:text"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (BillItem) TableName() string {
	return "bill_items"
}

// BillClaim reserves a work order for exactly one bill. The primary key on
// work_order_id is what makes double billing impossible in storage, for
// individual and grouped bills alike.
type BillClaim struct {
	WorkOrderID string    `json:"work_order_id" gorm:"primaryKey;size:32"`
	BillID      string    `json:"bill_id" gorm:"size:32;not null;index"`
	Kind        string    `json:"kind" gorm:"size:16;not null"`
	CreatedAt   time.Time `json:"created_at"`
}

func (BillClaim) TableName() string {
	return "bill_claims"
}
