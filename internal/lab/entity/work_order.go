package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Work order statuses.
const (
	WorkOrderStatusInProgress         = "in_progress"
	WorkOrderStatusCompleted          = "completed"
	WorkOrderStatusReturned           = "returned"
	WorkOrderStatusRevisionInProgress = "revision_in_progress"
	WorkOrderStatusCancelled          = "cancelled"
)

// ValidWorkOrderTransitions lists the allowed work order status changes.
var ValidWorkOrderTransitions = map[string][]string{
	WorkOrderStatusInProgress:         {WorkOrderStatusCompleted, WorkOrderStatusCancelled},
	WorkOrderStatusCompleted:          {WorkOrderStatusReturned},
	WorkOrderStatusReturned:           {WorkOrderStatusRevisionInProgress, WorkOrderStatusCompleted, WorkOrderStatusCancelled},
	WorkOrderStatusRevisionInProgress: {WorkOrderStatusCompleted, WorkOrderStatusCancelled},
}

// CanTransition reports whether from → to is in ValidWorkOrderTransitions.
func CanTransition(from, to string) bool {
	for _, target := range ValidWorkOrderTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// WorkOrder is one prosthetic job for one patient.
type WorkOrder struct {
	ID           string `json:"id" gorm:"primaryKey;size:32"`
	SerialNumber string `json:"serial_number" gorm:"size:32;uniqueIndex;not null"`

	DoctorName     string                   `json:"doctor_name" gorm:"size:128;index"`
	PatientName    string                   `json:"patient_name" gorm:"size:128;not null"`
	ProductQuality string                   `json:"product_quality" gorm:"size:100"`
	ProductShade   string                   `json:"product_shade" gorm:"size:50"`
	ToothNumbers   datatypes.JSONSlice[int] `json:"tooth_numbers" gorm:"not null"`
	Feedback       string                   `json:"feedback" gorm:"type:text"`

	Status               string     `json:"status" gorm:"size:32;not null;index"`
	OrderDate            time.Time  `json:"order_date"`
	CompletionDate       *time.Time `json:"completion_date"`
	ExpectedCompleteDate *time.Time `json:"expected_complete_date"`

	// revision tracking
	RevisionCount          int        `json:"revision_count" gorm:"not null;default:0"`
	ReturnReason           string     `json:"return_reason" gorm:"type:text"`
	ReturnDate             *time.Time `json:"return_date"`
	RevisionNotes          string     `json:"revision_notes" gorm:"type:text"`
	PreviousCompletionDate *time.Time `json:"previous_completion_date"`

	BatchID *string             `json:"batch_id" gorm:"size:32;index"`
	Amount  decimal.NullDecimal `json:"amount" gorm:"type:decimal(12,2)"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	StatusLabel string `json:"status_label" gorm:"-"`
}

func (WorkOrder) TableName() string {
	return "work_orders"
}

// Description "{quality} - {shade}", the line used on bills.
func (w *WorkOrder) Description() string {
	switch {
	case w.ProductQuality != "" && w.ProductShade != "":
		return w.ProductQuality + " - " + w.ProductShade
	case w.ProductQuality != "":
		return w.ProductQuality
	default:
		return w.ProductShade
	}
}

// InRevision reports whether the order is in the open-revision superstate.
func (w *WorkOrder) InRevision() bool {
	return w.Status == WorkOrderStatusReturned || w.Status == WorkOrderStatusRevisionInProgress
}

// FillLabel sets the derived StatusLabel.
func (w *WorkOrder) FillLabel() {
	w.StatusLabel = StatusLabel(w.Status, w.RevisionCount)
}

// StatusLabel is the badge text for a work order. It is the only place the
// label is derived.
func StatusLabel(status string, revisionCount int) string {
	switch status {
	case WorkOrderStatusInProgress:
		return "In Progress"
	case WorkOrderStatusCompleted:
		if revisionCount > 0 {
			return fmt.Sprintf("Completed (Rev %d)", revisionCount)
		}
		return "Completed"
	case WorkOrderStatusReturned:
		return fmt.Sprintf("Returned (Rev %d)", revisionCount)
	case WorkOrderStatusRevisionInProgress:
		return fmt.Sprintf("Revision %d In Progress", revisionCount)
	case WorkOrderStatusCancelled:
		return "Cancelled"
	}
	return status
}

// RevisionHistory has one row per return cycle. Rows are append-only.
type RevisionHistory struct {
	ID                        string     `json:"id" gorm:"primaryKey;size:32"`
	WorkOrderID               string     `json:"work_order_id" gorm:"size:32;not null;uniqueIndex:idx_revision_wo_number"`
	RevisionNumber            int        `json:"revision_number" gorm:"not null;uniqueIndex:idx_revision_wo_number"`
	ReturnReason              string     `json:"return_reason" gorm:"type:text;not null"`
	RevisionNotes             string     `json:"revision_notes" gorm:"type:text"`
	ReturnDate                time.Time  `json:"return_date"`
	PreviousCompletionDate    *time.Time `json:"previous_completion_date"`
	NewExpectedCompletionDate *time.Time `json:"new_expected_completion_date"`
	CreatedBy                 string     `json:"created_by" gorm:"size:32"`
	CreatedAt                 time.Time  `json:"created_at"`

	Active bool `json:"active" gorm:"-"`
}

func (RevisionHistory) TableName() string {
	return "revision_history"
}

// MarkActive sets Active on the last row iff the order is not completed.
// Rows must be ordered by revision number.
func MarkActive(rows []RevisionHistory, orderStatus string) {
	for i := range rows {
		rows[i].Active = i == len(rows)-1 && orderStatus != WorkOrderStatusCompleted
	}
}
