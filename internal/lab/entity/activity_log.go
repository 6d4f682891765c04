package entity

import "time"

// ActivityLog records every status change of work orders and bills.
type ActivityLog struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	EntityType string `json:"entity_type" gorm:"size:50;not null;index:idx_activity_entity"` // work_order/bill/user
	EntityID   string `json:"entity_id" gorm:"size:32;not null;index:idx_activity_entity"`
	EntityCode string `json:"entity_code" gorm:"type:text"`

	Action     string `json:"action" gorm:"size:50;not null"` // create/complete/return/price/print...
	FromStatus string `json:"from_status" gorm:"size:32"`
	ToStatus   string `json:"to_status" gorm:"size:32"`

	Content    string    `json:"content" gorm:"type:text"`
	OperatorID string    `json:"operator_id" gorm:"size:32"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}

// Activity entity types.
const (
	EntityWorkOrder = "work_order"
	EntityBill      = "bill"
	EntityUser      = "user"
)
