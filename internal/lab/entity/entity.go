package entity

import "gorm.io/gorm"

// AutoMigrate creates or updates every lab table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserProfile{},

		&WorkOrder{},
		&RevisionHistory{},

		&Bill{},
		&BillItem{},
		&BillClaim{},

		&ActivityLog{},
	)
}
