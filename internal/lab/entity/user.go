package entity

import "time"

// UserProfile is a lab account. Authentication happens elsewhere; this row
// carries the role the API trusts.
type UserProfile struct {
	ID           string    `json:"id" gorm:"primaryKey;size:32"`
	Email        string    `json:"email" gorm:"size:128;not null;uniqueIndex"`
	Name         string    `json:"name" gorm:"size:64"`
	Role         string    `json:"role" gorm:"size:16;not null;index"`
	PasswordHash string    `json:"-" gorm:"size:128"`
	CreatedBy    string    `json:"created_by" gorm:"size:32"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}
