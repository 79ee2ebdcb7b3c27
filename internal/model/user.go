package model

import (
	"time"
)

// User is the identity anchor for a chat user. Deleting a user cascades to
// their subscriptions and any in-progress dialog state.
type User struct {
	ID            string `gorm:"primaryKey;size:64"`
	CreatedAt     time.Time
	Subscriptions []Subscription `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	DialogState   *DialogState   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for User
func (User) TableName() string {
	return "users"
}
