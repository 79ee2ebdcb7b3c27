package model

import (
	"time"
)

// Subscription is one user's standing order for weekly top posts from one
// subreddit. (UserID, Subreddit) is unique: a user cannot subscribe twice to
// the same subreddit.
type Subscription struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"size:64;not null;uniqueIndex:idx_user_subreddit"`
	Subreddit string `gorm:"size:128;not null;uniqueIndex:idx_user_subreddit"`
	// SendOn is the desired weekday, numbered like time.Weekday (0 = Sunday).
	SendOn int `gorm:"not null"`
	// SendAt is the desired hour of day in UTC (0-23).
	SendAt     int `gorm:"not null"`
	LastSentAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName returns the table name for Subscription
func (Subscription) TableName() string {
	return "subscriptions"
}
