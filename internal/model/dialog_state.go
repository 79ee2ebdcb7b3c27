package model

import (
	"time"
)

// DialogState is the durable progress of a multi-step conversation. At most
// one row exists per user; every step advance replaces the whole row and the
// terminal step deletes it.
//
// Data is a JSON object mapping previously visited step names to the raw
// payload received at that step. Version identifies the serialization format
// so that rows written by an incompatible build are rejected on resume
// instead of being guessed at.
type DialogState struct {
	UserID    string `gorm:"primaryKey;size:64"`
	Command   string `gorm:"size:32;not null"`
	Step      string `gorm:"size:32;not null"`
	Version   int    `gorm:"not null"`
	Data      string `gorm:"size:4096;not null"`
	UpdatedAt time.Time
}

// TableName returns the table name for DialogState
func (DialogState) TableName() string {
	return "dialog_states"
}
