package models

import (
	"time"
)

const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// DBChange is one row of the change feed, written in the same transaction as the change it describes.
type DBChange struct {
	ID        uint      `gorm:"primaryKey"`
	Entity    string    `gorm:"type:varchar(50);not null;index:idx_entity_action"`
	RecordID  string    `gorm:"type:varchar(64);not null"`
	Action    string    `gorm:"type:varchar(10);not null;index:idx_entity_action"`
	ChangedAt time.Time `gorm:"not null"`
	Processed bool      `gorm:"not null;default:false;index:idx_processed"`
}
