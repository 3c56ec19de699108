package models

import "time"

// Table is a physical table. Rows are never deleted while sessions reference them;
// Active=false takes a table out of service.
type Table struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	RestaurantID uint       `gorm:"not null;uniqueIndex:idx_restaurant_table_label" json:"restaurant_id"`
	Restaurant   Restaurant `gorm:"foreignKey:RestaurantID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Label        string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_restaurant_table_label" json:"label"`
	Capacity     int        `gorm:"not null;default:4" json:"capacity"`
	Active       bool       `gorm:"not null" json:"active"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
}
