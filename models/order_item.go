package models

import (
	"time"

	"gorm.io/datatypes"
)

// SelectedCustomization is a customization chosen for one line item, priced at order time.
type SelectedCustomization struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type OrderItem struct {
	ID             uint                                       `gorm:"primaryKey" json:"id"`
	OrderID        uint                                       `gorm:"not null;index" json:"order_id"`
	MenuItemID     *uint                                      `gorm:"index" json:"menu_item_id,omitempty"`
	Name           string                                     `gorm:"type:varchar(255);not null" json:"name"`
	UnitPrice      float64                                    `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	Quantity       int                                        `gorm:"not null" json:"quantity"`
	Customizations datatypes.JSONType[[]SelectedCustomization] `json:"customizations"`
	Instructions   string                                     `gorm:"type:text" json:"instructions,omitempty"`
	LineTotal      float64                                    `gorm:"type:decimal(10,2);not null" json:"line_total"`
	CreatedAt      time.Time                                  `gorm:"not null" json:"created_at"`
}
