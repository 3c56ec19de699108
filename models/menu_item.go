package models

import (
	"time"

	"gorm.io/datatypes"
)

// CustomizationOption is one selectable add-on of a menu item. Price 0 means free.
type CustomizationOption struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type MenuItem struct {
	ID                   uint                                     `gorm:"primaryKey" json:"id"`
	RestaurantID         uint                                     `gorm:"not null;index" json:"restaurant_id"`
	Name                 string                                   `gorm:"type:varchar(255);not null" json:"name"`
	Description          string                                   `gorm:"type:text" json:"description"`
	Price                float64                                  `gorm:"type:decimal(10,2);not null" json:"price"`
	IsAvailable          bool                                     `gorm:"not null" json:"is_available"`
	CustomizationOptions datatypes.JSONType[[]CustomizationOption] `json:"customization_options"`
	CreatedAt            time.Time                                `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time                                `gorm:"not null" json:"updated_at"`
}

// OptionPrice looks up a customization by name.
func (m MenuItem) OptionPrice(name string) (float64, bool) {
	for _, opt := range m.CustomizationOptions.Data() {
		if opt.Name == name {
			return opt.Price, true
		}
	}
	return 0, false
}
