package models

import (
	"time"

	"gorm.io/datatypes"
)

type ReceiptLine struct {
	OrderNumber    string   `json:"order_number"`
	Name           string   `json:"name"`
	Quantity       int      `json:"quantity"`
	UnitPrice      float64  `json:"unit_price"`
	Customizations []string `json:"customizations,omitempty"`
	LineTotal      float64  `json:"line_total"`
}

type ReceiptOrder struct {
	OrderNumber string  `json:"order_number"`
	ItemCount   int     `json:"item_count"`
	Amount      float64 `json:"amount"`
}

type ReceiptPayment struct {
	Method        string  `json:"method"`
	Provider      string  `json:"provider"`
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
	Fee           float64 `json:"fee"`
	ReceivedBy    string  `json:"received_by,omitempty"`
}

type ReceiptBreakdown struct {
	Subtotal      float64          `json:"subtotal"`
	Tax           float64          `json:"tax"`
	ServiceCharge float64          `json:"service_charge"`
	Total         float64          `json:"total"`
	Tips          float64          `json:"tips"`
	Orders        []ReceiptOrder   `json:"orders"`
	Payments      []ReceiptPayment `json:"payments"`
}

// Receipt is a point-in-time snapshot of a session's paid orders. One per session, never updated.
type Receipt struct {
	ID             uint                                 `gorm:"primaryKey" json:"id"`
	SessionID      string                               `gorm:"type:varchar(36);not null;uniqueIndex" json:"session_id"`
	ReceiptNumber  string                               `gorm:"type:varchar(30);not null;uniqueIndex" json:"receipt_number"`
	RestaurantName string                               `gorm:"type:varchar(150)" json:"restaurant_name"`
	TableLabel     string                               `gorm:"type:varchar(50)" json:"table_label"`
	CustomerName   string                               `gorm:"type:varchar(100)" json:"customer_name"`
	CustomerPhone  *string                              `gorm:"type:varchar(30)" json:"customer_phone,omitempty"`
	CustomerEmail  *string                              `gorm:"type:varchar(255)" json:"customer_email,omitempty"`
	Items          datatypes.JSONType[[]ReceiptLine]     `json:"items"`
	Breakdown      datatypes.JSONType[ReceiptBreakdown] `json:"breakdown"`
	Total          float64                              `gorm:"type:decimal(12,2);not null" json:"total"`
	GeneratedAt    time.Time                            `gorm:"not null" json:"generated_at"`
}
