package models

import (
	"time"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusServed    = "served"
	OrderStatusCancelled = "cancelled"
)

const (
	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"
)

// Order amounts are fixed at placement; only Status, PaymentStatus, PaidAt and
// PaymentID change afterwards.
type Order struct {
	ID                  uint        `gorm:"primaryKey" json:"id"`
	SessionID           string      `gorm:"type:varchar(36);not null;index" json:"session_id"`
	OrderNumber         string      `gorm:"type:varchar(20);not null;index" json:"order_number"`
	Items               []OrderItem `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"items"`
	SpecialInstructions string      `gorm:"type:text" json:"special_instructions,omitempty"`
	Subtotal            float64     `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	TaxAmount           float64     `gorm:"type:decimal(10,2);not null" json:"tax_amount"`
	ServiceCharge       float64     `gorm:"type:decimal(10,2);not null" json:"service_charge"`
	TotalAmount         float64     `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	Status              string      `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaymentStatus       string      `gorm:"type:varchar(20);not null;default:'unpaid';index" json:"payment_status"`
	PaymentID           *uint       `json:"payment_id,omitempty"`
	PaidAt              *time.Time  `json:"paid_at,omitempty"`
	CreatedAt           time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time   `gorm:"not null" json:"updated_at"`
}

func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}
