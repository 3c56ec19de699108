package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	PaymentRecordSuccess = "success"
	PaymentRecordFailed  = "failed"
	PaymentRecordPending = "pending"
)

// Payment is one payment attempt. Rows are append-only.
type Payment struct {
	ID                   uint                      `gorm:"primaryKey" json:"id"`
	SessionID            string                    `gorm:"type:varchar(36);not null;index" json:"session_id"`
	OrderID              *uint                     `gorm:"index" json:"order_id,omitempty"`
	OrderIDs             datatypes.JSONType[[]uint] `json:"order_ids"`
	Method               string                    `gorm:"type:varchar(20);not null" json:"method"`
	Provider             string                    `gorm:"type:varchar(50);not null" json:"provider"`
	TransactionID        string                    `gorm:"type:varchar(40);not null;index" json:"transaction_id"`
	GatewayTransactionID string                    `gorm:"type:varchar(100)" json:"gateway_transaction_id,omitempty"`
	Amount               float64                   `gorm:"type:decimal(12,2);not null" json:"amount"`
	TipAmount            float64                   `gorm:"type:decimal(12,2);not null;default:0" json:"tip_amount"`
	Fee                  float64                   `gorm:"type:decimal(12,2);not null;default:0" json:"fee"`
	NetAmount            float64                   `gorm:"type:decimal(12,2);not null" json:"net_amount"`
	Currency             string                    `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	Status               string                    `gorm:"type:varchar(20);not null" json:"status"`
	Reference            string                    `gorm:"type:varchar(100)" json:"reference"`
	FailureReason        *string                   `gorm:"type:varchar(255)" json:"failure_reason,omitempty"`
	Metadata             datatypes.JSONMap         `json:"metadata,omitempty"`
	CreatedAt            time.Time                 `gorm:"not null" json:"created_at"`
}

// CounterPayment records cash collected by staff at the counter.
type CounterPayment struct {
	ID               uint                      `gorm:"primaryKey" json:"id"`
	SessionID        string                    `gorm:"type:varchar(36);not null;index" json:"session_id"`
	PaymentID        uint                      `gorm:"not null" json:"payment_id"`
	OrderIDs         datatypes.JSONType[[]uint] `json:"order_ids"`
	Amount           float64                   `gorm:"type:decimal(12,2);not null" json:"amount"`
	ReceivedBy       string                    `gorm:"type:varchar(100);not null" json:"received_by"`
	ReceivedByUserID *uint                     `json:"received_by_user_id,omitempty"`
	Notes            string                    `gorm:"type:text" json:"notes,omitempty"`
	ReceivedAt       time.Time                 `gorm:"not null" json:"received_at"`
}
