package models

import (
	"time"
)

const (
	NotificationOrderPlaced           = "order_placed"
	NotificationOrderStatus           = "order_status"
	NotificationCounterPaymentPending = "counter_payment_pending"
	NotificationPaymentCompleted      = "payment_completed"
	NotificationSessionClosed         = "session_closed"
)

type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID *string   `gorm:"type:varchar(36);index" json:"session_id,omitempty"`
	UserID    *uint     `json:"user_id,omitempty"`
	Type      string    `gorm:"type:varchar(50);not null" json:"type"`
	Title     string    `gorm:"type:varchar(100);not null" json:"title"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Audience  string    `gorm:"type:varchar(20);not null;default:'customer'" json:"audience"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
