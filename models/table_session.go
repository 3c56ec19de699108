package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
	SessionStatusExpired   = "expired"
)

const (
	PaymentModePerOrder  = "per_order"
	PaymentModeCounter   = "counter"
	PaymentModeFinalBill = "final_bill"
)

// TableSession is one dining occupancy of a table.
//
// ActiveTableID mirrors TableID while the session is active and is NULL
// otherwise. Its unique index is what guarantees a single active session per
// table: NULLs never collide, so finished sessions pile up freely.
type TableSession struct {
	ID                      string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	TableID                 uint       `gorm:"not null;index" json:"table_id"`
	Table                   Table      `gorm:"foreignKey:TableID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	RestaurantID            uint       `gorm:"not null;index" json:"restaurant_id"`
	ActiveTableID           *uint      `gorm:"uniqueIndex:idx_one_active_session_per_table" json:"-"`
	SessionToken            string     `gorm:"type:varchar(64);not null" json:"-"`
	CustomerName            string     `gorm:"type:varchar(100);not null" json:"customer_name"`
	CustomerPhone           *string    `gorm:"type:varchar(30)" json:"customer_phone,omitempty"`
	CustomerEmail           *string    `gorm:"type:varchar(255)" json:"customer_email,omitempty"`
	Status                  string     `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	TotalAmount             float64    `gorm:"type:decimal(12,2);not null;default:0" json:"total_amount"`
	PaymentMode             string     `gorm:"type:varchar(20);not null;default:'final_bill'" json:"payment_mode"`
	CounterPaymentPending   bool       `gorm:"not null;default:false" json:"counter_payment_pending"`
	CounterPaymentCompleted bool       `gorm:"not null;default:false" json:"counter_payment_completed"`
	ClosedBy                *string    `gorm:"type:varchar(100)" json:"closed_by,omitempty"`
	CloseReason             *string    `gorm:"type:varchar(255)" json:"close_reason,omitempty"`
	ClosedAt                *time.Time `json:"closed_at,omitempty"`
	LastActivity            time.Time  `gorm:"not null" json:"last_activity"`
	ExpiresAt               time.Time  `gorm:"not null;index" json:"expires_at"`
	CreatedAt               time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt               time.Time  `gorm:"not null" json:"updated_at"`
	Orders                  []Order    `gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"orders,omitempty"`
}

func (s *TableSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

func (s *TableSession) IsActive() bool {
	return s.Status == SessionStatusActive
}
