package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/qr-restaurant/models"
	"github.com/yeremiapane/qr-restaurant/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReceiptArchiver stores a copy of a generated receipt outside the database.
type ReceiptArchiver interface {
	Archive(ctx context.Context, receipt *models.Receipt) error
}

// ReceiptService snapshots a session's paid orders into a write-once receipt.
type ReceiptService struct {
	db       *gorm.DB
	archiver ReceiptArchiver
	Clock    func() time.Time
	log      *logrus.Entry
}

func NewReceiptService(db *gorm.DB, archiver ReceiptArchiver) *ReceiptService {
	return &ReceiptService{
		db:       db,
		archiver: archiver,
		Clock:    func() time.Time { return time.Now().UTC() },
		log:      utils.Logger().WithField("component", "receipts"),
	}
}

// ReceiptNumber formats "RCP-YYYYMMDD-" plus the first 8 characters of the session id.
func ReceiptNumber(sessionID string, at time.Time) string {
	short := strings.ReplaceAll(sessionID, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("RCP-%s-%s", at.Format("20060102"), strings.ToUpper(short))
}

// generateTx returns the session's receipt, creating it on first call. It
// returns nil when the session has no paid orders.
func (s *ReceiptService) generateTx(tx *gorm.DB, sessionID string) (*models.Receipt, error) {
	var existing models.Receipt
	err := tx.Where("session_id = ?", sessionID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var sess models.TableSession
	if err := tx.Preload("Table.Restaurant").Where("id = ?", sessionID).First(&sess).Error; err != nil {
		return nil, err
	}

	var orders []models.Order
	if err := tx.Preload("Items").
		Where("session_id = ? AND payment_status = ?", sessionID, models.PaymentStatusPaid).
		Order("id ASC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}

	var payments []models.Payment
	if err := tx.Where("session_id = ? AND status = ?", sessionID, models.PaymentRecordSuccess).
		Order("id ASC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	var counter []models.CounterPayment
	if err := tx.Where("session_id = ?", sessionID).Find(&counter).Error; err != nil {
		return nil, err
	}
	receivedBy := make(map[uint]string, len(counter))
	for _, cp := range counter {
		receivedBy[cp.PaymentID] = cp.ReceivedBy
	}

	subtotal, tax, service, total, tips := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	lines := make([]models.ReceiptLine, 0)
	summary := make([]models.ReceiptOrder, 0, len(orders))
	for _, o := range orders {
		subtotal = subtotal.Add(decimal.NewFromFloat(o.Subtotal))
		tax = tax.Add(decimal.NewFromFloat(o.TaxAmount))
		service = service.Add(decimal.NewFromFloat(o.ServiceCharge))
		total = total.Add(decimal.NewFromFloat(o.TotalAmount))

		count := 0
		for _, it := range o.Items {
			names := make([]string, 0, len(it.Customizations.Data()))
			for _, cz := range it.Customizations.Data() {
				names = append(names, cz.Name)
			}
			lines = append(lines, models.ReceiptLine{
				OrderNumber:    o.OrderNumber,
				Name:           it.Name,
				Quantity:       it.Quantity,
				UnitPrice:      it.UnitPrice,
				Customizations: names,
				LineTotal:      it.LineTotal,
			})
			count += it.Quantity
		}
		summary = append(summary, models.ReceiptOrder{
			OrderNumber: o.OrderNumber,
			ItemCount:   count,
			Amount:      o.TotalAmount,
		})
	}

	paid := make([]models.ReceiptPayment, 0, len(payments))
	for _, p := range payments {
		tips = tips.Add(decimal.NewFromFloat(p.TipAmount))
		paid = append(paid, models.ReceiptPayment{
			Method:        p.Method,
			Provider:      p.Provider,
			TransactionID: p.TransactionID,
			Amount:        p.Amount,
			Fee:           p.Fee,
			ReceivedBy:    receivedBy[p.ID],
		})
	}

	now := s.Clock()
	receipt := models.Receipt{
		SessionID:      sess.ID,
		ReceiptNumber:  ReceiptNumber(sess.ID, now),
		RestaurantName: sess.Table.Restaurant.Name,
		TableLabel:     sess.Table.Label,
		CustomerName:   sess.CustomerName,
		CustomerPhone:  sess.CustomerPhone,
		CustomerEmail:  sess.CustomerEmail,
		Items:          datatypes.NewJSONType(lines),
		Breakdown: datatypes.NewJSONType(models.ReceiptBreakdown{
			Subtotal:      subtotal.Round(2).InexactFloat64(),
			Tax:           tax.Round(2).InexactFloat64(),
			ServiceCharge: service.Round(2).InexactFloat64(),
			Total:         total.Round(2).InexactFloat64(),
			Tips:          tips.Round(2).InexactFloat64(),
			Orders:        summary,
			Payments:      paid,
		}),
		Total:       total.Round(2).InexactFloat64(),
		GeneratedAt: now,
	}
	if err := tx.Create(&receipt).Error; err != nil {
		return nil, err
	}
	if err := RecordChange(tx, EntityReceipts, fmt.Sprint(receipt.ID), models.ChangeInsert); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Generate creates (or returns) the session's receipt outside of a close.
func (s *ReceiptService) Generate(ctx context.Context, sessionID string) (*models.Receipt, error) {
	var receipt *models.Receipt
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		receipt, err = s.generateTx(tx, sessionID)
		return err
	})
	if err != nil {
		return nil, utils.DBError(err, utils.CodeSessionNotFound, "failed to generate receipt")
	}
	if receipt == nil {
		return nil, utils.NewAppError(utils.CodeReceiptNotFound, "session has no paid orders")
	}
	return receipt, nil
}

func (s *ReceiptService) GetReceipt(ctx context.Context, id uint) (*models.Receipt, error) {
	var receipt models.Receipt
	if err := s.db.WithContext(ctx).First(&receipt, id).Error; err != nil {
		return nil, utils.DBError(err, utils.CodeReceiptNotFound, "receipt not found")
	}
	return &receipt, nil
}

func (s *ReceiptService) GetReceiptForSession(ctx context.Context, sessionID string) (*models.Receipt, error) {
	var receipt models.Receipt
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&receipt).Error; err != nil {
		return nil, utils.DBError(err, utils.CodeReceiptNotFound, "receipt not found")
	}
	return &receipt, nil
}

// Archive hands the receipt to the archiver in the background. Failures are logged only.
func (s *ReceiptService) Archive(receipt *models.Receipt) {
	if s.archiver == nil || receipt == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.archiver.Archive(ctx, receipt); err != nil {
			s.log.WithField("receipt_number", receipt.ReceiptNumber).Errorf("failed to archive receipt: %v", err)
		}
	}()
}

// receiptDocument is the archived JSON form of a receipt.
func receiptDocument(r *models.Receipt) ([]byte, error) {
	return json.MarshalIndent(struct {
		ReceiptNumber  string                  `json:"receipt_number"`
		SessionID      string                  `json:"session_id"`
		RestaurantName string                  `json:"restaurant_name"`
		TableLabel     string                  `json:"table_label"`
		CustomerName   string                  `json:"customer_name"`
		Items          []models.ReceiptLine    `json:"items"`
		Breakdown      models.ReceiptBreakdown `json:"breakdown"`
		Total          string                  `json:"total"`
		GeneratedAt    time.Time               `json:"generated_at"`
	}{
		ReceiptNumber:  r.ReceiptNumber,
		SessionID:      r.SessionID,
		RestaurantName: r.RestaurantName,
		TableLabel:     r.TableLabel,
		CustomerName:   r.CustomerName,
		Items:          r.Items.Data(),
		Breakdown:      r.Breakdown.Data(),
		Total:          utils.FormatMoney(r.Total),
		GeneratedAt:    r.GeneratedAt,
	}, "", "  ")
}
