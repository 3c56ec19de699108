package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/qr-restaurant/models"
	"github.com/yeremiapane/qr-restaurant/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PathOnline  = "online"
	PathCounter = "counter"
)

// Derived payment states of a session.
const (
	PaymentStateUnpaid         = "unpaid"
	PaymentStateOnlinePaid     = "online_paid"
	PaymentStateCounterPending = "counter_pending"
	PaymentStateCounterPaid    = "counter_paid"
	PaymentStateClosable       = "closable"
	PaymentStateClosed         = "closed"
)

type PaymentOption struct {
	Method  PaymentMethod `json:"method"`
	FeeRate float64       `json:"fee_rate"`
	Fee     float64       `json:"fee"`
}

// PaymentOptions is what the customer sees before choosing how to pay.
type PaymentOptions struct {
	SessionID      string          `json:"session_id"`
	UnpaidAmount   float64         `json:"unpaid_amount"`
	UnpaidOrderIDs []uint          `json:"unpaid_order_ids"`
	OnlineMethods  []PaymentOption `json:"online_methods"`

	// both paths are offered only while something is unpaid
	OnlineAvailable  bool `json:"online_available"`
	CounterAvailable bool `json:"counter_available"`
	CounterPending   bool `json:"counter_payment_pending"`
}

type ChoosePaymentInput struct {
	SessionID string        `json:"-" validate:"required"`
	Path      string        `json:"path" validate:"required,oneof=online counter"`
	Method    PaymentMethod `json:"method" validate:"required_if=Path online"`
	Tip       float64       `json:"tip" validate:"gte=0"`
}

type ChoosePaymentResult struct {
	Path         string          `json:"path"`
	Payment      *models.Payment `json:"payment,omitempty"`
	PaidOrderIDs []uint          `json:"paid_order_ids,omitempty"`
	Actions      []PaymentAction `json:"actions,omitempty"`
	State        string          `json:"state"`
}

type CounterPaymentInput struct {
	SessionID        string `json:"-" validate:"required"`
	OrderIDs         []uint `json:"order_ids" validate:"required,min=1"`
	ReceivedBy       string `json:"received_by" validate:"required,max=100"`
	ReceivedByUserID *uint  `json:"-"`
	Notes            string `json:"notes" validate:"max=1000"`
}

type CounterPaymentResult struct {
	CounterPayment models.CounterPayment `json:"counter_payment"`
	Payment        models.Payment        `json:"payment"`
	Amount         float64               `json:"amount"`
}

type CloseCheck struct {
	CanClose                bool    `json:"can_close"`
	UnpaidAmount            float64 `json:"unpaid_amount"`
	CounterPaymentCompleted bool    `json:"counter_payment_completed"`
	State                   string  `json:"state"`
}

type CloseResult struct {
	Session *models.TableSession `json:"session"`
	Receipt *models.Receipt      `json:"receipt,omitempty"`
}

// PaymentCoordinator decides how a session is paid and guards its closure.
type PaymentCoordinator struct {
	db       *gorm.DB
	registry *SessionRegistry
	ledger   *OrderLedger
	receipts *ReceiptService
	gateways *GatewayRegistry
	notifier NotificationDispatcher
	monitor  *PaymentMonitor
	Clock    func() time.Time
	log      *logrus.Entry
}

func NewPaymentCoordinator(
	db *gorm.DB,
	registry *SessionRegistry,
	ledger *OrderLedger,
	receipts *ReceiptService,
	gateways *GatewayRegistry,
	notifier NotificationDispatcher,
	monitor *PaymentMonitor,
) *PaymentCoordinator {
	if gateways == nil {
		gateways = DefaultGateways()
	}
	return &PaymentCoordinator{
		db:       db,
		registry: registry,
		ledger:   ledger,
		receipts: receipts,
		gateways: gateways,
		notifier: notifier,
		monitor:  monitor,
		Clock:    func() time.Time { return time.Now().UTC() },
		log:      utils.Logger().WithField("component", "payments"),
	}
}

func (p *PaymentCoordinator) notify(ev NotificationEvent) {
	if p.notifier != nil {
		p.notifier.Dispatch(ev)
	}
}

func (p *PaymentCoordinator) activeSession(tx *gorm.DB, sessionID string) (*models.TableSession, error) {
	var sess models.TableSession
	if err := tx.Where("id = ?", sessionID).First(&sess).Error; err != nil {
		return nil, utils.DBError(err, utils.CodeSessionNotFound, "session not found")
	}
	if !sess.IsActive() {
		return nil, utils.NewAppError(utils.CodeSessionInactive, "session is no longer active").
			WithDetail("status", sess.Status)
	}
	return &sess, nil
}

// PaymentOptions lists the online methods with their fees on the current unpaid amount.
func (p *PaymentCoordinator) PaymentOptions(ctx context.Context, sessionID string) (*PaymentOptions, error) {
	sess, err := p.activeSession(p.db.WithContext(ctx), sessionID)
	if err != nil {
		return nil, err
	}
	unpaid, err := p.ledger.UnpaidOrders(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	amount := decimal.Zero
	ids := make([]uint, 0, len(unpaid))
	for _, o := range unpaid {
		amount = amount.Add(decimal.NewFromFloat(o.TotalAmount))
		ids = append(ids, o.ID)
	}
	total := amount.Round(2).InexactFloat64()

	methods := make([]PaymentOption, 0)
	for _, m := range p.gateways.Methods() {
		fee, _ := CalculateFee(m, total)
		methods = append(methods, PaymentOption{
			Method:  m,
			FeeRate: FeeRates[m].InexactFloat64(),
			Fee:     fee,
		})
	}

	return &PaymentOptions{
		SessionID:        sess.ID,
		UnpaidAmount:     total,
		UnpaidOrderIDs:   ids,
		OnlineMethods:    methods,
		OnlineAvailable:  len(ids) > 0 && len(methods) > 0,
		CounterAvailable: len(ids) > 0 && !sess.CounterPaymentPending,
		CounterPending:   sess.CounterPaymentPending,
	}, nil
}

// ChoosePaymentPath pays online now or flags the session for the counter.
func (p *PaymentCoordinator) ChoosePaymentPath(ctx context.Context, in ChoosePaymentInput) (*ChoosePaymentResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.Path == PathCounter {
		return p.requestCounterPayment(ctx, in.SessionID)
	}
	return p.payOnline(ctx, in)
}

func (p *PaymentCoordinator) requestCounterPayment(ctx context.Context, sessionID string) (*ChoosePaymentResult, error) {
	var sess *models.TableSession
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if sess, err = p.activeSession(tx, sessionID); err != nil {
			return err
		}
		if err := tx.Model(&models.TableSession{}).
			Where("id = ?", sess.ID).
			Updates(map[string]interface{}{
				"counter_payment_pending": true,
				"payment_mode":            models.PaymentModeCounter,
				"last_activity":           p.Clock(),
			}).Error; err != nil {
			return err
		}
		return RecordChange(tx, EntitySessions, sess.ID, models.ChangeUpdate)
	})
	if err != nil {
		return nil, utils.DBError(err, utils.CodeSessionNotFound, "failed to request counter payment")
	}

	amount, err := p.ledger.UnpaidAmount(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	p.notify(NotificationEvent{
		SessionID: sess.ID,
		Type:      models.NotificationCounterPaymentPending,
		Title:     "Counter Payment Pending",
		Message:   fmt.Sprintf("%s will pay %s at the counter", sess.CustomerName, utils.FormatMoney(amount)),
		Audience:  AudienceStaff,
	})
	p.log.WithField("session_id", sess.ID).Info("counter payment requested")

	return &ChoosePaymentResult{Path: PathCounter, State: PaymentStateCounterPending}, nil
}

func (p *PaymentCoordinator) payOnline(ctx context.Context, in ChoosePaymentInput) (*ChoosePaymentResult, error) {
	gw, ok := p.gateways.Get(in.Method)
	if !ok {
		return nil, utils.NewAppError(utils.CodeInvalidInput, fmt.Sprintf("unsupported payment method %q", in.Method))
	}

	sess, err := p.activeSession(p.db.WithContext(ctx), in.SessionID)
	if err != nil {
		return nil, err
	}
	var waiting models.Payment
	err = p.db.WithContext(ctx).
		Where("session_id = ? AND status = ?", sess.ID, models.PaymentRecordPending).
		First(&waiting).Error
	if err == nil {
		return nil, utils.NewAppError(utils.CodePaymentConflict, "a payment is still awaiting confirmation").
			WithDetail("payment_id", waiting.ID).
			WithDetail("transaction_id", waiting.TransactionID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.DBError(err, "", "failed to load payments")
	}

	unpaid, err := p.ledger.UnpaidOrders(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if len(unpaid) == 0 {
		return nil, utils.NewAppError(utils.CodeInvalidInput, "session has no unpaid orders")
	}

	amount := decimal.Zero
	ids := make([]uint, 0, len(unpaid))
	for _, o := range unpaid {
		amount = amount.Add(decimal.NewFromFloat(o.TotalAmount))
		ids = append(ids, o.ID)
	}
	gross := amount.Add(decimal.NewFromFloat(in.Tip)).Round(2).InexactFloat64()

	now := p.Clock()
	txnID := NewTransactionID(in.Method, now)

	started := time.Now()
	result := gw.Process(ctx, ChargeRequest{Amount: gross, Method: in.Method, Reference: txnID})
	if !result.Pending {
		p.monitor.Record(in.Method, result.Success, time.Since(started))
	}

	fee, net := CalculateFee(in.Method, gross)
	payment := models.Payment{
		SessionID:            sess.ID,
		OrderIDs:             datatypes.NewJSONType(ids),
		Method:               string(in.Method),
		Provider:             result.Provider,
		TransactionID:        txnID,
		GatewayTransactionID: result.GatewayTransactionID,
		Amount:               gross,
		TipAmount:            in.Tip,
		Fee:                  fee,
		NetAmount:            net,
		Currency:             "USD",
		Reference:            txnID,
		Metadata:             datatypes.JSONMap(result.Metadata),
		CreatedAt:            now,
	}
	if len(ids) == 1 {
		payment.OrderID = &ids[0]
	}

	switch {
	case result.Pending:
		payment.Status = models.PaymentRecordPending
		err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&payment).Error; err != nil {
				return err
			}
			return RecordChange(tx, EntityPayments, fmt.Sprint(payment.ID), models.ChangeInsert)
		})
		if err != nil {
			// the customer was already shown a charge; the reference is all that is left
			p.log.WithField("transaction_id", txnID).Errorf("failed to record pending payment: %v", err)
			return nil, utils.DBError(err, "", "failed to record payment")
		}
		p.log.WithFields(logrus.Fields{
			"session_id":     sess.ID,
			"transaction_id": txnID,
			"method":         in.Method,
			"amount":         gross,
		}).Info("online payment awaiting confirmation")

		state, err := p.PaymentState(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		return &ChoosePaymentResult{
			Path:    PathOnline,
			Payment: &payment,
			Actions: result.Actions,
			State:   state,
		}, nil

	case !result.Success:
		reason := result.Error
		payment.Status = models.PaymentRecordFailed
		payment.FailureReason = &reason
		p.saveFailedPayment(ctx, &payment)
		return nil, utils.NewAppError(utils.CodePaymentFailed, "payment was declined").
			WithDetail("reason", reason).
			WithDetail("transaction_id", txnID)
	}

	payment.Status = models.PaymentRecordSuccess
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		if err := RecordChange(tx, EntityPayments, fmt.Sprint(payment.ID), models.ChangeInsert); err != nil {
			return err
		}
		return p.applyOnlinePayment(tx, &payment, now)
	})
	if err != nil {
		// the gateway already took the money; keep a trace for a refund
		reason := "charged but not applied: " + err.Error()
		payment.ID = 0
		payment.Status = models.PaymentRecordFailed
		payment.FailureReason = &reason
		p.saveFailedPayment(ctx, &payment)

		if utils.IsCode(err, utils.CodePaymentConflict) {
			return nil, utils.WrapAppError(utils.CodePaymentConflict, "orders changed during payment; refund required", err).
				WithDetail("transaction_id", txnID)
		}
		return nil, utils.DBError(err, "", "failed to record payment")
	}

	p.paymentCompleted(sess, &payment)

	state, err := p.PaymentState(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	return &ChoosePaymentResult{
		Path:         PathOnline,
		Payment:      &payment,
		PaidOrderIDs: ids,
		State:        state,
	}, nil
}

// applyOnlinePayment marks every order the payment covers as paid, or fails
// with PAYMENT_CONFLICT when any of them was paid in the meantime.
func (p *PaymentCoordinator) applyOnlinePayment(tx *gorm.DB, payment *models.Payment, now time.Time) error {
	ids := payment.OrderIDs.Data()
	res := tx.Model(&models.Order{}).
		Where("id IN ? AND session_id = ? AND payment_status = ?", ids, payment.SessionID, models.PaymentStatusUnpaid).
		Updates(map[string]interface{}{
			"payment_status": models.PaymentStatusPaid,
			"payment_id":     payment.ID,
			"paid_at":        now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != int64(len(ids)) {
		return utils.NewAppError(utils.CodePaymentConflict, "orders were paid concurrently")
	}

	if err := tx.Model(&models.TableSession{}).
		Where("id = ?", payment.SessionID).
		Updates(map[string]interface{}{
			"payment_mode":  models.PaymentModePerOrder,
			"last_activity": now,
		}).Error; err != nil {
		return err
	}
	for _, id := range ids {
		if err := RecordChange(tx, EntityOrders, fmt.Sprint(id), models.ChangeUpdate); err != nil {
			return err
		}
	}
	return RecordChange(tx, EntitySessions, payment.SessionID, models.ChangeUpdate)
}

func (p *PaymentCoordinator) paymentCompleted(sess *models.TableSession, payment *models.Payment) {
	p.log.WithFields(logrus.Fields{
		"session_id":     sess.ID,
		"transaction_id": payment.TransactionID,
		"method":         payment.Method,
		"amount":         payment.Amount,
	}).Info("online payment completed")

	p.notify(NotificationEvent{
		SessionID:     sess.ID,
		Type:          models.NotificationPaymentCompleted,
		Title:         "Payment Successful",
		Message:       fmt.Sprintf("Payment of %s received via %s", utils.FormatMoney(payment.Amount), payment.Method),
		CustomerEmail: deref(sess.CustomerEmail),
	})
}

func (p *PaymentCoordinator) saveFailedPayment(ctx context.Context, payment *models.Payment) {
	if err := p.db.WithContext(ctx).Create(payment).Error; err != nil {
		p.log.WithField("transaction_id", payment.TransactionID).Errorf("failed to record failed payment: %v", err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ProcessCounterPayment records cash taken by staff for the listed orders.
// Either every order is marked paid or none is.
func (p *PaymentCoordinator) ProcessCounterPayment(ctx context.Context, in CounterPaymentInput) (*CounterPaymentResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	ids := uniqueIDs(in.OrderIDs)
	now := p.Clock()

	var result CounterPaymentResult
	var sess *models.TableSession
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if sess, err = p.activeSession(tx, in.SessionID); err != nil {
			return err
		}

		var orders []models.Order
		if err := tx.Where("id IN ? AND session_id = ?", ids, sess.ID).Find(&orders).Error; err != nil {
			return err
		}
		if len(orders) != len(ids) {
			return utils.NewAppError(utils.CodeOrderNotFound, "some orders do not belong to this session")
		}

		amount := decimal.Zero
		for _, o := range orders {
			if o.IsPaid() {
				return utils.NewAppError(utils.CodePaymentConflict, fmt.Sprintf("order %s is already paid", o.OrderNumber)).
					WithDetail("order_id", o.ID)
			}
			if o.Status == models.OrderStatusCancelled {
				return utils.NewAppError(utils.CodeInvalidInput, fmt.Sprintf("order %s is cancelled", o.OrderNumber))
			}
			amount = amount.Add(decimal.NewFromFloat(o.TotalAmount))
		}
		total := amount.Round(2).InexactFloat64()

		txnID := NewTransactionID(MethodCash, now)
		payment := models.Payment{
			SessionID:     sess.ID,
			OrderIDs:      datatypes.NewJSONType(ids),
			Method:        string(MethodCash),
			Provider:      "counter",
			TransactionID: txnID,
			Amount:        total,
			NetAmount:     total,
			Currency:      "USD",
			Status:        models.PaymentRecordSuccess,
			Reference:     txnID,
			Metadata:      datatypes.JSONMap{"received_by": in.ReceivedBy},
		}
		if len(ids) == 1 {
			payment.OrderID = &ids[0]
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Order{}).
			Where("id IN ? AND session_id = ? AND payment_status = ?", ids, sess.ID, models.PaymentStatusUnpaid).
			Updates(map[string]interface{}{
				"payment_status": models.PaymentStatusPaid,
				"payment_id":     payment.ID,
				"paid_at":        now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(ids)) {
			return utils.NewAppError(utils.CodePaymentConflict, "orders were paid concurrently")
		}

		counter := models.CounterPayment{
			SessionID:        sess.ID,
			PaymentID:        payment.ID,
			OrderIDs:         datatypes.NewJSONType(ids),
			Amount:           total,
			ReceivedBy:       in.ReceivedBy,
			ReceivedByUserID: in.ReceivedByUserID,
			Notes:            in.Notes,
			ReceivedAt:       now,
		}
		if err := tx.Create(&counter).Error; err != nil {
			return err
		}

		remaining, err := p.ledger.unpaidAmountTx(tx, sess.ID)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.TableSession{}).
			Where("id = ?", sess.ID).
			Updates(map[string]interface{}{
				"counter_payment_completed": remaining == 0,
				"counter_payment_pending":   remaining > 0 && sess.CounterPaymentPending,
				"payment_mode":              models.PaymentModeCounter,
				"last_activity":             now,
			}).Error; err != nil {
			return err
		}

		if err := RecordChange(tx, EntityPayments, fmt.Sprint(payment.ID), models.ChangeInsert); err != nil {
			return err
		}
		for _, id := range ids {
			if err := RecordChange(tx, EntityOrders, fmt.Sprint(id), models.ChangeUpdate); err != nil {
				return err
			}
		}
		if err := RecordChange(tx, EntitySessions, sess.ID, models.ChangeUpdate); err != nil {
			return err
		}

		result = CounterPaymentResult{CounterPayment: counter, Payment: payment, Amount: total}
		return nil
	})
	if err != nil {
		return nil, utils.DBError(err, utils.CodeSessionNotFound, "failed to process counter payment")
	}

	p.monitor.RecordCounter()
	p.log.WithFields(logrus.Fields{
		"session_id":  sess.ID,
		"received_by": in.ReceivedBy,
		"amount":      result.Amount,
		"orders":      len(ids),
	}).Info("counter payment processed")

	p.notify(NotificationEvent{
		SessionID:     sess.ID,
		Type:          models.NotificationPaymentCompleted,
		Title:         "Payment Received",
		Message:       fmt.Sprintf("Counter payment of %s received by %s", utils.FormatMoney(result.Amount), in.ReceivedBy),
		CustomerEmail: deref(sess.CustomerEmail),
	})
	return &result, nil
}

// derivePaymentState is closable whenever the close gate holds; the paid states
// only describe a session that still has something left to pay.
func derivePaymentState(sess *models.TableSession, unpaid float64, hasPaid bool) string {
	switch {
	case sess.Status != models.SessionStatusActive:
		return PaymentStateClosed
	case sess.CounterPaymentCompleted || unpaid == 0:
		return PaymentStateClosable
	case sess.CounterPaymentPending:
		return PaymentStateCounterPending
	case hasPaid && sess.PaymentMode == models.PaymentModeCounter:
		return PaymentStateCounterPaid
	case hasPaid && sess.PaymentMode == models.PaymentModePerOrder:
		return PaymentStateOnlinePaid
	default:
		return PaymentStateUnpaid
	}
}

func (p *PaymentCoordinator) closeCheckTx(tx *gorm.DB, sessionID string) (*models.TableSession, *CloseCheck, error) {
	var sess models.TableSession
	if err := tx.Where("id = ?", sessionID).First(&sess).Error; err != nil {
		return nil, nil, utils.DBError(err, utils.CodeSessionNotFound, "session not found")
	}
	unpaid, err := p.ledger.unpaidAmountTx(tx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	var paidCount int64
	if err := tx.Model(&models.Order{}).
		Where("session_id = ? AND payment_status = ?", sessionID, models.PaymentStatusPaid).
		Count(&paidCount).Error; err != nil {
		return nil, nil, err
	}

	return &sess, &CloseCheck{
		CanClose:                sess.CounterPaymentCompleted || unpaid == 0,
		UnpaidAmount:            unpaid,
		CounterPaymentCompleted: sess.CounterPaymentCompleted,
		State:                   derivePaymentState(&sess, unpaid, paidCount > 0),
	}, nil
}

// PaymentState reports where the session sits in the payment flow.
func (p *PaymentCoordinator) PaymentState(ctx context.Context, sessionID string) (string, error) {
	_, check, err := p.closeCheckTx(p.db.WithContext(ctx), sessionID)
	if err != nil {
		return "", utils.DBError(err, utils.CodeSessionNotFound, "failed to load payment state")
	}
	return check.State, nil
}

// CanClose holds when counter payment was recorded or nothing is left unpaid.
func (p *PaymentCoordinator) CanClose(ctx context.Context, sessionID string) (*CloseCheck, error) {
	_, check, err := p.closeCheckTx(p.db.WithContext(ctx), sessionID)
	if err != nil {
		return nil, utils.DBError(err, utils.CodeSessionNotFound, "failed to check session closure")
	}
	return check, nil
}

// CloseSession closes the session once CanClose holds, generating the
// receipt first while the paid orders are still attached to an open session.
// Closing an already closed session returns it unchanged.
func (p *PaymentCoordinator) CloseSession(ctx context.Context, sessionID, closedBy, reason string) (*CloseResult, error) {
	var out CloseResult
	var newlyClosed bool

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// touch the row first so a concurrent order placement waits on this close
		if err := tx.Model(&models.TableSession{}).
			Where("id = ?", sessionID).
			Update("updated_at", p.Clock()).Error; err != nil {
			return err
		}

		sess, check, err := p.closeCheckTx(tx, sessionID)
		if err != nil {
			return err
		}
		if !sess.IsActive() {
			out.Session = sess
			var receipt models.Receipt
			if err := tx.Where("session_id = ?", sess.ID).First(&receipt).Error; err == nil {
				out.Receipt = &receipt
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			return nil
		}
		if !check.CanClose {
			return utils.NewAppError(utils.CodeOrdersUnpaid, "session still has unpaid orders").
				WithDetail("outstanding_amount", check.UnpaidAmount).
				WithDetail("formatted_amount", utils.FormatMoney(check.UnpaidAmount))
		}

		receipt, err := p.receipts.generateTx(tx, sess.ID)
		if err != nil {
			return err
		}
		closed, err := p.registry.closeTx(tx, sess.ID, closedBy, reason)
		if err != nil {
			return err
		}
		out.Session = closed
		out.Receipt = receipt
		newlyClosed = true
		return nil
	})
	if err != nil {
		return nil, utils.DBError(err, utils.CodeSessionNotFound, "failed to close session")
	}

	if newlyClosed {
		p.receipts.Archive(out.Receipt)
		msg := "Thank you for dining with us"
		if out.Receipt != nil {
			msg = fmt.Sprintf("Thank you for dining with us. Receipt %s, total %s",
				out.Receipt.ReceiptNumber, utils.FormatMoney(out.Receipt.Total))
		}
		p.notify(NotificationEvent{
			SessionID:     out.Session.ID,
			Type:          models.NotificationSessionClosed,
			Title:         "Session Closed",
			Message:       msg,
			CustomerEmail: deref(out.Session.CustomerEmail),
		})
	}
	return &out, nil
}

type PaymentHistory struct {
	Payments        []models.Payment        `json:"payments"`
	CounterPayments []models.CounterPayment `json:"counter_payments"`
}

// PaymentHistory lists every payment attempt and counter entry of the session, oldest first.
func (p *PaymentCoordinator) PaymentHistory(ctx context.Context, sessionID string) (*PaymentHistory, error) {
	db := p.db.WithContext(ctx)
	if _, err := p.registry.getSession(db, sessionID); err != nil {
		return nil, err
	}

	var out PaymentHistory
	if err := db.Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&out.Payments).Error; err != nil {
		return nil, utils.DBError(err, "", "failed to load payments")
	}
	if err := db.Where("session_id = ?", sessionID).
		Order("received_at ASC, id ASC").
		Find(&out.CounterPayments).Error; err != nil {
		return nil, utils.DBError(err, "", "failed to load counter payments")
	}
	return &out, nil
}

// CounterPendingSession is a row of the cashier's queue.
type CounterPendingSession struct {
	SessionID    string    `json:"session_id"`
	TableID      uint      `json:"table_id"`
	TableLabel   string    `json:"table_label"`
	CustomerName string    `json:"customer_name"`
	UnpaidAmount float64   `json:"unpaid_amount"`
	UnpaidOrders []uint    `json:"unpaid_order_ids"`
	LastActivity time.Time `json:"last_activity"`
}

// CounterPendingSessions lists active sessions waiting to pay at the counter.
func (p *PaymentCoordinator) CounterPendingSessions(ctx context.Context) ([]CounterPendingSession, error) {
	var sessions []models.TableSession
	if err := p.db.WithContext(ctx).
		Preload("Table").
		Where("status = ? AND counter_payment_pending = ?", models.SessionStatusActive, true).
		Order("last_activity ASC").
		Find(&sessions).Error; err != nil {
		return nil, utils.DBError(err, "", "failed to load counter queue")
	}

	out := make([]CounterPendingSession, 0, len(sessions))
	for _, s := range sessions {
		unpaid, err := p.ledger.UnpaidOrders(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		amount := decimal.Zero
		ids := make([]uint, 0, len(unpaid))
		for _, o := range unpaid {
			amount = amount.Add(decimal.NewFromFloat(o.TotalAmount))
			ids = append(ids, o.ID)
		}
		out = append(out, CounterPendingSession{
			SessionID:    s.ID,
			TableID:      s.TableID,
			TableLabel:   s.Table.Label,
			CustomerName: s.CustomerName,
			UnpaidAmount: amount.Round(2).InexactFloat64(),
			UnpaidOrders: ids,
			LastActivity: s.LastActivity,
		})
	}
	return out, nil
}

// Metrics exposes gateway counters.
func (p *PaymentCoordinator) Metrics() PaymentMetrics {
	if p.monitor == nil {
		return PaymentMetrics{ByMethod: map[string]int64{}}
	}
	return p.monitor.Snapshot()
}
