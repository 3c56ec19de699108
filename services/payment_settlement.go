package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/qr-restaurant/models"
	"github.com/yeremiapane/qr-restaurant/utils"
	"gorm.io/gorm"
)

// SettlePayment applies a gateway outcome to a pending online payment.
// Orders are marked paid only on success; a payment that is no longer
// pending is returned unchanged, so repeated outcomes are harmless.
func (p *PaymentCoordinator) SettlePayment(ctx context.Context, transactionID string, outcome ChargeResult) (*ChoosePaymentResult, error) {
	var payment models.Payment
	if err := p.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&payment).Error; err != nil {
		return nil, utils.DBError(err, utils.CodePaymentNotFound, "payment not found")
	}
	if payment.Status != models.PaymentRecordPending || outcome.Pending {
		return p.settledResult(ctx, &payment)
	}

	now := p.Clock()
	elapsed := now.Sub(payment.CreatedAt)
	if !outcome.Success {
		if err := p.finishPending(ctx, &payment, models.PaymentRecordFailed, outcome.Error); err != nil {
			return nil, err
		}
		p.monitor.Record(PaymentMethod(payment.Method), false, elapsed)
		p.log.WithFields(logrus.Fields{
			"session_id":     payment.SessionID,
			"transaction_id": payment.TransactionID,
			"reason":         outcome.Error,
		}).Warn("pending online payment failed")
		return p.settledResult(ctx, &payment)
	}

	var applied bool
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": models.PaymentRecordSuccess}
		if outcome.GatewayTransactionID != "" {
			updates["gateway_transaction_id"] = outcome.GatewayTransactionID
		}
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentRecordPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// settled by a concurrent notification
			return nil
		}
		applied = true
		if err := RecordChange(tx, EntityPayments, fmt.Sprint(payment.ID), models.ChangeUpdate); err != nil {
			return err
		}
		return p.applyOnlinePayment(tx, &payment, now)
	})
	if err != nil {
		if utils.IsCode(err, utils.CodePaymentConflict) {
			// the gateway already took the money; keep a trace for a refund
			if ferr := p.finishPending(ctx, &payment, models.PaymentRecordFailed, "charged but not applied: "+err.Error()); ferr != nil {
				p.log.WithField("transaction_id", payment.TransactionID).Errorf("failed to mark payment for refund: %v", ferr)
			}
			return nil, utils.WrapAppError(utils.CodePaymentConflict, "orders changed during payment; refund required", err).
				WithDetail("transaction_id", payment.TransactionID)
		}
		return nil, utils.DBError(err, "", "failed to record payment")
	}

	if err := p.db.WithContext(ctx).First(&payment, payment.ID).Error; err != nil {
		return nil, utils.DBError(err, "", "failed to reload payment")
	}
	if applied {
		p.monitor.Record(PaymentMethod(payment.Method), true, elapsed)
		var sess models.TableSession
		if err := p.db.WithContext(ctx).Where("id = ?", payment.SessionID).First(&sess).Error; err == nil {
			p.paymentCompleted(&sess, &payment)
		}
	}
	return p.settledResult(ctx, &payment)
}

// finishPending moves a pending payment to a final status, once.
func (p *PaymentCoordinator) finishPending(ctx context.Context, payment *models.Payment, status, reason string) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": status}
		if reason != "" {
			updates["failure_reason"] = reason
		}
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentRecordPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			payment.Status = status
			if reason != "" {
				payment.FailureReason = &reason
			}
			return RecordChange(tx, EntityPayments, fmt.Sprint(payment.ID), models.ChangeUpdate)
		}
		return tx.First(payment, payment.ID).Error
	})
}

func (p *PaymentCoordinator) settledResult(ctx context.Context, payment *models.Payment) (*ChoosePaymentResult, error) {
	out := &ChoosePaymentResult{Path: PathOnline, Payment: payment}
	if payment.Status == models.PaymentRecordSuccess {
		out.PaidOrderIDs = payment.OrderIDs.Data()
	}
	state, err := p.PaymentState(ctx, payment.SessionID)
	if err != nil {
		return nil, err
	}
	out.State = state
	return out, nil
}

// RefreshPayment asks the gateway about a pending payment of the session
// and settles it when the outcome is known.
func (p *PaymentCoordinator) RefreshPayment(ctx context.Context, sessionID string, paymentID uint) (*ChoosePaymentResult, error) {
	var payment models.Payment
	if err := p.db.WithContext(ctx).
		Where("id = ? AND session_id = ?", paymentID, sessionID).
		First(&payment).Error; err != nil {
		return nil, utils.DBError(err, utils.CodePaymentNotFound, "payment not found")
	}
	if payment.Status != models.PaymentRecordPending {
		return p.settledResult(ctx, &payment)
	}

	gw, ok := p.gateways.Get(PaymentMethod(payment.Method))
	checker, canCheck := gw.(StatusChecker)
	if !ok || !canCheck {
		return p.settledResult(ctx, &payment)
	}
	return p.SettlePayment(ctx, payment.TransactionID, checker.CheckStatus(ctx, payment.Reference))
}

// AwaitPayment polls the gateway every interval until the pending payment
// settles or ctx is done.
func (p *PaymentCoordinator) AwaitPayment(ctx context.Context, sessionID string, paymentID uint, interval time.Duration) (*ChoosePaymentResult, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var last *ChoosePaymentResult
	for {
		res, err := p.RefreshPayment(ctx, sessionID, paymentID)
		if err != nil {
			if last != nil && ctx.Err() != nil {
				return last, nil
			}
			return nil, err
		}
		if res.Payment.Status != models.PaymentRecordPending {
			return res, nil
		}
		last = res
		select {
		case <-ctx.Done():
			return last, nil
		case <-ticker.C:
		}
	}
}

// HandleGatewayNotification verifies a signed gateway push and settles the
// payment it names.
func (p *PaymentCoordinator) HandleGatewayNotification(ctx context.Context, method PaymentMethod, n GatewayNotification) (*ChoosePaymentResult, error) {
	if err := validateInput(n); err != nil {
		return nil, err
	}
	gw, ok := p.gateways.Get(method)
	verifier, canVerify := gw.(NotificationVerifier)
	if !ok || !canVerify {
		return nil, utils.NewAppError(utils.CodeInvalidInput, fmt.Sprintf("method %q does not send notifications", method))
	}

	outcome, err := verifier.VerifyNotification(n)
	if err != nil {
		p.log.WithField("order_id", n.OrderID).Warn("rejected gateway notification with a bad signature")
		return nil, utils.WrapAppError(utils.CodeUnauthorized, "invalid notification signature", err)
	}

	var payment models.Payment
	if err := p.db.WithContext(ctx).Where("transaction_id = ?", n.OrderID).First(&payment).Error; err != nil {
		return nil, utils.DBError(err, utils.CodePaymentNotFound, "payment not found")
	}
	gross, err := decimal.NewFromString(n.GrossAmount)
	if err != nil || !gross.Equal(decimal.NewFromFloat(payment.Amount)) {
		return nil, utils.NewAppError(utils.CodeInvalidInput, "notification amount does not match the payment").
			WithDetail("transaction_id", payment.TransactionID)
	}
	return p.SettlePayment(ctx, payment.TransactionID, outcome)
}
