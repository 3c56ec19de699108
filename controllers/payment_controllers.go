package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/qr-restaurant/middlewares"
	"github.com/yeremiapane/qr-restaurant/models"
	"github.com/yeremiapane/qr-restaurant/services"
	"github.com/yeremiapane/qr-restaurant/utils"
	"gorm.io/gorm"
)

type PaymentController struct {
	DB       *gorm.DB
	Payments *services.PaymentCoordinator
}

func NewPaymentController(db *gorm.DB, payments *services.PaymentCoordinator) *PaymentController {
	return &PaymentController{DB: db, Payments: payments}
}

// staff resolves the logged-in staff member for audit fields.
func (pc *PaymentController) staff(c *gin.Context) (*models.User, bool) {
	var user models.User
	if err := pc.DB.WithContext(c.Request.Context()).First(&user, middlewares.CurrentUserID(c)).Error; err != nil {
		utils.RespondAppError(c, utils.DBError(err, utils.CodeUnauthorized, "staff account not found"))
		return nil, false
	}
	return &user, true
}

// PaymentOptions -> GET /sessions/:session_id/payment-options
func (pc *PaymentController) PaymentOptions(c *gin.Context) {
	opts, err := pc.Payments.PaymentOptions(c.Request.Context(), middlewares.CurrentSession(c).ID)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment options", opts)
}

// ChoosePayment -> POST /sessions/:session_id/payments
func (pc *PaymentController) ChoosePayment(c *gin.Context) {
	var in services.ChoosePaymentInput
	if !bindJSON(c, &in) {
		return
	}
	in.SessionID = middlewares.CurrentSession(c).ID

	res, err := pc.Payments.ChoosePaymentPath(c.Request.Context(), in)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	message := "Payment completed"
	switch {
	case res.Path == services.PathCounter:
		message = "Please pay at the counter"
	case res.Payment != nil && res.Payment.Status == models.PaymentRecordPending:
		message = "Awaiting payment confirmation"
	}
	utils.RespondJSON(c, http.StatusOK, message, res)
}

const maxPaymentWait = 30 * time.Second

// RefreshPayment -> POST /sessions/:session_id/payments/:payment_id/refresh
// An optional ?wait=10s keeps polling the gateway until the payment settles.
func (pc *PaymentController) RefreshPayment(c *gin.Context) {
	paymentID, ok := uintParam(c, "payment_id")
	if !ok {
		return
	}
	sessionID := middlewares.CurrentSession(c).ID

	var (
		res *services.ChoosePaymentResult
		err error
	)
	if raw := c.Query("wait"); raw != "" {
		wait, perr := time.ParseDuration(raw)
		if perr != nil || wait <= 0 {
			utils.RespondAppError(c, utils.NewAppError(utils.CodeInvalidInput, "invalid wait").WithDetail("wait", raw))
			return
		}
		if wait > maxPaymentWait {
			wait = maxPaymentWait
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
		defer cancel()
		res, err = pc.Payments.AwaitPayment(ctx, sessionID, paymentID, 2*time.Second)
	} else {
		res, err = pc.Payments.RefreshPayment(c.Request.Context(), sessionID, paymentID)
	}
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment status", res)
}

// MidtransNotification -> POST /payments/midtrans/notification
func (pc *PaymentController) MidtransNotification(c *gin.Context) {
	var n services.GatewayNotification
	if !bindJSON(c, &n) {
		return
	}
	res, err := pc.Payments.HandleGatewayNotification(c.Request.Context(), services.MethodQRIS, n)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification processed", gin.H{
		"transaction_id": res.Payment.TransactionID,
		"status":         res.Payment.Status,
	})
}

// PaymentState -> GET /sessions/:session_id/payment-state
func (pc *PaymentController) PaymentState(c *gin.Context) {
	state, err := pc.Payments.PaymentState(c.Request.Context(), middlewares.CurrentSession(c).ID)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment state", gin.H{"state": state})
}

// CanClose -> GET /sessions/:session_id/can-close
func (pc *PaymentController) CanClose(c *gin.Context) {
	check, err := pc.Payments.CanClose(c.Request.Context(), middlewares.CurrentSession(c).ID)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Close check", check)
}

// CloseSession -> POST /sessions/:session_id/close (customer)
func (pc *PaymentController) CloseSession(c *gin.Context) {
	sess := middlewares.CurrentSession(c)
	res, err := pc.Payments.CloseSession(c.Request.Context(), sess.ID, "customer", "customer closed session")
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Session closed", res)
}

// StaffCloseSession -> POST /admin/sessions/:session_id/close
func (pc *PaymentController) StaffCloseSession(c *gin.Context) {
	user, ok := pc.staff(c)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 && !bindJSON(c, &body) {
		return
	}
	if body.Reason == "" {
		body.Reason = "closed by staff"
	}

	res, err := pc.Payments.CloseSession(c.Request.Context(), c.Param("session_id"), user.Name, body.Reason)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Session closed", res)
}

// CounterPayment -> POST /admin/sessions/:session_id/counter-payments
func (pc *PaymentController) CounterPayment(c *gin.Context) {
	user, ok := pc.staff(c)
	if !ok {
		return
	}
	var in services.CounterPaymentInput
	if !bindJSON(c, &in) {
		return
	}
	in.SessionID = c.Param("session_id")
	if in.ReceivedBy == "" {
		in.ReceivedBy = user.Name
	}
	in.ReceivedByUserID = &user.ID

	res, err := pc.Payments.ProcessCounterPayment(c.Request.Context(), in)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Counter payment recorded", res)
}

// PaymentHistory -> GET /admin/sessions/:session_id/payments
func (pc *PaymentController) PaymentHistory(c *gin.Context) {
	history, err := pc.Payments.PaymentHistory(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment history", history)
}

// CounterPending -> GET /admin/sessions/counter-pending
func (pc *PaymentController) CounterPending(c *gin.Context) {
	sessions, err := pc.Payments.CounterPendingSessions(c.Request.Context())
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Sessions awaiting counter payment", sessions)
}

// Metrics -> GET /admin/payments/metrics
func (pc *PaymentController) Metrics(c *gin.Context) {
	utils.RespondJSON(c, http.StatusOK, "Payment metrics", pc.Payments.Metrics())
}
