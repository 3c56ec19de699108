package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/qr-restaurant/middlewares"
	"github.com/yeremiapane/qr-restaurant/services"
	"github.com/yeremiapane/qr-restaurant/utils"
)

type ReceiptController struct {
	Receipts *services.ReceiptService
}

func NewReceiptController(receipts *services.ReceiptService) *ReceiptController {
	return &ReceiptController{Receipts: receipts}
}

// GetReceipt -> GET /admin/receipts/:receipt_id
func (rc *ReceiptController) GetReceipt(c *gin.Context) {
	receiptID, ok := uintParam(c, "receipt_id")
	if !ok {
		return
	}
	receipt, err := rc.Receipts.GetReceipt(c.Request.Context(), receiptID)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Receipt", receipt)
}

// SessionReceipt -> GET /sessions/:session_id/receipt
func (rc *ReceiptController) SessionReceipt(c *gin.Context) {
	receipt, err := rc.Receipts.GetReceiptForSession(c.Request.Context(), middlewares.CurrentSession(c).ID)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Receipt", receipt)
}
