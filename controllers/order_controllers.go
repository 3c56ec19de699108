package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/qr-restaurant/middlewares"
	"github.com/yeremiapane/qr-restaurant/services"
	"github.com/yeremiapane/qr-restaurant/utils"
)

type OrderController struct {
	Ledger *services.OrderLedger
}

func NewOrderController(ledger *services.OrderLedger) *OrderController {
	return &OrderController{Ledger: ledger}
}

// PlaceOrder -> POST /sessions/:session_id/orders
func (oc *OrderController) PlaceOrder(c *gin.Context) {
	var in services.PlaceOrderInput
	if !bindJSON(c, &in) {
		return
	}
	in.SessionID = middlewares.CurrentSession(c).ID

	order, err := oc.Ledger.PlaceOrder(c.Request.Context(), in)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order placed", order)
}

// ListOrders -> GET /sessions/:session_id/orders
func (oc *OrderController) ListOrders(c *gin.Context) {
	orders, err := oc.Ledger.Orders(c.Request.Context(), middlewares.CurrentSession(c).ID)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of orders", orders)
}

// KitchenOrders -> GET /admin/kitchen/orders
func (oc *OrderController) KitchenOrders(c *gin.Context) {
	tickets, err := oc.Ledger.KitchenQueue(c.Request.Context())
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Kitchen queue", tickets)
}

// UpdateOrderStatus -> PATCH /admin/orders/:order_id/status
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	orderID, ok := uintParam(c, "order_id")
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}

	order, err := oc.Ledger.AdvanceOrderStatus(c.Request.Context(), orderID, body.Status)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order status updated", order)
}
