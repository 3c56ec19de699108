package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yeremiapane/qr-restaurant/kds"
	"github.com/yeremiapane/qr-restaurant/middlewares"
	"github.com/yeremiapane/qr-restaurant/services"
	"github.com/yeremiapane/qr-restaurant/utils"
)

var upgrader = websocket.Upgrader{
	// origin sudah dibatasi oleh CORS dan token JWT
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// screenEntities are the change-feed entities each screen refetches on.
var screenEntities = map[string][]string{
	"kitchen": {services.EntityOrders, services.EntitySessions},
	"counter": {services.EntitySessions, services.EntityPayments, services.EntityOrders},
	"admin":   nil,
}

type KDSController struct {
	Hub      *kds.Hub
	Ledger   *services.OrderLedger
	Payments *services.PaymentCoordinator
}

func NewKDSController(hub *kds.Hub, ledger *services.OrderLedger, payments *services.PaymentCoordinator) *KDSController {
	return &KDSController{Hub: hub, Ledger: ledger, Payments: payments}
}

// Handler -> GET /ws/:role. Pushes a full snapshot on connect and again
// after every relevant change; changes during a refetch get one more snapshot.
func (kc *KDSController) Handler(c *gin.Context) {
	screen := c.Param("role")
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.Logger().Warnf("websocket upgrade failed: %v", err)
		return
	}

	client := kc.Hub.Register(ws, middlewares.CurrentRole(c))
	defer kc.Hub.Unregister(client)

	push := func() { kc.pushSnapshot(client, screen) }

	// subscribe first so no change lands between the snapshot and the subscription
	refetch := kds.NewRefetcher(push)
	unsubscribe := kc.Hub.Subscribe(func(kds.Change) { refetch.Trigger() }, screenEntities[screen]...)
	defer unsubscribe()
	push()

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
}

func (kc *KDSController) pushSnapshot(client *kds.Client, screen string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if screen == "kitchen" || screen == "admin" {
		tickets, err := kc.Ledger.KitchenQueue(ctx)
		if err != nil {
			utils.ErrLogger().Errorf("kitchen snapshot failed: %v", err)
		} else if err := client.Send(kds.Message{Event: kds.EventKitchenSnapshot, Data: tickets}); err != nil {
			return
		}
	}
	if screen == "counter" || screen == "admin" {
		pending, err := kc.Payments.CounterPendingSessions(ctx)
		if err != nil {
			utils.ErrLogger().Errorf("counter snapshot failed: %v", err)
			return
		}
		_ = client.Send(kds.Message{Event: kds.EventCounterSnapshot, Data: pending})
	}
}
