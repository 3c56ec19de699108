package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/qr-restaurant/models"
	"github.com/yeremiapane/qr-restaurant/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// orderTransitions lists the single forward step allowed from each status.
var orderTransitions = map[string]string{
	models.OrderStatusPending:   models.OrderStatusConfirmed,
	models.OrderStatusConfirmed: models.OrderStatusPreparing,
	models.OrderStatusPreparing: models.OrderStatusReady,
	models.OrderStatusReady:     models.OrderStatusServed,
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	if to == models.OrderStatusCancelled {
		return from != models.OrderStatusServed && from != models.OrderStatusCancelled
	}
	return orderTransitions[from] == to
}

type CustomizationInput struct {
	Name  string  `json:"name" validate:"required"`
	Price float64 `json:"price" validate:"gte=0"`
}

// LineItemInput is one cart line. Items referencing a menu item are priced
// from the menu; free-form items carry their own name and price.
type LineItemInput struct {
	MenuItemID     *uint                `json:"menu_item_id"`
	Name           string               `json:"name" validate:"required_without=MenuItemID,max=255"`
	UnitPrice      float64              `json:"unit_price" validate:"gte=0"`
	Quantity       int                  `json:"quantity" validate:"required,min=1,max=99"`
	Customizations []CustomizationInput `json:"customizations" validate:"dive"`
	Instructions   string               `json:"instructions" validate:"max=500"`
}

type PlaceOrderInput struct {
	SessionID           string          `json:"-" validate:"required"`
	Items               []LineItemInput `json:"items" validate:"required,min=1,dive"`
	SpecialInstructions string          `json:"special_instructions" validate:"max=1000"`
}

// LedgerSummary is the per-session aggregate shown to customers and staff.
type LedgerSummary struct {
	SessionID               string         `json:"session_id"`
	OrderCount              int            `json:"order_count"`
	TotalAmount             float64        `json:"total_amount"`
	PaidAmount              float64        `json:"paid_amount"`
	UnpaidAmount            float64        `json:"unpaid_amount"`
	UnpaidOrderIDs          []uint         `json:"unpaid_order_ids"`
	Orders                  []models.Order `json:"orders"`
	CounterPaymentPending   bool           `json:"counter_payment_pending"`
	CounterPaymentCompleted bool           `json:"counter_payment_completed"`
}

// KitchenTicket is an order as the kitchen display sees it.
type KitchenTicket struct {
	models.Order
	TableLabel   string `json:"table_label"`
	CustomerName string `json:"customer_name"`
}

// OrderLedger keeps orders attached to sessions and derives what is owed.
type OrderLedger struct {
	db       *gorm.DB
	notifier NotificationDispatcher
	Clock    func() time.Time
	log      *logrus.Entry
}

func NewOrderLedger(db *gorm.DB, notifier NotificationDispatcher) *OrderLedger {
	return &OrderLedger{
		db:       db,
		notifier: notifier,
		Clock:    func() time.Time { return time.Now().UTC() },
		log:      utils.Logger().WithField("component", "order_ledger"),
	}
}

func (l *OrderLedger) notify(ev NotificationEvent) {
	if l.notifier != nil {
		l.notifier.Dispatch(ev)
	}
}

// buildItems prices the cart against the restaurant's menu.
func (l *OrderLedger) buildItems(tx *gorm.DB, restaurantID uint, inputs []LineItemInput) ([]models.OrderItem, error) {
	ids := make([]uint, 0, len(inputs))
	for _, in := range inputs {
		if in.MenuItemID != nil {
			ids = append(ids, *in.MenuItemID)
		}
	}

	menu := make(map[uint]models.MenuItem, len(ids))
	if len(ids) > 0 {
		var found []models.MenuItem
		if err := tx.Where("id IN ? AND restaurant_id = ?", ids, restaurantID).Find(&found).Error; err != nil {
			return nil, err
		}
		for _, m := range found {
			menu[m.ID] = m
		}
	}

	items := make([]models.OrderItem, 0, len(inputs))
	for i, in := range inputs {
		item := models.OrderItem{
			Name:         strings.TrimSpace(in.Name),
			UnitPrice:    in.UnitPrice,
			Quantity:     in.Quantity,
			Instructions: in.Instructions,
		}
		chosen := make([]models.SelectedCustomization, 0, len(in.Customizations))

		if in.MenuItemID != nil {
			m, ok := menu[*in.MenuItemID]
			if !ok {
				return nil, utils.NewAppError(utils.CodeInvalidInput,
					fmt.Sprintf("item %d: menu item %d not found", i+1, *in.MenuItemID))
			}
			if !m.IsAvailable {
				return nil, utils.NewAppError(utils.CodeInvalidInput,
					fmt.Sprintf("item %d: %s is not available", i+1, m.Name))
			}
			item.MenuItemID = &m.ID
			item.Name = m.Name
			item.UnitPrice = m.Price
			for _, cz := range in.Customizations {
				price, ok := m.OptionPrice(cz.Name)
				if !ok {
					return nil, utils.NewAppError(utils.CodeInvalidInput,
						fmt.Sprintf("item %d: unknown customization %q for %s", i+1, cz.Name, m.Name))
				}
				chosen = append(chosen, models.SelectedCustomization{Name: cz.Name, Price: price})
			}
		} else {
			for _, cz := range in.Customizations {
				chosen = append(chosen, models.SelectedCustomization{Name: cz.Name, Price: cz.Price})
			}
		}

		item.Customizations = datatypes.NewJSONType(chosen)
		item.LineTotal = LineTotal(item.UnitPrice, chosen, item.Quantity).InexactFloat64()
		items = append(items, item)
	}
	return items, nil
}

// PlaceOrder prices the cart, stores the order as pending/unpaid and adds its
// total to the session in one transaction. The session total is incremented
// in SQL so concurrent placements never lose an update.
func (l *OrderLedger) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*models.Order, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var order models.Order
	var sess models.TableSession
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", in.SessionID).First(&sess).Error; err != nil {
			return utils.DBError(err, utils.CodeSessionNotFound, "session not found")
		}
		if !sess.IsActive() {
			return utils.NewAppError(utils.CodeSessionInactive, "session is no longer active").
				WithDetail("status", sess.Status)
		}

		items, err := l.buildItems(tx, sess.RestaurantID, in.Items)
		if err != nil {
			return err
		}
		totals := ComputeTotals(items)

		order = models.Order{
			SessionID:           sess.ID,
			OrderNumber:         NewOrderNumber(l.Clock()),
			Items:               items,
			SpecialInstructions: strings.TrimSpace(in.SpecialInstructions),
			Subtotal:            totals.Subtotal,
			TaxAmount:           totals.Tax,
			ServiceCharge:       totals.ServiceCharge,
			TotalAmount:         totals.Total,
			Status:              models.OrderStatusPending,
			PaymentStatus:       models.PaymentStatusUnpaid,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		res := tx.Model(&models.TableSession{}).
			Where("id = ? AND status = ?", sess.ID, models.SessionStatusActive).
			Updates(map[string]interface{}{
				"total_amount":              gorm.Expr("total_amount + ?", order.TotalAmount),
				"counter_payment_completed": false,
				"last_activity":             l.Clock(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.NewAppError(utils.CodeSessionInactive, "session closed while the order was being placed")
		}

		if err := RecordChange(tx, EntityOrders, strconv.FormatUint(uint64(order.ID), 10), models.ChangeInsert); err != nil {
			return err
		}
		return RecordChange(tx, EntitySessions, sess.ID, models.ChangeUpdate)
	})
	if err != nil {
		return nil, utils.DBError(err, "", "failed to place order")
	}

	l.log.WithFields(logrus.Fields{
		"session_id":   sess.ID,
		"order_number": order.OrderNumber,
		"total":        order.TotalAmount,
	}).Info("order placed")

	l.notify(NotificationEvent{
		SessionID: sess.ID,
		Type:      models.NotificationOrderPlaced,
		Title:     "Order Placed",
		Message:   fmt.Sprintf("Order %s received: %s", order.OrderNumber, utils.FormatMoney(order.TotalAmount)),
	})
	l.notify(NotificationEvent{
		SessionID: sess.ID,
		Type:      models.NotificationOrderPlaced,
		Title:     "New Order",
		Message:   fmt.Sprintf("Order %s from %s", order.OrderNumber, sess.CustomerName),
		Audience:  AudienceStaff,
	})
	return &order, nil
}

// Orders returns the session's orders with items, oldest first.
func (l *OrderLedger) Orders(ctx context.Context, sessionID string) ([]models.Order, error) {
	var orders []models.Order
	if err := l.db.WithContext(ctx).
		Preload("Items").
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&orders).Error; err != nil {
		return nil, utils.DBError(err, "", "failed to load orders")
	}
	return orders, nil
}

func unpaidScope(tx *gorm.DB, sessionID string) *gorm.DB {
	return tx.Where("session_id = ? AND payment_status = ? AND status <> ?",
		sessionID, models.PaymentStatusUnpaid, models.OrderStatusCancelled)
}

// UnpaidOrders reads the unpaid, non-cancelled orders from the database every time.
func (l *OrderLedger) UnpaidOrders(ctx context.Context, sessionID string) ([]models.Order, error) {
	return l.unpaidOrdersTx(l.db.WithContext(ctx), sessionID)
}

func (l *OrderLedger) unpaidOrdersTx(tx *gorm.DB, sessionID string) ([]models.Order, error) {
	var orders []models.Order
	if err := unpaidScope(tx.Model(&models.Order{}), sessionID).
		Order("id ASC").
		Find(&orders).Error; err != nil {
		return nil, utils.DBError(err, "", "failed to load unpaid orders")
	}
	return orders, nil
}

// UnpaidAmount sums unpaid order totals. Never cached.
func (l *OrderLedger) UnpaidAmount(ctx context.Context, sessionID string) (float64, error) {
	return l.unpaidAmountTx(l.db.WithContext(ctx), sessionID)
}

func (l *OrderLedger) unpaidAmountTx(tx *gorm.DB, sessionID string) (float64, error) {
	orders, err := l.unpaidOrdersTx(tx, sessionID)
	if err != nil {
		return 0, err
	}
	sum := decimal.Zero
	for _, o := range orders {
		sum = sum.Add(decimal.NewFromFloat(o.TotalAmount))
	}
	return sum.Round(2).InexactFloat64(), nil
}

// Summary aggregates the session's orders into paid and unpaid amounts.
func (l *OrderLedger) Summary(ctx context.Context, sessionID string) (*LedgerSummary, error) {
	var sess models.TableSession
	if err := l.db.WithContext(ctx).Where("id = ?", sessionID).First(&sess).Error; err != nil {
		return nil, utils.DBError(err, utils.CodeSessionNotFound, "session not found")
	}

	orders, err := l.Orders(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	paid, unpaid := decimal.Zero, decimal.Zero
	unpaidIDs := make([]uint, 0)
	for _, o := range orders {
		switch {
		case o.IsPaid():
			paid = paid.Add(decimal.NewFromFloat(o.TotalAmount))
		case o.Status != models.OrderStatusCancelled:
			unpaid = unpaid.Add(decimal.NewFromFloat(o.TotalAmount))
			unpaidIDs = append(unpaidIDs, o.ID)
		}
	}

	return &LedgerSummary{
		SessionID:               sess.ID,
		OrderCount:              len(orders),
		TotalAmount:             sess.TotalAmount,
		PaidAmount:              paid.Round(2).InexactFloat64(),
		UnpaidAmount:            unpaid.Round(2).InexactFloat64(),
		UnpaidOrderIDs:          unpaidIDs,
		Orders:                  orders,
		CounterPaymentPending:   sess.CounterPaymentPending,
		CounterPaymentCompleted: sess.CounterPaymentCompleted,
	}, nil
}

// AdvanceOrderStatus moves an order one step along the kitchen flow, or
// cancels it. Anything else is rejected with INVALID_TRANSITION.
func (l *OrderLedger) AdvanceOrderStatus(ctx context.Context, orderID uint, next string) (*models.Order, error) {
	var order models.Order
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			return utils.DBError(err, utils.CodeOrderNotFound, "order not found")
		}

		if !CanTransition(order.Status, next) {
			return utils.NewAppError(utils.CodeInvalidTransition,
				fmt.Sprintf("cannot move order from %s to %s", order.Status, next)).
				WithDetail("from", order.Status).
				WithDetail("to", next)
		}
		if next == models.OrderStatusCancelled && order.IsPaid() {
			return utils.NewAppError(utils.CodeInvalidTransition, "paid orders cannot be cancelled")
		}

		// guarded on the old status so two racing updates cannot both apply
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, order.Status).
			Update("status", next)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.NewAppError(utils.CodeInvalidTransition, "order status changed concurrently")
		}

		order.Status = next
		return RecordChange(tx, EntityOrders, strconv.FormatUint(uint64(order.ID), 10), models.ChangeUpdate)
	})
	if err != nil {
		return nil, utils.DBError(err, utils.CodeOrderNotFound, "failed to update order status")
	}

	l.notify(NotificationEvent{
		SessionID: order.SessionID,
		Type:      models.NotificationOrderStatus,
		Title:     "Order Update",
		Message:   fmt.Sprintf("Order %s is now %s", order.OrderNumber, order.Status),
	})
	return &order, nil
}

// KitchenQueue lists orders of active sessions that still need kitchen work, oldest first.
func (l *OrderLedger) KitchenQueue(ctx context.Context) ([]KitchenTicket, error) {
	db := l.db.WithContext(ctx)

	var sessions []models.TableSession
	if err := db.Preload("Table").
		Where("status = ?", models.SessionStatusActive).
		Find(&sessions).Error; err != nil {
		return nil, utils.DBError(err, "", "failed to load active sessions")
	}
	if len(sessions) == 0 {
		return []KitchenTicket{}, nil
	}

	byID := make(map[string]models.TableSession, len(sessions))
	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		byID[s.ID] = s
		ids = append(ids, s.ID)
	}

	var orders []models.Order
	if err := db.Preload("Items").
		Where("session_id IN ? AND status IN ?", ids, []string{
			models.OrderStatusPending, models.OrderStatusConfirmed,
			models.OrderStatusPreparing, models.OrderStatusReady,
		}).
		Order("created_at ASC, id ASC").
		Find(&orders).Error; err != nil {
		return nil, utils.DBError(err, "", "failed to load kitchen queue")
	}

	tickets := make([]KitchenTicket, 0, len(orders))
	for _, o := range orders {
		sess := byID[o.SessionID]
		tickets = append(tickets, KitchenTicket{
			Order:        o,
			TableLabel:   sess.Table.Label,
			CustomerName: sess.CustomerName,
		})
	}
	return tickets, nil
}
