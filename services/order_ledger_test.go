package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/qr-restaurant/models"
	"github.com/yeremiapane/qr-restaurant/utils"
)

func openSession(t *testing.T, env *testEnv, table int, name string) *models.TableSession {
	t.Helper()
	sess, err := env.registry.CreateSession(context.Background(), CreateSessionInput{TableID: env.tableID(table), CustomerName: name})
	require.NoError(t, err)
	return sess
}

func TestPlaceOrderTotals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sess := openSession(t, env, 1, "Asha")

	order, err := env.ledger.PlaceOrder(ctx, PlaceOrderInput{
		SessionID: sess.ID,
		Items:     []LineItemInput{customLine("Pasta", 10, 2)},
	})
	require.NoError(t, err)

	assert.Equal(t, 20.0, order.Subtotal)
	assert.Equal(t, 2.0, order.TaxAmount)
	assert.Equal(t, 1.0, order.ServiceCharge)
	assert.Equal(t, 23.0, order.TotalAmount)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusUnpaid, order.PaymentStatus)
	assert.Regexp(t, `^ORD\d{9}$`, order.OrderNumber)

	reloaded, err := env.registry.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 23.0, reloaded.TotalAmount)

	assert.Len(t, env.notes.ofType(models.NotificationOrderPlaced), 2)
}

func TestPlaceOrderPricesFromMenu(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sess := openSession(t, env, 1, "Asha")

	pizza := env.menuID("Margherita Pizza")
	order, err := env.ledger.PlaceOrder(ctx, PlaceOrderInput{
		SessionID: sess.ID,
		Items: []LineItemInput{{
			MenuItemID: &pizza,
			Name:       "ignored",
			UnitPrice:  0.01,
			Quantity:   2,
			// client prices are ignored for menu items
			Customizations: []CustomizationInput{{Name: "Extra Cheese", Price: 99}},
		}},
	})
	require.NoError(t, err)

	require.Len(t, order.Items, 1)
	item := order.Items[0]
	assert.Equal(t, "Margherita Pizza", item.Name)
	assert.Equal(t, 12.0, item.UnitPrice)
	assert.Equal(t, 27.0, item.LineTotal)
	assert.Equal(t, []models.SelectedCustomization{{Name: "Extra Cheese", Price: 1.5}}, item.Customizations.Data())
	assert.Equal(t, 27.0, order.Subtotal)
	assert.Equal(t, 31.05, order.TotalAmount)
}

func TestPlaceOrderRejectsBadItems(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sess := openSession(t, env, 1, "Asha")

	_, err := env.ledger.PlaceOrder(ctx, PlaceOrderInput{SessionID: sess.ID})
	assert.Equal(t, utils.CodeInvalidInput, utils.ErrorCode(err))

	_, err = env.ledger.PlaceOrder(ctx, PlaceOrderInput{SessionID: sess.ID, Items: []LineItemInput{customLine("Soup", 5, 0)}})
	assert.Equal(t, utils.CodeInvalidInput, utils.ErrorCode(err))

	pizza := env.menuID("Margherita Pizza")
	_, err = env.ledger.PlaceOrder(ctx, PlaceOrderInput{SessionID: sess.ID, Items: []LineItemInput{{
		MenuItemID:     &pizza,
		Quantity:       1,
		Customizations: []CustomizationInput{{Name: "Pineapple"}},
	}}})
	assert.Equal(t, utils.CodeInvalidInput, utils.ErrorCode(err))

	lemonade := env.menuID("Lemonade")
	require.NoError(t, env.db.Model(&models.MenuItem{}).Where("id = ?", lemonade).Update("is_available", false).Error)
	_, err = env.ledger.PlaceOrder(ctx, PlaceOrderInput{SessionID: sess.ID, Items: []LineItemInput{{MenuItemID: &lemonade, Quantity: 1}}})
	assert.Equal(t, utils.CodeInvalidInput, utils.ErrorCode(err))

	// nothing was written
	orders, err := env.ledger.Orders(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPlaceOrderOnClosedSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sess := openSession(t, env, 1, "Asha")

	_, err := env.registry.CloseSession(ctx, sess.ID, "staff", "")
	require.NoError(t, err)

	_, err = env.ledger.PlaceOrder(ctx, PlaceOrderInput{SessionID: sess.ID, Items: []LineItemInput{customLine("Soup", 5, 1)}})
	assert.Equal(t, utils.CodeSessionInactive, utils.ErrorCode(err))

	_, err = env.ledger.PlaceOrder(ctx, PlaceOrderInput{SessionID: "missing", Items: []LineItemInput{customLine("Soup", 5, 1)}})
	assert.Equal(t, utils.CodeSessionNotFound, utils.ErrorCode(err))
}

func TestSessionTotalMatchesOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sess := openSession(t, env, 2, "Asha")

	prices := []float64{3.33, 7.1, 12.99, 0.5, 19.95, 4.2, 8.8, 1.01}
	var wg sync.WaitGroup
	for _, p := range prices {
		wg.Add(1)
		go func(price float64) {
			defer wg.Done()
			_, err := env.ledger.PlaceOrder(ctx, PlaceOrderInput{
				SessionID: sess.ID,
				Items:     []LineItemInput{customLine("Dish", price, 3)},
			})
			assert.NoError(t, err)
		}(p)
	}
	wg.Wait()

	orders, err := env.ledger.Orders(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, orders, len(prices))

	totals := make([]float64, 0, len(orders))
	for _, o := range orders {
		totals = append(totals, o.TotalAmount)
	}

	reloaded, err := env.registry.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, SumAmounts(totals...), SumAmounts(reloaded.TotalAmount))
}

func TestUnpaidAmountExcludesPaidAndCancelled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sess := openSession(t, env, 1, "Asha")

	var ids []uint
	for _, price := range []float64{10, 20, 40} {
		o, err := env.ledger.PlaceOrder(ctx, PlaceOrderInput{SessionID: sess.ID, Items: []LineItemInput{customLine("Dish", price, 1)}})
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}

	amount, err := env.ledger.UnpaidAmount(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 80.5, amount)

	_, err = env.ledger.AdvanceOrderStatus(ctx, ids[0], models.OrderStatusCancelled)
	require.NoError(t, err)
	require.NoError(t, env.db.Model(&models.Order{}).Where("id = ?", ids[1]).Update("payment_status", models.PaymentStatusPaid).Error)

	amount, err = env.ledger.UnpaidAmount(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 46.0, amount)

	unpaid, err := env.ledger.UnpaidOrders(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, unpaid, 1)
	assert.Equal(t, ids[2], unpaid[0].ID)

	summary, err := env.ledger.Summary(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.OrderCount)
	assert.Equal(t, 23.0, summary.PaidAmount)
	assert.Equal(t, 46.0, summary.UnpaidAmount)
	assert.Equal(t, []uint{ids[2]}, summary.UnpaidOrderIDs)
}

func TestAdvanceOrderStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sess := openSession(t, env, 1, "Asha")

	order, err := env.ledger.PlaceOrder(ctx, PlaceOrderInput{SessionID: sess.ID, Items: []LineItemInput{customLine("Soup", 5, 1)}})
	require.NoError(t, err)

	for _, next := range []string{
		models.OrderStatusConfirmed,
		models.OrderStatusPreparing,
		models.OrderStatusReady,
	} {
		updated, err := env.ledger.AdvanceOrderStatus(ctx, order.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, updated.Status)
	}

	// backwards is refused and changes nothing
	_, err = env.ledger.AdvanceOrderStatus(ctx, order.ID, models.OrderStatusPending)
	assert.Equal(t, utils.CodeInvalidTransition, utils.ErrorCode(err))

	_, err = env.ledger.AdvanceOrderStatus(ctx, order.ID, models.OrderStatusServed)
	require.NoError(t, err)

	_, err = env.ledger.AdvanceOrderStatus(ctx, order.ID, models.OrderStatusCancelled)
	assert.Equal(t, utils.CodeInvalidTransition, utils.ErrorCode(err))

	_, err = env.ledger.AdvanceOrderStatus(ctx, 9999, models.OrderStatusConfirmed)
	assert.Equal(t, utils.CodeOrderNotFound, utils.ErrorCode(err))

	assert.Len(t, env.notes.ofType(models.NotificationOrderStatus), 4)
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{models.OrderStatusPending, models.OrderStatusConfirmed, true},
		{models.OrderStatusPending, models.OrderStatusPreparing, false},
		{models.OrderStatusReady, models.OrderStatusServed, true},
		{models.OrderStatusReady, models.OrderStatusPending, false},
		{models.OrderStatusPreparing, models.OrderStatusCancelled, true},
		{models.OrderStatusServed, models.OrderStatusCancelled, false},
		{models.OrderStatusCancelled, models.OrderStatusCancelled, false},
		{models.OrderStatusCancelled, models.OrderStatusConfirmed, false},
		{models.OrderStatusServed, "bogus", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestKitchenQueue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := openSession(t, env, 1, "Asha")
	b := openSession(t, env, 2, "Ben")

	first, err := env.ledger.PlaceOrder(ctx, PlaceOrderInput{SessionID: a.ID, Items: []LineItemInput{customLine("Soup", 5, 1)}})
	require.NoError(t, err)
	second, err := env.ledger.PlaceOrder(ctx, PlaceOrderInput{SessionID: b.ID, Items: []LineItemInput{customLine("Tea", 2, 2)}})
	require.NoError(t, err)
	done, err := env.ledger.PlaceOrder(ctx, PlaceOrderInput{SessionID: b.ID, Items: []LineItemInput{customLine("Cake", 4, 1)}})
	require.NoError(t, err)
	_, err = env.ledger.AdvanceOrderStatus(ctx, done.ID, models.OrderStatusCancelled)
	require.NoError(t, err)

	queue, err := env.ledger.KitchenQueue(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, first.ID, queue[0].ID)
	assert.Equal(t, "T1", queue[0].TableLabel)
	assert.Equal(t, "Asha", queue[0].CustomerName)
	assert.Len(t, queue[0].Items, 1)
	assert.Equal(t, second.ID, queue[1].ID)
	assert.Equal(t, "T2", queue[1].TableLabel)
}
