package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/qr-restaurant/kds"
	"github.com/yeremiapane/qr-restaurant/models"
	"gopkg.in/gomail.v2"
)

type collectingNotifier struct {
	events chan NotificationEvent
	err    error
}

func (c *collectingNotifier) Notify(_ context.Context, ev NotificationEvent) error {
	c.events <- ev
	return c.err
}

func TestNotificationServicePersistsAndFansOut(t *testing.T) {
	env := newTestEnv(t)
	sess := openSession(t, env, 1, "Asha")

	failing := &collectingNotifier{events: make(chan NotificationEvent, 4), err: errors.New("smtp down")}
	ok := &collectingNotifier{events: make(chan NotificationEvent, 4)}
	svc := NewNotificationService(env.db, kds.NewHub(), failing, ok)

	svc.Dispatch(NotificationEvent{SessionID: sess.ID, Type: models.NotificationOrderPlaced, Title: "Order Placed", Message: "ORD1"})
	svc.Dispatch(NotificationEvent{SessionID: sess.ID, Type: models.NotificationCounterPaymentPending, Title: "Counter Payment Pending", Message: "x", Audience: AudienceStaff})
	svc.Wait()

	// a failing channel does not stop the others
	assert.Len(t, failing.events, 2)
	assert.Len(t, ok.events, 2)

	mine, err := svc.ForSession(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Order Placed", mine[0].Title)

	staff, err := svc.ForStaff(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, models.NotificationCounterPaymentPending, staff[0].Type)
}

// dialScreen connects a websocket client registered on hub with role.
func dialScreen(t *testing.T, hub *kds.Hub, role string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := hub.Register(conn, role)
		defer hub.Unregister(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestCustomerNotificationsStayOffStaffScreens(t *testing.T) {
	env := newTestEnv(t)
	sess := openSession(t, env, 1, "Asha")
	hub := kds.NewHub()
	svc := NewNotificationService(env.db, hub)

	chef := dialScreen(t, hub, models.RoleChef)
	cashier := dialScreen(t, hub, models.RoleCashier)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	svc.Dispatch(NotificationEvent{SessionID: sess.ID, Type: models.NotificationPaymentCompleted, Title: "Payment Successful", Message: "Payment of $23.00 received"})
	svc.Dispatch(NotificationEvent{SessionID: sess.ID, Type: models.NotificationCounterPaymentPending, Title: "Counter Payment Pending", Audience: AudienceStaff})
	svc.Wait()

	require.NoError(t, cashier.SetReadDeadline(time.Now().Add(time.Second)))
	_, raw, err := cashier.ReadMessage()
	require.NoError(t, err)
	var msg struct {
		Event string              `json:"event"`
		Data  models.Notification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, kds.EventNotification, msg.Event)
	assert.Equal(t, "Counter Payment Pending", msg.Data.Title)

	// nothing else for the cashier, nothing at all for the kitchen
	for _, conn := range []*websocket.Conn{cashier, chef} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
		_, _, err := conn.ReadMessage()
		assert.Error(t, err)
	}

	// the customer still sees theirs through the session
	mine, err := svc.ForSession(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Payment Successful", mine[0].Title)
}

func TestNilNotificationServiceIsSafe(t *testing.T) {
	var svc *NotificationService
	assert.NotPanics(t, func() {
		svc.Dispatch(NotificationEvent{Type: models.NotificationOrderPlaced})
		svc.Wait()
	})
}

func TestMailNotifier(t *testing.T) {
	var sent []*gomail.Message
	n := &MailNotifier{From: "bistro@example.com", Send: func(m *gomail.Message) error {
		sent = append(sent, m)
		return nil
	}}
	ctx := context.Background()

	require.NoError(t, n.Notify(ctx, NotificationEvent{
		Type:          models.NotificationSessionClosed,
		Title:         "Session Closed",
		Message:       "Receipt RCP-1 <total>",
		Audience:      AudienceCustomer,
		CustomerEmail: "asha@example.com",
	}))
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"asha@example.com"}, sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Session Closed"}, sent[0].GetHeader("Subject"))

	// no address, wrong audience or uninteresting type: nothing sent
	require.NoError(t, n.Notify(ctx, NotificationEvent{Type: models.NotificationSessionClosed, Audience: AudienceCustomer}))
	require.NoError(t, n.Notify(ctx, NotificationEvent{Type: models.NotificationOrderPlaced, Audience: AudienceCustomer, CustomerEmail: "a@b.c"}))
	require.NoError(t, n.Notify(ctx, NotificationEvent{Type: models.NotificationSessionClosed, Audience: AudienceStaff, CustomerEmail: "a@b.c"}))
	assert.Len(t, sent, 1)

	n.Send = func(*gomail.Message) error { return errors.New("dial tcp: refused") }
	err := n.Notify(ctx, NotificationEvent{
		Type: models.NotificationPaymentCompleted, Audience: AudienceCustomer, CustomerEmail: "asha@example.com",
	})
	assert.ErrorContains(t, err, "asha@example.com")
}
