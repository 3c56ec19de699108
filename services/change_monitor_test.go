package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/qr-restaurant/kds"
	"github.com/yeremiapane/qr-restaurant/models"
)

func TestChangeMonitorPublishesCommittedChanges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	hub := kds.NewHub()

	var mu sync.Mutex
	var orderChanges, sessionChanges []kds.Change
	hub.Subscribe(func(c kds.Change) {
		mu.Lock()
		orderChanges = append(orderChanges, c)
		mu.Unlock()
	}, EntityOrders)
	hub.Subscribe(func(c kds.Change) {
		mu.Lock()
		sessionChanges = append(sessionChanges, c)
		mu.Unlock()
	}, EntitySessions)

	sess := openSession(t, env, 1, "Asha")
	placeOrders(t, env, sess.ID, 20)

	// a rejected order leaves no trace in the feed
	_, err := env.ledger.PlaceOrder(ctx, PlaceOrderInput{SessionID: sess.ID, Items: []LineItemInput{customLine("Soup", 5, 0)}})
	require.Error(t, err)

	monitor := NewChangeMonitor(env.db, hub)
	n, err := monitor.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	mu.Lock()
	assert.Len(t, orderChanges, 1)
	assert.Equal(t, models.ChangeInsert, orderChanges[0].Action)
	require.Len(t, sessionChanges, 2)
	assert.Equal(t, sess.ID, sessionChanges[0].RecordID)
	mu.Unlock()

	// processed rows are not delivered twice
	n, err = monitor.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	pruned, err := monitor.Prune(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 3, pruned)
}

func TestChangeMonitorBatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, RecordChange(env.db, EntityTables, "1", models.ChangeUpdate))
	}

	monitor := NewChangeMonitor(env.db, kds.NewHub())
	monitor.BatchSize = 2

	total := 0
	for i := 0; i < 4; i++ {
		n, err := monitor.Poll(ctx)
		require.NoError(t, err)
		total += n
	}
	assert.Equal(t, 5, total)
}

func TestChangeMonitorStartStop(t *testing.T) {
	env := newTestEnv(t)
	hub := kds.NewHub()

	got := make(chan kds.Change, 1)
	hub.Subscribe(func(c kds.Change) {
		select {
		case got <- c:
		default:
		}
	})

	monitor := NewChangeMonitor(env.db, hub)
	monitor.Interval = 10 * time.Millisecond
	monitor.Start()
	defer monitor.Stop()

	require.NoError(t, RecordChange(env.db, EntityTables, "7", models.ChangeInsert))

	select {
	case c := <-got:
		assert.Equal(t, "7", c.RecordID)
	case <-time.After(2 * time.Second):
		t.Fatal("change was not published")
	}

	monitor.Stop()
	monitor.Stop()
}
