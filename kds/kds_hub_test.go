package kds

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	failNext bool
	closed   bool
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		return errors.New("broken pipe")
	}
	f.messages = append(f.messages, data)
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) events(t *testing.T) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, raw := range f.messages {
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		out = append(out, msg.Event)
	}
	return out
}

func TestSubscribeFiltersByEntity(t *testing.T) {
	hub := NewHub()

	var orders, all []Change
	hub.Subscribe(func(c Change) { orders = append(orders, c) }, "orders")
	unsubscribe := hub.Subscribe(func(c Change) { all = append(all, c) })

	hub.Publish(Change{Entity: "orders", RecordID: "1", Action: "INSERT"})
	hub.Publish(Change{Entity: "table_sessions", RecordID: "abc", Action: "UPDATE"})

	assert.Len(t, orders, 1)
	assert.Len(t, all, 2)

	unsubscribe()
	hub.Publish(Change{Entity: "orders", RecordID: "2", Action: "UPDATE"})
	assert.Len(t, orders, 2)
	assert.Len(t, all, 2)
}

func TestPublishSurvivesPanickingSubscriber(t *testing.T) {
	hub := NewHub()
	delivered := false
	hub.Subscribe(func(Change) { panic("boom") })
	hub.Subscribe(func(Change) { delivered = true })

	assert.NotPanics(t, func() {
		hub.Publish(Change{Entity: "orders", RecordID: "1", Action: "INSERT"})
	})
	assert.True(t, delivered)
}

func TestBroadcastToRole(t *testing.T) {
	hub := NewHub()
	chef := &fakeConn{}
	cashier := &fakeConn{}
	admin := &fakeConn{}
	hub.register(chef, "chef")
	hub.register(cashier, "cashier")
	hub.register(admin, "admin")

	hub.BroadcastToRole(Message{Event: EventKitchenSnapshot, Data: []int{1}}, "chef")

	assert.Equal(t, []string{EventKitchenSnapshot}, chef.events(t))
	assert.Empty(t, cashier.events(t))
	assert.Equal(t, []string{EventKitchenSnapshot}, admin.events(t))
}

func TestBroadcastDropsBrokenClient(t *testing.T) {
	hub := NewHub()
	broken := &fakeConn{failNext: true}
	healthy := &fakeConn{}
	hub.register(broken, "staff")
	hub.register(healthy, "staff")

	hub.Publish(Change{Entity: "orders", RecordID: "9", Action: "UPDATE"})

	assert.Equal(t, 1, hub.ClientCount())
	assert.True(t, broken.closed)
	assert.Equal(t, []string{EventChange}, healthy.events(t))
}

func TestRefetcherCoalescesTriggersIntoOneTrailingRun(t *testing.T) {
	var runs atomic.Int32
	release := make(chan struct{})
	r := NewRefetcher(func() {
		runs.Add(1)
		<-release
	})

	assert.True(t, r.Trigger())
	assert.False(t, r.Trigger())
	assert.False(t, r.Trigger())
	assert.Equal(t, int64(2), r.Skipped())

	close(release)
	assert.Eventually(t, func() bool { return !r.Busy() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), runs.Load(), "first run plus one trailing run")

	assert.True(t, r.Trigger())
	assert.Eventually(t, func() bool { return runs.Load() == 3 && !r.Busy() }, time.Second, 5*time.Millisecond)
}

func TestRefetcherWithoutOverlapRunsOnce(t *testing.T) {
	var runs atomic.Int32
	r := NewRefetcher(func() { runs.Add(1) })

	assert.True(t, r.Trigger())
	assert.Eventually(t, func() bool { return !r.Busy() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
	assert.Zero(t, r.Skipped())
}
