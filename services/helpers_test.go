package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/qr-restaurant/database"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []NotificationEvent
}

func (r *recordingDispatcher) Dispatch(ev NotificationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingDispatcher) ofType(typ string) []NotificationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []NotificationEvent
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type testEnv struct {
	db       *gorm.DB
	seed     *database.SeedResult
	notes    *recordingDispatcher
	registry *SessionRegistry
	ledger   *OrderLedger
	receipts *ReceiptService
	payments *PaymentCoordinator
	monitor  *PaymentMonitor
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)

	seed, err := database.Seed(db, database.SeedOptions{TableCount: 10})
	require.NoError(t, err)

	notes := &recordingDispatcher{}
	registry := NewSessionRegistry(db, DefaultSessionTimeout)
	ledger := NewOrderLedger(db, notes)
	receipts := NewReceiptService(db, nil)
	monitor := NewPaymentMonitor()

	gateways := NewGatewayRegistry()
	gateways.Register(MethodCard, NewSimulatedGateway(MethodCard))
	gateways.Register(MethodUPI, NewSimulatedGateway(MethodUPI))

	return &testEnv{
		db:       db,
		seed:     seed,
		notes:    notes,
		registry: registry,
		ledger:   ledger,
		receipts: receipts,
		payments: NewPaymentCoordinator(db, registry, ledger, receipts, gateways, notes, monitor),
		monitor:  monitor,
	}
}

func (e *testEnv) tableID(n int) uint {
	return e.seed.Tables[n-1].ID
}

func (e *testEnv) menuID(name string) uint {
	for _, m := range e.seed.Menu {
		if m.Name == name {
			return m.ID
		}
	}
	panic("no menu item " + name)
}

// customLine is a free-form cart line with a fixed price.
func customLine(name string, price float64, qty int) LineItemInput {
	return LineItemInput{Name: name, UnitPrice: price, Quantity: qty}
}
