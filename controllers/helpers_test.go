package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/qr-restaurant/database"
	"github.com/yeremiapane/qr-restaurant/kds"
	"github.com/yeremiapane/qr-restaurant/middlewares"
	"github.com/yeremiapane/qr-restaurant/services"
	"github.com/yeremiapane/qr-restaurant/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Status    bool                   `json:"status"`
	Message   string                 `json:"message"`
	ErrorCode string                 `json:"error_code"`
	Details   map[string]interface{} `json:"details"`
	Data      json.RawMessage        `json:"data"`
}

type testApp struct {
	db            *gorm.DB
	seed          *database.SeedResult
	hub           *kds.Hub
	registry      *services.SessionRegistry
	ledger        *services.OrderLedger
	receipts      *services.ReceiptService
	payments      *services.PaymentCoordinator
	gateways      *services.GatewayRegistry
	notifications *services.NotificationService
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

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db := setupTestDB(t)
	seed, err := database.Seed(db, database.SeedOptions{TableCount: 4})
	require.NoError(t, err)

	hub := kds.NewHub()
	notifications := services.NewNotificationService(db, hub)
	registry := services.NewSessionRegistry(db, services.DefaultSessionTimeout)
	ledger := services.NewOrderLedger(db, notifications)
	receipts := services.NewReceiptService(db, nil)

	gateways := services.NewGatewayRegistry()
	gateways.Register(services.MethodCard, services.NewSimulatedGateway(services.MethodCard))

	app := &testApp{
		db:            db,
		seed:          seed,
		hub:           hub,
		registry:      registry,
		ledger:        ledger,
		receipts:      receipts,
		payments:      services.NewPaymentCoordinator(db, registry, ledger, receipts, gateways, notifications, services.NewPaymentMonitor()),
		gateways:      gateways,
		notifications: notifications,
	}
	t.Cleanup(notifications.Wait)
	return app
}

func (a *testApp) sessionAuth() (gin.HandlerFunc, gin.HandlerFunc) {
	return middlewares.SessionAuth(a.registry, false, a.registry.Timeout()),
		middlewares.SessionReadAuth(a.registry, false, a.registry.Timeout())
}

func (a *testApp) staffToken(t *testing.T, role string) string {
	t.Helper()
	token, err := utils.GenerateToken(a.seed.Admin.ID, role)
	require.NoError(t, err)
	return "Bearer " + token
}

type request struct {
	method  string
	path    string
	body    interface{}
	headers map[string]string
	cookies []*http.Cookie
}

func do(t *testing.T, r http.Handler, req request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var body bytes.Buffer
	if req.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(req.body))
	}
	httpReq := httptest.NewRequest(req.method, req.path, &body)
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}
	for _, c := range req.cookies {
		httpReq.AddCookie(c)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httpReq)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func decode(t *testing.T, raw json.RawMessage, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, dst), string(raw))
}

// liveCookies keeps the cookies a response set, dropping the ones it deleted.
func liveCookies(w *httptest.ResponseRecorder) []*http.Cookie {
	var out []*http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.MaxAge >= 0 && c.Value != "" {
			out = append(out, c)
		}
	}
	return out
}
