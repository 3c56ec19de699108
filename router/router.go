package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/qr-restaurant/controllers"
	"github.com/yeremiapane/qr-restaurant/middlewares"
	"github.com/yeremiapane/qr-restaurant/models"
)

func SetupRouter(d *Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(middlewares.SecurityHeaders(d.Config.SecureCookies))
	r.Use(middlewares.CORSMiddlewares(d.Config.CORSOrigins))
	r.Use(middlewares.LoggerMiddleware())
	if d.Config.RateLimit > 0 {
		r.Use(middlewares.NewRateLimiter(d.Config.RateLimit, time.Second).RateLimit())
	}

	secure := d.Config.SecureCookies
	timeout := d.Registry.Timeout()

	userCtrl := controllers.NewUserController(d.DB)
	menuCtrl := controllers.NewMenuController(d.DB)
	tableCtrl := controllers.NewTableController(d.DB, d.Config.PublicBaseURL)
	sessionCtrl := controllers.NewSessionController(d.Registry, d.Ledger, secure)
	orderCtrl := controllers.NewOrderController(d.Ledger)
	paymentCtrl := controllers.NewPaymentController(d.DB, d.Payments)
	receiptCtrl := controllers.NewReceiptController(d.Receipts)
	notifCtrl := controllers.NewNotificationController(d.Notifications)
	kdsCtrl := controllers.NewKDSController(d.Hub, d.Ledger, d.Payments)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "ws_clients": d.Hub.ClientCount()})
	})

	r.POST("/login", middlewares.NewStrictRateLimiter(), userCtrl.Login)
	r.POST("/payments/midtrans/notification", middlewares.LogPaymentRequest(), paymentCtrl.MidtransNotification)
	r.GET("/restaurants/:restaurant_id/menu", menuCtrl.GetMenu)

	// Scan & session entry
	r.GET("/scan/:restaurant_id/:table_id", sessionCtrl.Scan)
	r.POST("/scan/:restaurant_id/:table_id/resolve", sessionCtrl.ResolveScan)
	r.POST("/tables/:table_id/sessions", sessionCtrl.CreateSession)
	r.POST("/tables/:table_id/sessions/:session_id/join", sessionCtrl.JoinSession)

	// Customer routes, authenticated by session token
	active := middlewares.SessionAuth(d.Registry, secure, timeout)
	readOnly := middlewares.SessionReadAuth(d.Registry, secure, timeout)

	sess := r.Group("/sessions/:session_id")
	{
		sess.GET("", readOnly, sessionCtrl.GetSession)
		sess.POST("/renew", active, sessionCtrl.RenewSession)
		sess.POST("/orders", active, orderCtrl.PlaceOrder)
		sess.GET("/orders", readOnly, orderCtrl.ListOrders)
		sess.GET("/notifications", readOnly, notifCtrl.SessionNotifications)
		sess.GET("/receipt", readOnly, middlewares.ReceiptLoggerMiddleware(), receiptCtrl.SessionReceipt)

		pay := sess.Group("")
		pay.Use(middlewares.PaymentSecurityHeaders(), middlewares.LogPaymentRequest())
		pay.GET("/payment-options", active, paymentCtrl.PaymentOptions)
		pay.POST("/payments", middlewares.PaymentRateLimiter(), active, paymentCtrl.ChoosePayment)
		pay.POST("/payments/:payment_id/refresh", readOnly, paymentCtrl.RefreshPayment)
		pay.GET("/payment-state", readOnly, paymentCtrl.PaymentState)
		pay.GET("/can-close", readOnly, paymentCtrl.CanClose)
		pay.POST("/close", readOnly, paymentCtrl.CloseSession)
	}

	// Staff routes
	auth := r.Group("/admin")
	auth.Use(middlewares.AuthMiddleware())
	{
		auth.GET("/profile", userCtrl.GetProfile)
		auth.POST("/users", middlewares.RequireRoles(), userCtrl.Register)

		staff := middlewares.RequireRoles(models.RoleStaff, models.RoleCashier)
		kitchen := middlewares.RequireRoles(models.RoleStaff, models.RoleChef)

		auth.POST("/tables", middlewares.RequireRoles(), tableCtrl.CreateTable)
		auth.GET("/tables", staff, tableCtrl.GetAllTables)
		auth.PATCH("/tables/:table_id", middlewares.RequireRoles(models.RoleStaff), tableCtrl.UpdateTable)
		auth.GET("/tables/:table_id/qr", staff, tableCtrl.TableQR)
		auth.GET("/tables/:table_id/sessions", staff, sessionCtrl.ActiveSessionsForTable)

		auth.POST("/menu", middlewares.RequireRoles(), menuCtrl.CreateMenuItem)
		auth.PATCH("/menu/:menu_id/availability", kitchen, menuCtrl.SetAvailability)

		auth.GET("/sessions/counter-pending", staff, paymentCtrl.CounterPending)
		auth.GET("/sessions/:session_id/ledger", staff, sessionCtrl.SessionLedger)
		auth.GET("/sessions/:session_id/payments", staff, paymentCtrl.PaymentHistory)
		auth.POST("/sessions/:session_id/counter-payments", middlewares.RequireRoles(models.RoleCashier, models.RoleStaff),
			middlewares.LogPaymentRequest(), paymentCtrl.CounterPayment)
		auth.POST("/sessions/:session_id/close", staff, paymentCtrl.StaffCloseSession)

		auth.GET("/kitchen/orders", kitchen, orderCtrl.KitchenOrders)
		auth.PATCH("/orders/:order_id/status", kitchen, orderCtrl.UpdateOrderStatus)

		auth.GET("/receipts/:receipt_id", staff, middlewares.ReceiptLoggerMiddleware(), receiptCtrl.GetReceipt)
		auth.GET("/payments/metrics", middlewares.RequireRoles(models.RoleCashier), paymentCtrl.Metrics)
		auth.GET("/notifications", staff, notifCtrl.StaffNotifications)
	}

	r.GET("/ws/:role", middlewares.WebSocketAuthMiddleware(), middlewares.RoleCheck(), kdsCtrl.Handler)

	return r
}
