package router

import (
	"github.com/yeremiapane/qr-restaurant/config"
	"github.com/yeremiapane/qr-restaurant/kds"
	"github.com/yeremiapane/qr-restaurant/services"
	"gorm.io/gorm"
)

// Deps is everything the HTTP layer needs, wired once at startup.
type Deps struct {
	DB            *gorm.DB
	Config        config.Config
	Hub           *kds.Hub
	Registry      *services.SessionRegistry
	Ledger        *services.OrderLedger
	Receipts      *services.ReceiptService
	Payments      *services.PaymentCoordinator
	Notifications *services.NotificationService
	Monitor       *services.PaymentMonitor
}

// Options carries the optional integrations; zero values disable them.
type Options struct {
	Gateways  *services.GatewayRegistry
	Archiver  services.ReceiptArchiver
	Notifiers []services.Notifier
}

func NewDeps(db *gorm.DB, cfg config.Config, hub *kds.Hub, opts Options) *Deps {
	notifications := services.NewNotificationService(db, hub, opts.Notifiers...)
	registry := services.NewSessionRegistry(db, cfg.SessionTimeout)
	ledger := services.NewOrderLedger(db, notifications)
	receipts := services.NewReceiptService(db, opts.Archiver)
	monitor := services.NewPaymentMonitor()

	return &Deps{
		DB:            db,
		Config:        cfg,
		Hub:           hub,
		Registry:      registry,
		Ledger:        ledger,
		Receipts:      receipts,
		Payments:      services.NewPaymentCoordinator(db, registry, ledger, receipts, opts.Gateways, notifications, monitor),
		Notifications: notifications,
		Monitor:       monitor,
	}
}
