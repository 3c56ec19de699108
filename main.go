package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/qr-restaurant/config"
	"github.com/yeremiapane/qr-restaurant/database"
	"github.com/yeremiapane/qr-restaurant/kds"
	"github.com/yeremiapane/qr-restaurant/router"
	"github.com/yeremiapane/qr-restaurant/services"
	"github.com/yeremiapane/qr-restaurant/utils"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		utils.ErrLogger().Fatalf("Failed to load config: %v", err)
	}
	utils.ConfigureLogger(cfg.LogFormat, cfg.LogLevel)
	utils.SetJWTSecret(cfg.JWTSecret)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		utils.ErrLogger().Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		utils.ErrLogger().Fatalf("Failed to migrate: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	hub := kds.NewHub()
	deps := router.NewDeps(db, cfg, hub, integrations(ctx, cfg))

	monitor := services.NewChangeMonitor(db, hub)
	monitor.Interval = cfg.ChangePollInterval
	monitor.Start()
	defer monitor.Stop()

	deps.Registry.StartExpirySweeper(ctx, cfg.SweepInterval)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.SetupRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.Logger().Infof("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrLogger().Fatal(err)
		}
	}()

	<-ctx.Done()
	utils.Logger().Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.ErrLogger().Errorf("graceful shutdown failed: %v", err)
	}
	deps.Notifications.Wait()
}

// integrations wires the optional outside services that are configured.
func integrations(ctx context.Context, cfg config.Config) router.Options {
	opts := router.Options{Gateways: services.DefaultGateways()}

	if cfg.MidtransServerKey != "" {
		opts.Gateways.Register(services.MethodQRIS, services.NewMidtransGateway(cfg.MidtransServerKey, cfg.MidtransIsProd))
		utils.Logger().Info("midtrans QRIS gateway enabled")
	}

	if cfg.SMTPHost != "" {
		opts.Notifiers = append(opts.Notifiers,
			services.NewMailNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPSender))
		utils.Logger().Infof("mail notifications via %s", cfg.SMTPHost)
	}

	if cfg.ReceiptBucket != "" {
		archiver, err := services.NewS3ReceiptArchiver(ctx, cfg.AWSRegion, cfg.AWSAccessKey, cfg.AWSSecretKey, cfg.ReceiptBucket)
		if err != nil {
			utils.ErrLogger().Errorf("receipt archive disabled: %v", err)
		} else {
			opts.Archiver = archiver
		}
	}
	return opts
}
