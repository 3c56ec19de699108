package database

import (
	"fmt"

	"github.com/yeremiapane/qr-restaurant/models"
	"github.com/yeremiapane/qr-restaurant/utils"
	"gorm.io/gorm"
)

// Models lists every table in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.Restaurant{},
		&models.User{},
		&models.Table{},
		&models.MenuItem{},
		&models.TableSession{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
		&models.CounterPayment{},
		&models.Receipt{},
		&models.Notification{},
		&models.DBChange{},
	}
}

// Migrate creates or updates the schema and verifies the index that keeps a
// table from holding two active sessions.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	if !db.Migrator().HasIndex(&models.TableSession{}, "idx_one_active_session_per_table") {
		if err := db.Migrator().CreateIndex(&models.TableSession{}, "idx_one_active_session_per_table"); err != nil {
			return fmt.Errorf("create active session index: %w", err)
		}
	}

	utils.Logger().Info("AutoMigrate completed.")
	return nil
}
