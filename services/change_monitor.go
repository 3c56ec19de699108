package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/qr-restaurant/kds"
	"github.com/yeremiapane/qr-restaurant/models"
	"github.com/yeremiapane/qr-restaurant/utils"
	"gorm.io/gorm"
)

// Change-feed entity names.
const (
	EntitySessions = "table_sessions"
	EntityOrders   = "orders"
	EntityPayments = "payments"
	EntityReceipts = "receipts"
	EntityTables   = "tables"
)

// RecordChange appends a change-feed row. Call it with the transaction that
// performs the change so the row commits or rolls back with it.
func RecordChange(tx *gorm.DB, entity, recordID, action string) error {
	return tx.Create(&models.DBChange{
		Entity:    entity,
		RecordID:  recordID,
		Action:    action,
		ChangedAt: time.Now(),
	}).Error
}

// ChangeMonitor polls db_changes and publishes each row to the hub. A row is
// marked processed only after it was published, so a crash in between
// re-delivers it.
type ChangeMonitor struct {
	DB        *gorm.DB
	Hub       *kds.Hub
	Interval  time.Duration
	BatchSize int

	stopChan chan struct{}
	stopOnce sync.Once
	log      *logrus.Entry
}

func NewChangeMonitor(db *gorm.DB, hub *kds.Hub) *ChangeMonitor {
	return &ChangeMonitor{
		DB:        db,
		Hub:       hub,
		Interval:  1 * time.Second,
		BatchSize: 100,
		stopChan:  make(chan struct{}),
		log:       utils.Logger().WithField("component", "change_monitor"),
	}
}

func (cm *ChangeMonitor) Start() {
	go func() {
		ticker := time.NewTicker(cm.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := cm.Poll(context.Background()); err != nil {
					cm.log.Errorf("Error polling changes: %v", err)
				}
			case <-cm.stopChan:
				return
			}
		}
	}()
}

func (cm *ChangeMonitor) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopChan) })
}

// Poll publishes one batch of unprocessed changes and returns how many it handled.
func (cm *ChangeMonitor) Poll(ctx context.Context) (int, error) {
	var changes []models.DBChange
	if err := cm.DB.WithContext(ctx).
		Where("processed = ?", false).
		Order("id ASC").
		Limit(cm.BatchSize).
		Find(&changes).Error; err != nil {
		return 0, err
	}
	if len(changes) == 0 {
		return 0, nil
	}

	ids := make([]uint, 0, len(changes))
	for _, change := range changes {
		cm.Hub.Publish(kds.Change{
			Entity:    change.Entity,
			RecordID:  change.RecordID,
			Action:    change.Action,
			ChangedAt: change.ChangedAt,
		})
		ids = append(ids, change.ID)
	}

	if err := cm.DB.WithContext(ctx).Model(&models.DBChange{}).
		Where("id IN ?", ids).
		Update("processed", true).Error; err != nil {
		return len(changes), err
	}

	cm.log.Debugf("Successfully processed %d changes", len(changes))
	return len(changes), nil
}

// Prune deletes processed rows older than before.
func (cm *ChangeMonitor) Prune(ctx context.Context, before time.Time) (int64, error) {
	res := cm.DB.WithContext(ctx).
		Where("processed = ? AND changed_at < ?", true, before).
		Delete(&models.DBChange{})
	return res.RowsAffected, res.Error
}
