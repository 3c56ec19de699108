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

const (
	AudienceCustomer = "customer"
	AudienceStaff    = "staff"
)

// NotificationEvent is something worth telling a customer or the staff about.
type NotificationEvent struct {
	SessionID     string
	Type          string
	Title         string
	Message       string
	Audience      string
	CustomerEmail string
}

// NotificationDispatcher is what the ledger and payment services talk to.
type NotificationDispatcher interface {
	Dispatch(ev NotificationEvent)
}

// Notifier is an outbound channel such as e-mail.
type Notifier interface {
	Notify(ctx context.Context, ev NotificationEvent) error
}

// NotificationService persists notifications and fans them out. Dispatch
// never blocks the caller and never fails it.
type NotificationService struct {
	DB        *gorm.DB
	Hub       *kds.Hub
	Notifiers []Notifier
	Timeout   time.Duration

	wg  sync.WaitGroup
	log *logrus.Entry
}

func NewNotificationService(db *gorm.DB, hub *kds.Hub, notifiers ...Notifier) *NotificationService {
	return &NotificationService{
		DB:        db,
		Hub:       hub,
		Notifiers: notifiers,
		Timeout:   10 * time.Second,
		log:       utils.Logger().WithField("component", "notifications"),
	}
}

func (s *NotificationService) Dispatch(ev NotificationEvent) {
	if s == nil {
		return
	}
	if ev.Audience == "" {
		ev.Audience = AudienceCustomer
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Errorf("notification dispatch panicked: %v", r)
			}
		}()
		s.deliver(ev)
	}()
}

// Wait blocks until every dispatched notification has been handled.
func (s *NotificationService) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

func (s *NotificationService) deliver(ev NotificationEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()

	n := models.Notification{
		Type:     ev.Type,
		Title:    ev.Title,
		Message:  ev.Message,
		Audience: ev.Audience,
	}
	if ev.SessionID != "" {
		sid := ev.SessionID
		n.SessionID = &sid
	}

	if s.DB != nil {
		if err := s.DB.WithContext(ctx).Create(&n).Error; err != nil {
			s.log.WithField("type", ev.Type).Errorf("failed to persist notification: %v", err)
		}
	}

	// hub sockets belong to staff screens; customers read theirs from the session
	if s.Hub != nil && ev.Audience == AudienceStaff {
		s.Hub.BroadcastToRole(kds.Message{Event: kds.EventNotification, Data: n}, models.RoleStaff, models.RoleCashier)
	}

	for _, notifier := range s.Notifiers {
		if err := notifier.Notify(ctx, ev); err != nil {
			s.log.WithFields(logrus.Fields{"type": ev.Type, "session_id": ev.SessionID}).
				Warnf("notifier failed: %v", err)
		}
	}
}

// ForSession lists a session's customer notifications, newest first.
func (s *NotificationService) ForSession(ctx context.Context, sessionID string) ([]models.Notification, error) {
	var out []models.Notification
	if err := s.DB.WithContext(ctx).
		Where("session_id = ? AND audience = ?", sessionID, AudienceCustomer).
		Order("created_at DESC, id DESC").
		Find(&out).Error; err != nil {
		return nil, utils.DBError(err, "", "failed to load notifications")
	}
	return out, nil
}

// ForStaff lists the latest staff notifications.
func (s *NotificationService) ForStaff(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.Notification
	if err := s.DB.WithContext(ctx).
		Where("audience = ?", AudienceStaff).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, utils.DBError(err, "", "failed to load notifications")
	}
	return out, nil
}
