package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/qr-restaurant/models"
	"github.com/yeremiapane/qr-restaurant/utils"
	"gorm.io/gorm"
)

const DefaultSessionTimeout = 24 * time.Hour

// SessionRegistry owns the lifecycle of table sessions: which table is
// occupied, by whom, and whether a token may act on a session.
type SessionRegistry struct {
	db      *gorm.DB
	timeout time.Duration
	Clock   func() time.Time
	log     *logrus.Entry
}

func NewSessionRegistry(db *gorm.DB, timeout time.Duration) *SessionRegistry {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &SessionRegistry{
		db:      db,
		timeout: timeout,
		Clock:   func() time.Time { return time.Now().UTC() },
		log:     utils.Logger().WithField("component", "session_registry"),
	}
}

type CreateSessionInput struct {
	TableID       uint   `json:"table_id" validate:"required"`
	CustomerName  string `json:"customer_name" validate:"required,max=100"`
	CustomerPhone string `json:"customer_phone" validate:"omitempty,max=30"`
	CustomerEmail string `json:"customer_email" validate:"omitempty,email,max=255"`
}

// SessionSummary is the preview shown when a table already has active sessions.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	TableID      uint      `json:"table_id"`
	RestaurantID uint      `json:"restaurant_id"`
	CustomerName string    `json:"customer_name"`
	OrderCount   int64     `json:"order_count"`
	TotalAmount  float64   `json:"total_amount"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func newSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// CreateSession opens a session on an active table. Stale sessions of the
// table are expired and the new row is inserted in one transaction; the
// unique active-table index turns a concurrent winner into SESSION_CONFLICT.
func (r *SessionRegistry) CreateSession(ctx context.Context, in CreateSessionInput) (*models.TableSession, error) {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var table models.Table
	if err := r.db.WithContext(ctx).First(&table, in.TableID).Error; err != nil {
		return nil, utils.DBError(err, utils.CodeTableNotFound, "table not found")
	}
	if !table.Active {
		return nil, utils.NewAppError(utils.CodeTableInactive, "table is not accepting new sessions")
	}

	token, err := newSessionToken()
	if err != nil {
		return nil, utils.WrapAppError(utils.CodeDatabase, "failed to generate session token", err)
	}

	now := r.Clock()
	activeTableID := table.ID
	sess := models.TableSession{
		TableID:       table.ID,
		RestaurantID:  table.RestaurantID,
		ActiveTableID: &activeTableID,
		SessionToken:  token,
		CustomerName:  in.CustomerName,
		CustomerPhone: optionalString(in.CustomerPhone),
		CustomerEmail: optionalString(in.CustomerEmail),
		Status:        models.SessionStatusActive,
		PaymentMode:   models.PaymentModeFinalBill,
		LastActivity:  now,
		ExpiresAt:     now.Add(r.timeout),
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := r.expireOverdue(tx, &table.ID, now); err != nil {
			return err
		}
		if err := tx.Create(&sess).Error; err != nil {
			return err
		}
		return RecordChange(tx, EntitySessions, sess.ID, models.ChangeInsert)
	})
	if err != nil {
		if utils.IsUniqueViolation(err) {
			return nil, r.conflictError(ctx, table.ID, err)
		}
		return nil, utils.DBError(err, "", "failed to create session")
	}

	r.log.WithFields(logrus.Fields{"session_id": sess.ID, "table_id": table.ID}).Info("session created")
	return &sess, nil
}

func (r *SessionRegistry) conflictError(ctx context.Context, tableID uint, cause error) *utils.AppError {
	appErr := utils.WrapAppError(utils.CodeSessionConflict, "table already has an active session", cause)

	var existing models.TableSession
	if err := r.db.WithContext(ctx).
		Where("active_table_id = ?", tableID).
		First(&existing).Error; err == nil {
		appErr.WithDetail("session_id", existing.ID).
			WithDetail("customer_name", existing.CustomerName).
			WithDetail("created_at", existing.CreatedAt).
			WithDetail("total_amount", existing.TotalAmount)
	}
	return appErr
}

// GetSession loads a session without any token check.
func (r *SessionRegistry) GetSession(ctx context.Context, sessionID string) (*models.TableSession, error) {
	return r.getSession(r.db.WithContext(ctx), sessionID)
}

func (r *SessionRegistry) getSession(tx *gorm.DB, sessionID string) (*models.TableSession, error) {
	if sessionID == "" {
		return nil, utils.NewAppError(utils.CodeInvalidInput, "session id is required")
	}
	var sess models.TableSession
	if err := tx.Where("id = ?", sessionID).First(&sess).Error; err != nil {
		return nil, utils.DBError(err, utils.CodeSessionNotFound, "session not found")
	}
	return &sess, nil
}

func (r *SessionRegistry) statusError(sess *models.TableSession) error {
	switch sess.Status {
	case models.SessionStatusExpired:
		return utils.NewAppError(utils.CodeSessionExpired, "session has expired").
			WithDetail("session_id", sess.ID)
	default:
		return utils.NewAppError(utils.CodeSessionInactive, "session is no longer active").
			WithDetail("session_id", sess.ID).
			WithDetail("status", sess.Status)
	}
}

// ValidateSession checks that the session exists, the token matches, it is
// active and not past expires_at. An overdue session is expired on the spot.
func (r *SessionRegistry) ValidateSession(ctx context.Context, sessionID, token string) (*models.TableSession, error) {
	sess, err := r.CheckToken(ctx, sessionID, token)
	if err != nil {
		return nil, err
	}
	if !sess.IsActive() {
		return nil, r.statusError(sess)
	}

	if !r.Clock().Before(sess.ExpiresAt) {
		if err := r.expire(ctx, sess.ID); err != nil {
			return nil, err
		}
		return nil, utils.NewAppError(utils.CodeSessionExpired, "session has expired").
			WithDetail("session_id", sess.ID)
	}
	return sess, nil
}

// CheckToken authenticates the holder of a session in any state. Read-only
// views such as the receipt stay reachable after the session is closed.
func (r *SessionRegistry) CheckToken(ctx context.Context, sessionID, token string) (*models.TableSession, error) {
	if token == "" {
		return nil, utils.NewAppError(utils.CodeInvalidToken, "session token is required")
	}
	sess, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(sess.SessionToken), []byte(token)) != 1 {
		return nil, utils.NewAppError(utils.CodeInvalidToken, "session token does not match")
	}
	return sess, nil
}

func (r *SessionRegistry) expire(ctx context.Context, sessionID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.TableSession{}).
			Where("id = ? AND status = ?", sessionID, models.SessionStatusActive).
			Updates(map[string]interface{}{
				"status":          models.SessionStatusExpired,
				"active_table_id": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return RecordChange(tx, EntitySessions, sessionID, models.ChangeUpdate)
	})
	if err != nil {
		return utils.DBError(err, "", "failed to expire session")
	}
	r.log.WithField("session_id", sessionID).Info("session expired")
	return nil
}

// expireOverdue expires active sessions past expires_at, for one table or all of them.
func (r *SessionRegistry) expireOverdue(tx *gorm.DB, tableID *uint, now time.Time) ([]string, error) {
	q := tx.Model(&models.TableSession{}).
		Where("status = ? AND expires_at <= ?", models.SessionStatusActive, now)
	if tableID != nil {
		q = q.Where("table_id = ?", *tableID)
	}

	var ids []string
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if err := tx.Model(&models.TableSession{}).
		Where("id IN ? AND status = ?", ids, models.SessionStatusActive).
		Updates(map[string]interface{}{
			"status":          models.SessionStatusExpired,
			"active_table_id": nil,
		}).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		if err := RecordChange(tx, EntitySessions, id, models.ChangeUpdate); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// RenewSession pushes expires_at a full timeout ahead and bumps last_activity.
func (r *SessionRegistry) RenewSession(ctx context.Context, sessionID string) (*models.TableSession, error) {
	now := r.Clock()

	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.TableSession{}).
			Where("id = ? AND status = ? AND expires_at > ?", sessionID, models.SessionStatusActive, now).
			Updates(map[string]interface{}{
				"expires_at":    now.Add(r.timeout),
				"last_activity": now,
			})
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		if affected == 0 {
			return nil
		}
		return RecordChange(tx, EntitySessions, sessionID, models.ChangeUpdate)
	})
	if err != nil {
		return nil, utils.DBError(err, "", "failed to renew session")
	}

	sess, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		if sess.IsActive() {
			// active but overdue
			if err := r.expire(ctx, sess.ID); err != nil {
				return nil, err
			}
			return nil, utils.NewAppError(utils.CodeSessionExpired, "session has expired").
				WithDetail("session_id", sess.ID)
		}
		return nil, r.statusError(sess)
	}
	return sess, nil
}

// JoinSession lets a second device at the same table continue an active
// session. Having scanned that table's code is the proof of presence.
func (r *SessionRegistry) JoinSession(ctx context.Context, sessionID string, tableID uint) (*models.TableSession, error) {
	sess, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.TableID != tableID {
		return nil, utils.NewAppError(utils.CodeInvalidInput, "session does not belong to this table")
	}
	if !sess.IsActive() {
		return nil, r.statusError(sess)
	}
	return r.RenewSession(ctx, sess.ID)
}

// CloseSession marks the session completed. Closing a session that is no
// longer active changes nothing and is not an error.
func (r *SessionRegistry) CloseSession(ctx context.Context, sessionID, closedBy, reason string) (*models.TableSession, error) {
	var sess *models.TableSession
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sess, err = r.closeTx(tx, sessionID, closedBy, reason)
		return err
	})
	if err != nil {
		return nil, utils.DBError(err, utils.CodeSessionNotFound, "failed to close session")
	}
	return sess, nil
}

func (r *SessionRegistry) closeTx(tx *gorm.DB, sessionID, closedBy, reason string) (*models.TableSession, error) {
	now := r.Clock()
	res := tx.Model(&models.TableSession{}).
		Where("id = ? AND status = ?", sessionID, models.SessionStatusActive).
		Updates(map[string]interface{}{
			"status":          models.SessionStatusCompleted,
			"active_table_id": nil,
			"closed_at":       now,
			"closed_by":       closedBy,
			"close_reason":    reason,
			"last_activity":   now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		if err := RecordChange(tx, EntitySessions, sessionID, models.ChangeUpdate); err != nil {
			return nil, err
		}
		r.log.WithFields(logrus.Fields{"session_id": sessionID, "closed_by": closedBy}).Info("session closed")
	}
	return r.getSession(tx, sessionID)
}

// GetActiveSessionsForTable lists the table's active sessions, newest first.
func (r *SessionRegistry) GetActiveSessionsForTable(ctx context.Context, tableID uint) ([]SessionSummary, error) {
	now := r.Clock()
	db := r.db.WithContext(ctx)

	if err := db.Transaction(func(tx *gorm.DB) error {
		_, err := r.expireOverdue(tx, &tableID, now)
		return err
	}); err != nil {
		return nil, utils.DBError(err, "", "failed to expire overdue sessions")
	}

	var sessions []models.TableSession
	if err := db.Where("table_id = ? AND status = ?", tableID, models.SessionStatusActive).
		Order("created_at DESC").
		Find(&sessions).Error; err != nil {
		return nil, utils.DBError(err, "", "failed to load active sessions")
	}
	return r.summarize(ctx, sessions)
}

func (r *SessionRegistry) summarize(ctx context.Context, sessions []models.TableSession) ([]SessionSummary, error) {
	summaries := make([]SessionSummary, 0, len(sessions))
	if len(sessions) == 0 {
		return summaries, nil
	}

	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}

	var counts []struct {
		SessionID  string
		OrderCount int64
	}
	if err := r.db.WithContext(ctx).Model(&models.Order{}).
		Select("session_id, COUNT(*) AS order_count").
		Where("session_id IN ?", ids).
		Group("session_id").
		Scan(&counts).Error; err != nil {
		return nil, utils.DBError(err, "", "failed to count orders")
	}
	byID := make(map[string]int64, len(counts))
	for _, c := range counts {
		byID[c.SessionID] = c.OrderCount
	}

	for _, s := range sessions {
		summaries = append(summaries, SessionSummary{
			SessionID:    s.ID,
			TableID:      s.TableID,
			RestaurantID: s.RestaurantID,
			CustomerName: s.CustomerName,
			OrderCount:   byID[s.ID],
			TotalAmount:  s.TotalAmount,
			CreatedAt:    s.CreatedAt,
			LastActivity: s.LastActivity,
			ExpiresAt:    s.ExpiresAt,
		})
	}
	return summaries, nil
}

// SweepExpired expires every overdue active session and returns their ids.
func (r *SessionRegistry) SweepExpired(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ids, err = r.expireOverdue(tx, nil, r.Clock())
		return err
	})
	if err != nil {
		return nil, utils.DBError(err, "", "failed to sweep expired sessions")
	}
	if len(ids) > 0 {
		r.log.Infof("expired %d overdue sessions", len(ids))
	}
	return ids, nil
}

// StartExpirySweeper runs SweepExpired every interval until ctx is done.
func (r *SessionRegistry) StartExpirySweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := r.SweepExpired(ctx); err != nil {
					r.log.Errorf("session sweep failed: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Timeout is the lifetime granted by create and renew.
func (r *SessionRegistry) Timeout() time.Duration {
	return r.timeout
}

// GetTable loads a table and checks it belongs to the restaurant when restaurantID is set.
func (r *SessionRegistry) GetTable(ctx context.Context, restaurantID, tableID uint) (*models.Table, error) {
	var table models.Table
	if err := r.db.WithContext(ctx).First(&table, tableID).Error; err != nil {
		return nil, utils.DBError(err, utils.CodeTableNotFound, "table not found")
	}
	if restaurantID != 0 && table.RestaurantID != restaurantID {
		return nil, utils.NewAppError(utils.CodeTableNotFound, "table not found")
	}
	return &table, nil
}
