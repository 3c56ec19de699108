package services

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/qr-restaurant/models"
	"github.com/yeremiapane/qr-restaurant/sessionstore"
	"github.com/yeremiapane/qr-restaurant/utils"
)

// Scan outcomes.
const (
	ActionRedirect     = "redirect"
	ActionShowOptions  = "show-options"
	ActionShowConflict = "show-conflict"
)

const (
	OptionNew      = "new"
	OptionExisting = "existing"
)

const (
	ChoiceContinue = "continue"
	ChoiceStartNew = "start_new"
)

// PersistedStore is the device-side memory of the current session.
type PersistedStore interface {
	Store(sess sessionstore.PersistedSession) bool
	Retrieve() (*sessionstore.PersistedSession, bool)
	Clear() bool
	UpdateLastAccessed(sess *sessionstore.PersistedSession) bool
}

// SessionBackend is the server side the coordinator consults.
type SessionBackend interface {
	GetTable(ctx context.Context, restaurantID, tableID uint) (*models.Table, error)
	ValidateSession(ctx context.Context, sessionID, token string) (*models.TableSession, error)
	GetActiveSessionsForTable(ctx context.Context, tableID uint) ([]SessionSummary, error)
	CreateSession(ctx context.Context, in CreateSessionInput) (*models.TableSession, error)
	JoinSession(ctx context.Context, sessionID string, tableID uint) (*models.TableSession, error)
}

// SessionOption is one choice offered on the options screen.
type SessionOption struct {
	Kind         string          `json:"kind"`
	SessionID    string          `json:"session_id,omitempty"`
	CustomerName string          `json:"customer_name,omitempty"`
	OrderCount   int64           `json:"order_count,omitempty"`
	TotalAmount  float64         `json:"total_amount,omitempty"`
	Preview      *SessionSummary `json:"preview,omitempty"`
}

// ConflictSession describes the device's session at another table.
type ConflictSession struct {
	SessionID    string  `json:"session_id"`
	TableID      uint    `json:"table_id"`
	RestaurantID uint    `json:"restaurant_id"`
	CustomerName string  `json:"customer_name"`
	TotalAmount  float64 `json:"total_amount"`
}

type ScanResult struct {
	Action          string           `json:"action"`
	TableID         uint             `json:"table_id"`
	RestaurantID    uint             `json:"restaurant_id"`
	SessionID       string           `json:"session_id,omitempty"`
	ConflictSession *ConflictSession `json:"conflict_session,omitempty"`
	Options         []SessionOption  `json:"options,omitempty"`
	// Retryable is set when the backend could not be reached and the
	// remembered session was kept for another attempt.
	Retryable bool `json:"retryable,omitempty"`
}

// ScanCoordinator decides what a QR scan leads to. It never redirects into a
// session it could not confirm as valid.
type ScanCoordinator struct {
	sessions SessionBackend
	log      *logrus.Entry
}

func NewScanCoordinator(sessions SessionBackend) *ScanCoordinator {
	return &ScanCoordinator{
		sessions: sessions,
		log:      utils.Logger().WithField("component", "scan"),
	}
}

// HandleScan runs one scan of (restaurantID, tableID) against the device store.
// The only error returned is for a table that cannot be scanned.
func (sc *ScanCoordinator) HandleScan(ctx context.Context, store PersistedStore, restaurantID, tableID uint) (*ScanResult, error) {
	if _, err := sc.sessions.GetTable(ctx, restaurantID, tableID); err != nil {
		return nil, err
	}

	persisted, ok := store.Retrieve()
	if !ok {
		return sc.showOptions(ctx, restaurantID, tableID, ""), nil
	}

	sess, err := sc.sessions.ValidateSession(ctx, persisted.SessionID, persisted.SessionToken)
	if err != nil {
		retryable := sc.dropIfDefinitive(store, persisted, err)
		res := sc.showOptions(ctx, restaurantID, tableID, persisted.SessionID)
		res.Retryable = res.Retryable || retryable
		return res, nil
	}

	if persisted.TableID == tableID && persisted.RestaurantID == restaurantID {
		store.UpdateLastAccessed(persisted)
		return &ScanResult{
			Action:       ActionRedirect,
			TableID:      tableID,
			RestaurantID: restaurantID,
			SessionID:    sess.ID,
		}, nil
	}

	sc.log.WithFields(logrus.Fields{
		"session_id":    sess.ID,
		"session_table": sess.TableID,
		"scanned_table": tableID,
	}).Info("scan conflicts with an active session at another table")

	return &ScanResult{
		Action:       ActionShowConflict,
		TableID:      tableID,
		RestaurantID: restaurantID,
		ConflictSession: &ConflictSession{
			SessionID:    sess.ID,
			TableID:      sess.TableID,
			RestaurantID: sess.RestaurantID,
			CustomerName: sess.CustomerName,
			TotalAmount:  sess.TotalAmount,
		},
	}, nil
}

// dropIfDefinitive clears the device store when the server says the session
// is gone for good. It reports whether the failure was a connection problem.
func (sc *ScanCoordinator) dropIfDefinitive(store PersistedStore, persisted *sessionstore.PersistedSession, err error) bool {
	if utils.IsCode(err, utils.CodeConnection) {
		sc.log.WithField("session_id", persisted.SessionID).Warnf("could not validate persisted session: %v", err)
		return true
	}
	sc.log.WithFields(logrus.Fields{
		"session_id": persisted.SessionID,
		"reason":     utils.ErrorCode(err),
	}).Info("persisted session no longer valid, clearing")
	store.Clear()
	return false
}

// showOptions offers every active session at the table except ownSessionID, then "new".
func (sc *ScanCoordinator) showOptions(ctx context.Context, restaurantID, tableID uint, ownSessionID string) *ScanResult {
	res := &ScanResult{
		Action:       ActionShowOptions,
		TableID:      tableID,
		RestaurantID: restaurantID,
	}

	active, err := sc.sessions.GetActiveSessionsForTable(ctx, tableID)
	if err != nil {
		sc.log.WithField("table_id", tableID).Warnf("could not list active sessions: %v", err)
		res.Retryable = utils.IsCode(err, utils.CodeConnection)
	}
	for i := range active {
		s := active[i]
		if s.SessionID == ownSessionID {
			continue
		}
		res.Options = append(res.Options, SessionOption{
			Kind:         OptionExisting,
			SessionID:    s.SessionID,
			CustomerName: s.CustomerName,
			OrderCount:   s.OrderCount,
			TotalAmount:  s.TotalAmount,
			Preview:      &s,
		})
	}
	res.Options = append(res.Options, SessionOption{Kind: OptionNew})
	return res
}

// ResolveConflict applies the customer's choice on the conflict screen.
// "continue" goes back to the remembered session's own table; "start_new"
// forgets it and shows the options for the scanned table.
func (sc *ScanCoordinator) ResolveConflict(ctx context.Context, store PersistedStore, restaurantID, tableID uint, choice string) (*ScanResult, error) {
	switch choice {
	case ChoiceContinue:
		persisted, ok := store.Retrieve()
		if !ok {
			return sc.HandleScan(ctx, store, restaurantID, tableID)
		}
		sess, err := sc.sessions.ValidateSession(ctx, persisted.SessionID, persisted.SessionToken)
		if err != nil {
			retryable := sc.dropIfDefinitive(store, persisted, err)
			res, scanErr := sc.HandleScan(ctx, store, restaurantID, tableID)
			if res != nil {
				res.Retryable = res.Retryable || retryable
			}
			return res, scanErr
		}
		store.UpdateLastAccessed(persisted)
		return &ScanResult{
			Action:       ActionRedirect,
			TableID:      sess.TableID,
			RestaurantID: sess.RestaurantID,
			SessionID:    sess.ID,
		}, nil

	case ChoiceStartNew:
		if _, err := sc.sessions.GetTable(ctx, restaurantID, tableID); err != nil {
			return nil, err
		}
		store.Clear()
		return sc.showOptions(ctx, restaurantID, tableID, ""), nil

	default:
		return nil, utils.NewAppError(utils.CodeInvalidInput, "choice must be continue or start_new")
	}
}

func persistedFrom(sess *models.TableSession) sessionstore.PersistedSession {
	return sessionstore.PersistedSession{
		SessionID:     sess.ID,
		TableID:       sess.TableID,
		RestaurantID:  sess.RestaurantID,
		CustomerName:  sess.CustomerName,
		CustomerPhone: deref(sess.CustomerPhone),
		CustomerEmail: deref(sess.CustomerEmail),
		SessionToken:  sess.SessionToken,
		CreatedAt:     sess.CreatedAt,
	}
}

// StartSession creates a session for the scanned table and remembers it on the device.
func (sc *ScanCoordinator) StartSession(ctx context.Context, store PersistedStore, in CreateSessionInput) (*models.TableSession, error) {
	sess, err := sc.sessions.CreateSession(ctx, in)
	if err != nil {
		return nil, err
	}
	if !store.Store(persistedFrom(sess)) {
		sc.log.WithField("session_id", sess.ID).Warn("session created but could not be remembered on the device")
	}
	return sess, nil
}

// JoinSession attaches the device to another diner's active session at the same table.
func (sc *ScanCoordinator) JoinSession(ctx context.Context, store PersistedStore, sessionID string, tableID uint) (*models.TableSession, error) {
	sess, err := sc.sessions.JoinSession(ctx, sessionID, tableID)
	if err != nil {
		return nil, err
	}
	store.Store(persistedFrom(sess))
	return sess, nil
}
