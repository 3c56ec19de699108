// Package sessionstore remembers, on the customer's device, which dining
// session it belongs to. Records are written to several backends so that the
// loss of any one of them does not lose the session. Nothing here is trusted
// by the server: the session token it carries is always re-validated.
package sessionstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/qr-restaurant/utils"
)

const (
	StorageKey       = "qr_restaurant_session"
	CookieName       = "qr_session"
	BackupCookieName = "qr_session_backup"
	SessionTimeout   = 24 * time.Hour
)

// PersistedSession is the client-held mirror of a table session.
type PersistedSession struct {
	SessionID     string     `json:"sessionId"`
	TableID       uint       `json:"tableId"`
	RestaurantID  uint       `json:"restaurantId"`
	CustomerName  string     `json:"customerName"`
	CustomerPhone string     `json:"customerPhone,omitempty"`
	CustomerEmail string     `json:"customerEmail,omitempty"`
	SessionToken  string     `json:"sessionToken"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastAccessed  time.Time  `json:"lastAccessed"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

// Backend is one key-value storage mechanism. Implementations may fail in any
// way, including panicking; Store absorbs it.
type Backend interface {
	Name() string
	Get(key string) (value string, found bool, err error)
	Set(key, value string, ttl time.Duration) error
	Delete(key string) error
}

// Store writes to and reads from an ordered list of backends. The first
// backend has the highest read priority.
type Store struct {
	backends []Backend
	key      string
	timeout  time.Duration
	now      func() time.Time
	log      *logrus.Entry
}

type Option func(*Store)

func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(backends []Backend, opts ...Option) *Store {
	s := &Store{
		backends: backends,
		key:      StorageKey,
		timeout:  SessionTimeout,
		now:      time.Now,
		log:      utils.Logger().WithField("component", "sessionstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store stamps lastAccessed and expiresAt and writes the record everywhere it
// can. It reports success when at least one backend accepted the write.
func (s *Store) Store(sess PersistedSession) bool {
	now := s.now()
	expires := now.Add(s.timeout)
	sess.LastAccessed = now
	sess.ExpiresAt = &expires
	return s.write(sess)
}

// Retrieve returns the first parseable record in priority order. An expired
// record clears every backend and yields nothing.
func (s *Store) Retrieve() (*PersistedSession, bool) {
	for _, b := range s.backends {
		var (
			raw   string
			found bool
		)
		err := s.guard(b, "get", func() error {
			var err error
			raw, found, err = b.Get(s.key)
			return err
		})
		if err != nil || !found || raw == "" {
			continue
		}

		var sess PersistedSession
		if err := json.Unmarshal([]byte(raw), &sess); err != nil || sess.SessionID == "" {
			s.log.WithField("backend", b.Name()).Warn("discarding unreadable persisted session")
			continue
		}

		if s.IsExpired(sess) {
			s.log.WithField("session_id", sess.SessionID).Info("persisted session expired, clearing")
			s.Clear()
			return nil, false
		}
		return &sess, true
	}
	return nil, false
}

// Clear deletes the record from every backend; true if any deletion succeeded.
func (s *Store) Clear() bool {
	ok := false
	for _, b := range s.backends {
		if err := s.guard(b, "delete", func() error { return b.Delete(s.key) }); err == nil {
			ok = true
		}
	}
	return ok
}

// UpdateLastAccessed re-stores sess (or the current record when sess is nil)
// with a fresh lastAccessed. expiresAt is left alone.
func (s *Store) UpdateLastAccessed(sess *PersistedSession) bool {
	if sess == nil {
		current, ok := s.Retrieve()
		if !ok {
			return false
		}
		sess = current
	}

	updated := *sess
	updated.LastAccessed = s.now()
	if updated.ExpiresAt == nil {
		expires := updated.LastAccessed.Add(s.timeout)
		updated.ExpiresAt = &expires
	}
	if !s.write(updated) {
		return false
	}
	*sess = updated
	return true
}

// IsExpired uses expiresAt, or lastAccessed plus the timeout when expiresAt is absent.
func (s *Store) IsExpired(sess PersistedSession) bool {
	now := s.now()
	if sess.ExpiresAt != nil && !sess.ExpiresAt.IsZero() {
		return now.After(*sess.ExpiresAt)
	}
	if sess.LastAccessed.IsZero() {
		return true
	}
	return now.After(sess.LastAccessed.Add(s.timeout))
}

func (s *Store) write(sess PersistedSession) bool {
	raw, err := json.Marshal(sess)
	if err != nil {
		s.log.Warnf("cannot encode persisted session: %v", err)
		return false
	}

	ttl := s.timeout
	if sess.ExpiresAt != nil {
		ttl = sess.ExpiresAt.Sub(s.now())
	}

	ok := false
	for _, b := range s.backends {
		if err := s.guard(b, "set", func() error { return b.Set(s.key, string(raw), ttl) }); err == nil {
			ok = true
		}
	}
	if !ok {
		s.log.WithField("session_id", sess.SessionID).Warn("no storage backend accepted the session")
	}
	return ok
}

func (s *Store) guard(b Backend, op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", b.Name(), r)
		}
		if err != nil {
			s.log.WithFields(logrus.Fields{"backend": b.Name(), "op": op}).Warn(err)
		}
	}()
	return fn()
}
