package sessionstore

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CookieBackend stores the record in one cookie of the current request. The
// storage key is ignored: the cookie name is the key. Writes are remembered so
// a later Get in the same request sees them.
type CookieBackend struct {
	c       *gin.Context
	name    string
	secure  bool
	pending *string
}

func NewCookieBackend(c *gin.Context, name string, secure bool) *CookieBackend {
	return &CookieBackend{c: c, name: name, secure: secure}
}

func (b *CookieBackend) Name() string { return "cookie:" + b.name }

func (b *CookieBackend) Get(string) (string, bool, error) {
	if b.pending != nil {
		return *b.pending, *b.pending != "", nil
	}
	value, err := b.c.Cookie(b.name)
	if err == http.ErrNoCookie {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, value != "", nil
}

func (b *CookieBackend) Set(_ string, value string, ttl time.Duration) error {
	maxAge := int(ttl / time.Second)
	if maxAge <= 0 {
		maxAge = int(SessionTimeout / time.Second)
	}
	b.c.SetSameSite(http.SameSiteLaxMode)
	b.c.SetCookie(b.name, value, maxAge, "/", "", b.secure, true)
	b.pending = &value
	return nil
}

func (b *CookieBackend) Delete(string) error {
	b.c.SetSameSite(http.SameSiteLaxMode)
	b.c.SetCookie(b.name, "", -1, "/", "", b.secure, true)
	empty := ""
	b.pending = &empty
	return nil
}

// NewRequestStore is the device store of one HTTP request: the primary cookie
// with its backup behind it.
func NewRequestStore(c *gin.Context, secure bool, timeout time.Duration) *Store {
	return NewStore([]Backend{
		NewCookieBackend(c, CookieName, secure),
		NewCookieBackend(c, BackupCookieName, secure),
	}, WithTimeout(timeout))
}
