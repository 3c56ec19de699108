package middlewares

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/qr-restaurant/models"
	"github.com/yeremiapane/qr-restaurant/sessionstore"
	"github.com/yeremiapane/qr-restaurant/utils"
)

const SessionTokenHeader = "X-Session-Token"

type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionID, token string) (*models.TableSession, error)
	CheckToken(ctx context.Context, sessionID, token string) (*models.TableSession, error)
}

// SessionAuth admits customer requests for /sessions/:session_id. The token
// comes from the X-Session-Token header, or from the session remembered in
// the device cookies when it is the same session. The session must be active.
func SessionAuth(sessions SessionValidator, secureCookies bool, timeout time.Duration) gin.HandlerFunc {
	return sessionAuth(sessions.ValidateSession, secureCookies, timeout)
}

// SessionReadAuth is SessionAuth for read-only routes; closed and expired
// sessions are admitted.
func SessionReadAuth(sessions SessionValidator, secureCookies bool, timeout time.Duration) gin.HandlerFunc {
	return sessionAuth(sessions.CheckToken, secureCookies, timeout)
}

type checkFunc func(ctx context.Context, sessionID, token string) (*models.TableSession, error)

func sessionAuth(check checkFunc, secureCookies bool, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("session_id")
		token := c.GetHeader(SessionTokenHeader)
		if token == "" {
			store := sessionstore.NewRequestStore(c, secureCookies, timeout)
			if persisted, ok := store.Retrieve(); ok && persisted.SessionID == sessionID {
				token = persisted.SessionToken
			}
		}
		if token == "" {
			utils.RespondAppError(c, utils.NewAppError(utils.CodeInvalidToken, "session token missing"))
			c.Abort()
			return
		}

		sess, err := check(c.Request.Context(), sessionID, token)
		if err != nil {
			utils.RespondAppError(c, err)
			c.Abort()
			return
		}

		c.Set(CtxSession, sess)
		c.Next()
	}
}

// CurrentSession is the session admitted by SessionAuth.
func CurrentSession(c *gin.Context) *models.TableSession {
	if v, ok := c.Get(CtxSession); ok {
		if sess, ok := v.(*models.TableSession); ok {
			return sess
		}
	}
	return nil
}
