package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/qr-restaurant/middlewares"
	"github.com/yeremiapane/qr-restaurant/models"
	"github.com/yeremiapane/qr-restaurant/services"
	"github.com/yeremiapane/qr-restaurant/sessionstore"
	"github.com/yeremiapane/qr-restaurant/utils"
)

type SessionController struct {
	Registry      *services.SessionRegistry
	Scanner       *services.ScanCoordinator
	Ledger        *services.OrderLedger
	SecureCookies bool
}

func NewSessionController(registry *services.SessionRegistry, ledger *services.OrderLedger, secureCookies bool) *SessionController {
	return &SessionController{
		Registry:      registry,
		Scanner:       services.NewScanCoordinator(registry),
		Ledger:        ledger,
		SecureCookies: secureCookies,
	}
}

// sessionResponse is the only place the session token leaves the server.
type sessionResponse struct {
	*models.TableSession
	SessionToken string `json:"session_token"`
}

func withToken(sess *models.TableSession) sessionResponse {
	return sessionResponse{TableSession: sess, SessionToken: sess.SessionToken}
}

func (sc *SessionController) deviceStore(c *gin.Context) *sessionstore.Store {
	return sessionstore.NewRequestStore(c, sc.SecureCookies, sc.Registry.Timeout())
}

// Scan -> GET /scan/:restaurant_id/:table_id
func (sc *SessionController) Scan(c *gin.Context) {
	restaurantID, ok := uintParam(c, "restaurant_id")
	if !ok {
		return
	}
	tableID, ok := uintParam(c, "table_id")
	if !ok {
		return
	}

	res, err := sc.Scanner.HandleScan(c.Request.Context(), sc.deviceStore(c), restaurantID, tableID)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Scan handled", res)
}

// ResolveScan -> POST /scan/:restaurant_id/:table_id/resolve
func (sc *SessionController) ResolveScan(c *gin.Context) {
	restaurantID, ok := uintParam(c, "restaurant_id")
	if !ok {
		return
	}
	tableID, ok := uintParam(c, "table_id")
	if !ok {
		return
	}
	var body struct {
		Choice string `json:"choice"`
	}
	if !bindJSON(c, &body) {
		return
	}

	res, err := sc.Scanner.ResolveConflict(c.Request.Context(), sc.deviceStore(c), restaurantID, tableID, body.Choice)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Conflict resolved", res)
}

// CreateSession -> POST /tables/:table_id/sessions
func (sc *SessionController) CreateSession(c *gin.Context) {
	tableID, ok := uintParam(c, "table_id")
	if !ok {
		return
	}
	var in services.CreateSessionInput
	if !bindJSON(c, &in) {
		return
	}
	in.TableID = tableID

	sess, err := sc.Scanner.StartSession(c.Request.Context(), sc.deviceStore(c), in)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Session created", withToken(sess))
}

// JoinSession -> POST /tables/:table_id/sessions/:session_id/join
func (sc *SessionController) JoinSession(c *gin.Context) {
	tableID, ok := uintParam(c, "table_id")
	if !ok {
		return
	}

	sess, err := sc.Scanner.JoinSession(c.Request.Context(), sc.deviceStore(c), c.Param("session_id"), tableID)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Joined session", withToken(sess))
}

// GetSession -> GET /sessions/:session_id
func (sc *SessionController) GetSession(c *gin.Context) {
	sess := middlewares.CurrentSession(c)
	summary, err := sc.Ledger.Summary(c.Request.Context(), sess.ID)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Session details", gin.H{
		"session": sess,
		"summary": summary,
	})
}

// RenewSession -> POST /sessions/:session_id/renew
func (sc *SessionController) RenewSession(c *gin.Context) {
	sess, err := sc.Registry.RenewSession(c.Request.Context(), middlewares.CurrentSession(c).ID)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	sc.deviceStore(c).UpdateLastAccessed(nil)
	utils.RespondJSON(c, http.StatusOK, "Session renewed", sess)
}

// ActiveSessionsForTable -> GET /admin/tables/:table_id/sessions
func (sc *SessionController) ActiveSessionsForTable(c *gin.Context) {
	tableID, ok := uintParam(c, "table_id")
	if !ok {
		return
	}
	sessions, err := sc.Registry.GetActiveSessionsForTable(c.Request.Context(), tableID)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Active sessions", sessions)
}

// SessionLedger -> GET /admin/sessions/:session_id/ledger
func (sc *SessionController) SessionLedger(c *gin.Context) {
	sessionID := c.Param("session_id")
	if _, err := sc.Registry.GetSession(c.Request.Context(), sessionID); err != nil {
		utils.RespondAppError(c, err)
		return
	}
	summary, err := sc.Ledger.Summary(c.Request.Context(), sessionID)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Session ledger", summary)
}
