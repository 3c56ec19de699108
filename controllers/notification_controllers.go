package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/qr-restaurant/middlewares"
	"github.com/yeremiapane/qr-restaurant/services"
	"github.com/yeremiapane/qr-restaurant/utils"
)

type NotificationController struct {
	Notifications *services.NotificationService
}

func NewNotificationController(notifications *services.NotificationService) *NotificationController {
	return &NotificationController{Notifications: notifications}
}

// SessionNotifications -> GET /sessions/:session_id/notifications
func (nc *NotificationController) SessionNotifications(c *gin.Context) {
	notifs, err := nc.Notifications.ForSession(c.Request.Context(), middlewares.CurrentSession(c).ID)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notifications", notifs)
}

// StaffNotifications -> GET /admin/notifications?limit=
func (nc *NotificationController) StaffNotifications(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}
	notifs, err := nc.Notifications.ForStaff(c.Request.Context(), limit)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notifications", notifs)
}
