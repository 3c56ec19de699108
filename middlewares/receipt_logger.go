package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/qr-restaurant/utils"
)

func ReceiptLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		fields := logrus.Fields{
			"receipt_id": c.Param("receipt_id"),
			"session_id": c.Param("session_id"),
		}

		c.Next()

		if c.Writer.Status() == http.StatusOK {
			utils.Logger().WithFields(fields).Info("receipt served")
		} else {
			utils.ErrLogger().WithFields(fields).WithField("status", c.Writer.Status()).Warn("receipt request failed")
		}
	}
}
