package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/qr-restaurant/utils"
	"golang.org/x/time/rate"
)

// PaymentSecurityHeaders adds the payment-page headers on top of SecurityHeaders.
func PaymentSecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		c.Next()
	}
}

// PaymentRateLimiter caps payment attempts across all clients.
func PaymentRateLimiter() gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Every(time.Second), 10)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			tooManyRequests(c, "Please wait before making another payment request")
			return
		}
		c.Next()
	}
}

// LogPaymentRequest logs every payment call with its session and outcome.
func LogPaymentRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		utils.Logger().WithFields(logrus.Fields{
			"component":  "payment",
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"session_id": c.Param("session_id"),
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
			"staff_id":   CurrentUserID(c),
		}).Info("payment request")
	}
}
